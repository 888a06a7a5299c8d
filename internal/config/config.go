package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wwwzy/CosmoAgent/internal/monitor"
	"github.com/wwwzy/CosmoAgent/internal/storage"
)

type ArkConfig struct {
	APIKey  string `mapstructure:"api_key"`
	ModelID string `mapstructure:"model_id"`
	BaseURL string `mapstructure:"base_url"`
}

type MCPConfig struct {
	URL            string        `mapstructure:"url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type AgentConfig struct {
	MaxIterations          int           `mapstructure:"max_iterations"`
	Timeout                time.Duration `mapstructure:"timeout"`
	ToolTimeout            time.Duration `mapstructure:"tool_timeout"`
	DefaultTopN            int           `mapstructure:"default_top_n"`
	EnableSQLCountFallback bool          `mapstructure:"enable_sql_count_fallback"`
	EnforceLatestGuard     bool          `mapstructure:"enforce_latest_guard"`
	LocationFallbackFields []string      `mapstructure:"location_fallback_fields"`
	// Today 固定时间短语解析和提示词里的日期参照点（ISO 日期），
	// 留空表示取当天。
	Today string `mapstructure:"today"`
}

type WebConfig struct {
	Listen string `mapstructure:"listen"`
}

type Config struct {
	Storage  storage.Config `mapstructure:"storage"`
	Monitor  monitor.Config `mapstructure:"monitor"`
	Ark      ArkConfig      `mapstructure:"ark"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Web      WebConfig      `mapstructure:"web"`
	LogLevel string         `mapstructure:"log_level"`
}

func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// 默认搜索路径
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cosmoagent")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("COSMOAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 注意：Unmarshal 只反序列化 Viper“知道”的 key（来自配置文件、
	// Defaults 或显式 Bind），只存在于环境变量里的 key 会被忽略，
	// 所以每个可配置项都要在 setDefaults 里出现。
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件未找到，使用默认值
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// placeholderValues 是常见的占位凭证，出现即视为未配置。
var placeholderValues = []string{"your-api-key", "changeme", "placeholder", "xxx"}

func isPlaceholder(s string) bool {
	l := strings.ToLower(strings.TrimSpace(s))
	for _, p := range placeholderValues {
		if l == p {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.Ark.APIKey == "" || isPlaceholder(c.Ark.APIKey) {
		return fmt.Errorf("ark.api_key is required (or set ARK_API_KEY env var)")
	}
	if c.Ark.ModelID == "" || isPlaceholder(c.Ark.ModelID) {
		return fmt.Errorf("ark.model_id is required (or set ARK_MODEL_ID env var)")
	}
	if c.MCP.URL == "" {
		return fmt.Errorf("mcp.url is required (or set MCP_URL env var)")
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive")
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("agent.timeout must be positive")
	}
	if c.Agent.Today != "" {
		if _, err := time.Parse("2006-01-02", c.Agent.Today); err != nil {
			return fmt.Errorf("agent.today must be an ISO date (YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	// -------------------------------------------------------------------------
	// Storage Defaults (存储默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("storage.path", "cosmoagent.db")
	v.SetDefault("storage.busy_timeout", 5*time.Second)

	// -------------------------------------------------------------------------
	// Monitor Retention Defaults (数据清理默认值)
	// -------------------------------------------------------------------------
	monitorDefaults := monitor.DefaultConfig()
	v.SetDefault("monitor.retention.enabled", monitorDefaults.Retention.Enabled)
	v.SetDefault("monitor.retention.interval", monitorDefaults.Retention.Interval)
	v.SetDefault("monitor.retention.keep_days", monitorDefaults.Retention.KeepDays)

	// -------------------------------------------------------------------------
	// Ark AI Defaults (AI 模型默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("ark.api_key", "")
	v.SetDefault("ark.model_id", "")
	v.SetDefault("ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")

	v.BindEnv("ark.api_key", "ARK_API_KEY")
	v.BindEnv("ark.model_id", "ARK_MODEL_ID")
	v.BindEnv("ark.base_url", "ARK_BASE_URL")

	// -------------------------------------------------------------------------
	// Tool Server Defaults (工具服务端默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("mcp.url", "http://localhost:8000/mcp")
	v.SetDefault("mcp.connect_timeout", 10*time.Second)

	v.BindEnv("mcp.url", "MCP_URL")

	// -------------------------------------------------------------------------
	// Agent Defaults (Agent 行为默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("agent.max_iterations", 8)
	v.SetDefault("agent.timeout", 120*time.Second)
	v.SetDefault("agent.tool_timeout", 60*time.Second)
	v.SetDefault("agent.default_top_n", 25)
	v.SetDefault("agent.enable_sql_count_fallback", true)
	v.SetDefault("agent.enforce_latest_guard", true)
	v.SetDefault("agent.location_fallback_fields", []string{"City", "Region", "Area", "District"})
	v.SetDefault("agent.today", "")

	// -------------------------------------------------------------------------
	// Web Defaults (Web 服务默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("web.listen", ":8080")
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Storage: storage.Config{
			Path:        "cosmoagent.db",
			BusyTimeout: 5 * time.Second,
		},
		Monitor: monitor.DefaultConfig(),
		Ark: ArkConfig{
			BaseURL: "https://ark.cn-beijing.volces.com/api/v3",
		},
		MCP: MCPConfig{
			URL:            "http://localhost:8000/mcp",
			ConnectTimeout: 10 * time.Second,
		},
		Agent: AgentConfig{
			MaxIterations:          8,
			Timeout:                120 * time.Second,
			ToolTimeout:            60 * time.Second,
			DefaultTopN:            25,
			EnableSQLCountFallback: true,
			EnforceLatestGuard:     true,
			LocationFallbackFields: []string{"City", "Region", "Area", "District"},
		},
		Web: WebConfig{Listen: ":8080"},
	}
}
