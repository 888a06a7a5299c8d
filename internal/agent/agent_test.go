package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wwwzy/CosmoAgent/internal/config"
	"github.com/wwwzy/CosmoAgent/internal/mcp"
)

// 真实链路测试：需要可用的 Ark 凭证与一个在跑的工具服务端。
func TestClient_RealModel_Ask(t *testing.T) {
	apiKey := strings.TrimSpace(os.Getenv("ARK_API_KEY"))
	modelID := strings.TrimSpace(os.Getenv("ARK_MODEL_ID"))
	mcpURL := strings.TrimSpace(os.Getenv("MCP_URL"))
	if apiKey == "" || modelID == "" || mcpURL == "" {
		t.Skip("ARK_API_KEY、ARK_MODEL_ID 或 MCP_URL 未设置，跳过真实 Agent 测试")
	}

	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Ark.APIKey = apiKey
	cfg.Ark.ModelID = modelID
	cfg.Ark.BaseURL = strings.TrimSpace(os.Getenv("ARK_BASE_URL"))
	cfg.MCP.URL = mcpURL

	c := NewClient(&cfg, nil, mcp.NewClient(mcpURL), nil)
	require.NoError(t, c.Connect(ctx))
	require.Greater(t, c.ToolCount(), 0)

	ans, err := c.Ask(ctx, "How many documents are in the container?")
	require.NoError(t, err)

	fmt.Printf("answer: %s (%.2fs)\n", ans.Answer, ans.ElapsedSeconds)
	for i, s := range ans.Steps {
		obs := s.Observation
		if len(obs) > 200 {
			obs = obs[:200] + "..."
		}
		fmt.Printf("step %d: %s synthetic=%v obs=%s\n", i, s.Action, s.Synthetic, obs)
	}
	require.NotEmpty(t, ans.Answer)
}
