package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/wwwzy/CosmoAgent/internal/config"
	"github.com/wwwzy/CosmoAgent/internal/mcp"
	"github.com/wwwzy/CosmoAgent/internal/sqlguard"
)

// remoteCaller 是工具层看到的远端视图，便于测试替换。
type remoteCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) (string, error)
}

// QueryCosmosTool 执行只读 SQL 查询。
// 发送前做两步改写：剥掉 Markdown 围栏、注入 c.latest = 0 守卫。
type QueryCosmosTool struct {
	remote       remoteCaller
	enforceGuard bool
}

func (t *QueryCosmosTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "query_cosmos",
		Desc: "Run a read-only Cosmos DB SQL query against the container. Use the alias 'c', e.g. SELECT TOP 25 * FROM c WHERE c.City = 'Miami'.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "The Cosmos DB SQL query text",
				Type:     schema.String,
				Required: true,
			},
		}),
	}, nil
}

func (t *QueryCosmosTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("query_cosmos: invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("query_cosmos: query is required")
	}

	q := sqlguard.StripFences(args.Query)
	q = sqlguard.InjectLatestGuard(q, t.enforceGuard)

	out, err := t.remote.CallTool(ctx, "query_cosmos", map[string]any{"query": q})
	if err != nil {
		return "", fmt.Errorf("query_cosmos: %w", err)
	}
	return out, nil
}

// CountDocumentsTool 按等值过滤统计文档数。
// 过滤键携带运算符时退化为只含守卫条件的 COUNT SQL 查询；
// 远端计数失败时带着原有等值过滤退化为 COUNT SQL 作为补救。
type CountDocumentsTool struct {
	remote           remoteCaller
	enforceGuard     bool
	sqlCountFallback bool
}

func (t *CountDocumentsTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "count_documents",
		Desc: "Count documents matching simple equality filters, e.g. {\"filters\": {\"City\": \"Miami\"}}. Filter keys must be plain field names without operators.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"filters": {
				Desc:     "Field name to value equality filters",
				Type:     schema.Object,
				Required: false,
			},
		}),
	}, nil
}

func (t *CountDocumentsTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var raw map[string]any
	if strings.TrimSpace(argumentsInJSON) != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &raw); err != nil {
			return "", fmt.Errorf("count_documents: invalid arguments: %w", err)
		}
	}

	filters, err := sqlguard.NormalizeFilters(raw)
	if err != nil {
		return "", fmt.Errorf("count_documents: %w", err)
	}

	// 运算符键无法走等值计数接口。开启补救时转成 COUNT SQL，
	// 注意此时整份过滤被丢弃，只剩守卫条件参与计数。
	if hasOperatorFilters(filters) {
		if !t.sqlCountFallback {
			return "", fmt.Errorf("count_documents: %w", sqlguard.ErrOperatorNotAllowed)
		}
		guardOnly := map[string]any{}
		if t.enforceGuard {
			guardOnly["latest"] = 0
		}
		out, err := t.countViaSQL(ctx, guardOnly)
		if err != nil {
			return "", fmt.Errorf("count_documents: %w", err)
		}
		return out, nil
	}

	if t.enforceGuard {
		if _, ok := filters["latest"]; !ok {
			filters["latest"] = 0
		}
	}

	out, err := t.remote.CallTool(ctx, "count_documents", map[string]any{"filters": filters})
	if err == nil {
		return out, nil
	}

	if t.sqlCountFallback {
		sqlOut, sqlErr := t.countViaSQL(ctx, filters)
		if sqlErr == nil {
			return sqlOut, nil
		}
		return "", fmt.Errorf("count_documents: %w; %v", err, sqlErr)
	}
	return "", fmt.Errorf("count_documents: %w", err)
}

func (t *CountDocumentsTool) countViaSQL(ctx context.Context, filters map[string]any) (string, error) {
	query := sqlguard.CountQueryFromFilters(filters, t.enforceGuard)
	out, err := t.remote.CallTool(ctx, "query_cosmos", map[string]any{"query": query})
	if err != nil {
		return "", fmt.Errorf("sql count fallback: %w", err)
	}
	return out, nil
}

func hasOperatorFilters(filters map[string]any) bool {
	for k := range filters {
		if sqlguard.HasOperatorKey(k) {
			return true
		}
	}
	return false
}

// DescribeContainerTool 返回容器的字段结构概况。
// 模型偶尔会编造入参，这里无条件丢弃。
type DescribeContainerTool struct {
	remote remoteCaller
}

func (t *DescribeContainerTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "describe_container",
		Desc: "Describe the container schema: field names, types and example values. Takes no arguments.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

func (t *DescribeContainerTool) InvokableRun(ctx context.Context, _ string, _ ...tool.Option) (string, error) {
	out, err := t.remote.CallTool(ctx, "describe_container", nil)
	if err != nil {
		return "", fmt.Errorf("describe_container: %w", err)
	}
	return out, nil
}

// PassthroughTool 把远端公布的其余工具原样暴露给模型。
type PassthroughTool struct {
	remote remoteCaller
	desc   mcp.ToolDescriptor
}

func (t *PassthroughTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	params := make(map[string]*schema.ParameterInfo, len(t.desc.InputSchema.Properties))
	required := make(map[string]bool, len(t.desc.InputSchema.Required))
	for _, name := range t.desc.InputSchema.Required {
		required[name] = true
	}
	for name, prop := range t.desc.InputSchema.Properties {
		params[name] = &schema.ParameterInfo{
			Desc:     prop.Description,
			Type:     dataTypeFromSchema(prop.Type),
			Required: required[name],
		}
		if params[name].Type == schema.Array {
			params[name].ElemInfo = &schema.ParameterInfo{Type: schema.String}
		}
	}
	return &schema.ToolInfo{
		Name:        t.desc.Name,
		Desc:        t.desc.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

func (t *PassthroughTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args map[string]any
	if strings.TrimSpace(argumentsInJSON) != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
			return "", fmt.Errorf("%s: invalid arguments: %w", t.desc.Name, err)
		}
	}
	out, err := t.remote.CallTool(ctx, t.desc.Name, args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", t.desc.Name, err)
	}
	return out, nil
}

func dataTypeFromSchema(typ string) schema.DataType {
	switch typ {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}

// WrapTools 把远端工具清单转换为 Agent 可用的工具列表。
// query_cosmos / count_documents / describe_container 走定制包装
// （查询改写、过滤校验、参数丢弃），其余工具原样透传。
// 所有工具再套一层 tracedTool 做轨迹与审计记录。
func WrapTools(remote remoteCaller, descriptors []mcp.ToolDescriptor, cfg config.AgentConfig, deps TraceDeps) []tool.BaseTool {
	deps.ToolTimeout = cfg.ToolTimeout
	out := make([]tool.BaseTool, 0, len(descriptors))
	for _, d := range descriptors {
		var t tool.InvokableTool
		switch d.Name {
		case "query_cosmos":
			t = &QueryCosmosTool{remote: remote, enforceGuard: cfg.EnforceLatestGuard}
		case "count_documents":
			t = &CountDocumentsTool{
				remote:           remote,
				enforceGuard:     cfg.EnforceLatestGuard,
				sqlCountFallback: cfg.EnableSQLCountFallback,
			}
		case "describe_container":
			t = &DescribeContainerTool{remote: remote}
		default:
			t = &PassthroughTool{remote: remote, desc: d}
		}
		out = append(out, wrapWithTrace(t, deps))
	}
	return out
}

// GetToolsInfo 收集工具元信息，用于绑定到 ChatModel。
func GetToolsInfo(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	toolInfos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool info: %w", err)
		}
		toolInfos = append(toolInfos, info)
	}
	return toolInfos, nil
}
