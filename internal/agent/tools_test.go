package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwwzy/CosmoAgent/internal/config"
	"github.com/wwwzy/CosmoAgent/internal/mcp"
	"github.com/wwwzy/CosmoAgent/internal/sqlguard"
)

type remoteCall struct {
	name string
	args map[string]any
}

// fakeRemote 记录每次工具调用，按 handler 返回结果。
type fakeRemote struct {
	calls   []remoteCall
	tools   []mcp.ToolDescriptor
	handler func(name string, args map[string]any) (string, error)
}

func (f *fakeRemote) CallTool(_ context.Context, name string, args map[string]any) (string, error) {
	f.calls = append(f.calls, remoteCall{name: name, args: args})
	if f.handler != nil {
		return f.handler(name, args)
	}
	return `{"results": []}`, nil
}

func (f *fakeRemote) ListTools(_ context.Context) ([]mcp.ToolDescriptor, error) {
	return f.tools, nil
}

func TestQueryCosmosTool_RewritesQuery(t *testing.T) {
	remote := &fakeRemote{handler: func(string, map[string]any) (string, error) {
		return `{"results": [{"id": 1}]}`, nil
	}}
	tl := &QueryCosmosTool{remote: remote, enforceGuard: true}

	out, err := tl.InvokableRun(context.Background(),
		"{\"query\": \"```sql\\nSELECT * FROM c WHERE c.City = 'Miami'\\n```\"}")
	require.NoError(t, err)
	assert.Equal(t, `{"results": [{"id": 1}]}`, out)

	require.Len(t, remote.calls, 1)
	assert.Equal(t, "query_cosmos", remote.calls[0].name)
	assert.Equal(t,
		"SELECT * FROM c WHERE c.latest = 0 AND c.City = 'Miami'",
		remote.calls[0].args["query"])
}

func TestQueryCosmosTool_EmptyQuery(t *testing.T) {
	tl := &QueryCosmosTool{remote: &fakeRemote{}, enforceGuard: true}

	_, err := tl.InvokableRun(context.Background(), `{"query": "  "}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestCountDocumentsTool_InjectsLatest(t *testing.T) {
	remote := &fakeRemote{handler: func(string, map[string]any) (string, error) {
		return `{"count": 7}`, nil
	}}
	tl := &CountDocumentsTool{remote: remote, enforceGuard: true, sqlCountFallback: true}

	out, err := tl.InvokableRun(context.Background(), `{"filters": {"c.City": "Miami"}}`)
	require.NoError(t, err)
	assert.Equal(t, `{"count": 7}`, out)

	require.Len(t, remote.calls, 1)
	assert.Equal(t, "count_documents", remote.calls[0].name)
	filters, ok := remote.calls[0].args["filters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Miami", filters["City"])
	assert.Equal(t, 0, filters["latest"])
}

func TestCountDocumentsTool_OperatorKeyDowngrade(t *testing.T) {
	// 运算符键整体被丢弃，只剩守卫条件参与计数
	remote := &fakeRemote{handler: func(string, map[string]any) (string, error) {
		return `{"results": [42]}`, nil
	}}
	tl := &CountDocumentsTool{remote: remote, enforceGuard: true, sqlCountFallback: true}

	out, err := tl.InvokableRun(context.Background(), `{"filters": {"Price >": 100}}`)
	require.NoError(t, err)
	assert.Equal(t, `{"results": [42]}`, out)

	require.Len(t, remote.calls, 1)
	assert.Equal(t, "query_cosmos", remote.calls[0].name)
	assert.Equal(t,
		"SELECT VALUE COUNT(1) FROM c WHERE c.latest = 0",
		remote.calls[0].args["query"])
}

func TestCountDocumentsTool_OperatorKeyDropsEqualityFilters(t *testing.T) {
	// 混合过滤里的等值键同样被丢弃，不混入退化后的计数
	remote := &fakeRemote{handler: func(string, map[string]any) (string, error) {
		return `{"results": [42]}`, nil
	}}
	tl := &CountDocumentsTool{remote: remote, enforceGuard: true, sqlCountFallback: true}

	_, err := tl.InvokableRun(context.Background(), `{"filters": {"City": "Miami", "Price >": 100}}`)
	require.NoError(t, err)

	require.Len(t, remote.calls, 1)
	assert.Equal(t,
		"SELECT VALUE COUNT(1) FROM c WHERE c.latest = 0",
		remote.calls[0].args["query"])
}

func TestCountDocumentsTool_OperatorKeyDowngradeWithoutGuard(t *testing.T) {
	remote := &fakeRemote{handler: func(string, map[string]any) (string, error) {
		return `{"results": [7]}`, nil
	}}
	tl := &CountDocumentsTool{remote: remote, enforceGuard: false, sqlCountFallback: true}

	_, err := tl.InvokableRun(context.Background(), `{"filters": {"Price >": 100}}`)
	require.NoError(t, err)

	require.Len(t, remote.calls, 1)
	assert.Equal(t,
		"SELECT VALUE COUNT(1) FROM c WHERE 1=1",
		remote.calls[0].args["query"])
}

func TestCountDocumentsTool_OperatorKeyRejected(t *testing.T) {
	tl := &CountDocumentsTool{remote: &fakeRemote{}, enforceGuard: true, sqlCountFallback: false}

	_, err := tl.InvokableRun(context.Background(), `{"filters": {"date between ": "x"}}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlguard.ErrOperatorNotAllowed)
}

func TestCountDocumentsTool_RemoteFailureFallsBackToSQL(t *testing.T) {
	remote := &fakeRemote{handler: func(name string, _ map[string]any) (string, error) {
		if name == "count_documents" {
			return "", errors.New("count endpoint unavailable")
		}
		return `{"results": [5]}`, nil
	}}
	tl := &CountDocumentsTool{remote: remote, enforceGuard: true, sqlCountFallback: true}

	out, err := tl.InvokableRun(context.Background(), `{"filters": {"City": "Miami"}}`)
	require.NoError(t, err)
	assert.Equal(t, `{"results": [5]}`, out)

	require.Len(t, remote.calls, 2)
	assert.Equal(t, "count_documents", remote.calls[0].name)
	assert.Equal(t, "query_cosmos", remote.calls[1].name)
	assert.Equal(t,
		"SELECT VALUE COUNT(1) FROM c WHERE c.latest = 0 AND c.City = 'Miami'",
		remote.calls[1].args["query"])
}

func TestCountDocumentsTool_BothPathsFail(t *testing.T) {
	remote := &fakeRemote{handler: func(name string, _ map[string]any) (string, error) {
		if name == "count_documents" {
			return "", errors.New("count endpoint unavailable")
		}
		return "", errors.New("query endpoint unavailable")
	}}
	tl := &CountDocumentsTool{remote: remote, enforceGuard: true, sqlCountFallback: true}

	_, err := tl.InvokableRun(context.Background(), `{"filters": {"City": "Miami"}}`)
	require.Error(t, err)
	// 两路失败都要在错误里可见
	assert.Contains(t, err.Error(), "count endpoint unavailable")
	assert.Contains(t, err.Error(), "sql count fallback")
	assert.Contains(t, err.Error(), "query endpoint unavailable")
}

func TestCountDocumentsTool_InvalidFilters(t *testing.T) {
	tl := &CountDocumentsTool{remote: &fakeRemote{}, enforceGuard: true, sqlCountFallback: true}

	_, err := tl.InvokableRun(context.Background(), `{"filters": "not an object"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlguard.ErrInvalidFilterFormat)
}

func TestDescribeContainerTool_DiscardsArguments(t *testing.T) {
	remote := &fakeRemote{handler: func(string, map[string]any) (string, error) {
		return `{"fields": ["City", "Region"]}`, nil
	}}
	tl := &DescribeContainerTool{remote: remote}

	out, err := tl.InvokableRun(context.Background(), `{"bogus": true}`)
	require.NoError(t, err)
	assert.Contains(t, out, "City")

	require.Len(t, remote.calls, 1)
	assert.Empty(t, remote.calls[0].args)
}

func TestPassthroughTool(t *testing.T) {
	desc := mcp.ToolDescriptor{
		Name:        "list_distinct_values",
		Description: "List distinct values of a field",
		InputSchema: mcp.InputSchema{
			Type: "object",
			Properties: map[string]mcp.Property{
				"field": {Type: "string", Description: "Field name"},
				"limit": {Type: "integer"},
			},
			Required: []string{"field"},
		},
	}
	remote := &fakeRemote{handler: func(string, map[string]any) (string, error) {
		return `{"results": ["Miami", "Tampa"]}`, nil
	}}
	tl := &PassthroughTool{remote: remote, desc: desc}

	info, err := tl.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "list_distinct_values", info.Name)

	out, err := tl.InvokableRun(context.Background(), `{"field": "City"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Miami")

	require.Len(t, remote.calls, 1)
	assert.Equal(t, "list_distinct_values", remote.calls[0].name)
	assert.Equal(t, "City", remote.calls[0].args["field"])
}

func TestWrapTools_StrategyTable(t *testing.T) {
	descriptors := []mcp.ToolDescriptor{
		{Name: "query_cosmos"},
		{Name: "count_documents"},
		{Name: "describe_container"},
		{Name: "find_implied_links"},
	}
	cfg := config.DefaultConfig().Agent

	tools := WrapTools(&fakeRemote{}, descriptors, cfg, TraceDeps{})
	require.Len(t, tools, 4)

	names := make([]string, 0, len(tools))
	for _, tl := range tools {
		info, err := tl.Info(context.Background())
		require.NoError(t, err)
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"query_cosmos", "count_documents", "describe_container", "find_implied_links"}, names)

	// 包装层应保留 InvokableTool 语义
	traced, ok := tools[0].(*tracedTool)
	require.True(t, ok)
	_, isGuarded := traced.impl.(*QueryCosmosTool)
	assert.True(t, isGuarded)
	traced, ok = tools[3].(*tracedTool)
	require.True(t, ok)
	_, isPassthrough := traced.impl.(*PassthroughTool)
	assert.True(t, isPassthrough)
}

func TestTracedTool_RecordsSteps(t *testing.T) {
	remote := &fakeRemote{handler: func(string, map[string]any) (string, error) {
		return `{"results": []}`, nil
	}}
	tl := wrapWithTrace(&QueryCosmosTool{remote: remote, enforceGuard: true}, TraceDeps{})

	rec := NewRecorder()
	ctx := WithRecorder(context.Background(), rec)

	invokable, ok := tl.(*tracedTool)
	require.True(t, ok)
	_, err := invokable.InvokableRun(ctx, `{"query": "SELECT * FROM c"}`)
	require.NoError(t, err)

	steps := rec.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, "query_cosmos", steps[0].Action)
	assert.False(t, steps[0].Synthetic)
	assert.Equal(t, `{"results": []}`, steps[0].Observation)
}

// deadlineCheckTool 记录执行时上下文是否带截止时间。
type deadlineCheckTool struct {
	sawDeadline bool
}

func (d *deadlineCheckTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        "deadline_check",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

func (d *deadlineCheckTool) InvokableRun(ctx context.Context, _ string, _ ...tool.Option) (string, error) {
	_, d.sawDeadline = ctx.Deadline()
	return "{}", nil
}

func TestTracedTool_AppliesToolTimeout(t *testing.T) {
	impl := &deadlineCheckTool{}
	tl := wrapWithTrace(impl, TraceDeps{ToolTimeout: time.Second})

	invokable, ok := tl.(*tracedTool)
	require.True(t, ok)
	_, err := invokable.InvokableRun(context.Background(), "{}")
	require.NoError(t, err)
	assert.True(t, impl.sawDeadline)
}

func TestTracedTool_NoTimeoutWhenUnset(t *testing.T) {
	impl := &deadlineCheckTool{}
	tl := wrapWithTrace(impl, TraceDeps{})

	invokable, ok := tl.(*tracedTool)
	require.True(t, ok)
	_, err := invokable.InvokableRun(context.Background(), "{}")
	require.NoError(t, err)
	assert.False(t, impl.sawDeadline)
}

func TestWrapTools_SetsToolTimeout(t *testing.T) {
	cfg := config.DefaultConfig().Agent
	tools := WrapTools(&fakeRemote{}, []mcp.ToolDescriptor{{Name: "query_cosmos"}}, cfg, TraceDeps{})

	require.Len(t, tools, 1)
	traced, ok := tools[0].(*tracedTool)
	require.True(t, ok)
	assert.Equal(t, cfg.ToolTimeout, traced.deps.ToolTimeout)
}
