package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwwzy/CosmoAgent/internal/config"
	"github.com/wwwzy/CosmoAgent/internal/storage"
)

// stubOracle 按调用顺序返回预置的响应，替代真实模型。
type stubOracle struct {
	responses []func(ctx context.Context, input string) (string, error)
	calls     int
}

func (s *stubOracle) Invoke(ctx context.Context, input string) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i](ctx, input)
}

func newTestClient(remote *fakeRemote, o oracle) *Client {
	cfg := config.DefaultConfig()
	c := NewClient(&cfg, nil, remote, nil)
	c.oracle = o
	return c
}

func TestAsk_GreetingShortCircuit(t *testing.T) {
	o := &stubOracle{responses: []func(context.Context, string) (string, error){
		func(context.Context, string) (string, error) {
			t.Fatal("oracle should not be called for greetings")
			return "", nil
		},
	}}
	c := newTestClient(&fakeRemote{}, o)

	ans, err := c.Ask(context.Background(), "thanks!")
	require.NoError(t, err)
	assert.Equal(t, greetingAnswer, ans.Answer)
	assert.Equal(t, 0.0, ans.ElapsedSeconds)
	assert.Empty(t, ans.Steps)
	assert.Zero(t, o.calls)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	c := newTestClient(&fakeRemote{}, &stubOracle{})
	_, err := c.Ask(context.Background(), "   ")
	require.Error(t, err)
}

func TestAsk_LocationFallback(t *testing.T) {
	remote := &fakeRemote{handler: func(_ string, args map[string]any) (string, error) {
		q, _ := args["query"].(string)
		if strings.Contains(q, "c.Region LIKE '%Springfield%'") {
			return `{"results": [{"id": 1}, {"id": 2}, {"id": 3}]}`, nil
		}
		return `{"results": []}`, nil
	}}

	o := &stubOracle{responses: []func(context.Context, string) (string, error){
		func(ctx context.Context, _ string) (string, error) {
			// 模拟一次零命中的模型查询步骤
			RecorderFrom(ctx).Append(Step{
				Action:      "query_cosmos",
				Input:       `{"query": "SELECT * FROM c WHERE c.City = 'Springfield' AND c.latest = 0"}`,
				Observation: `{"results": []}`,
			})
			return "I could not find any records.", nil
		},
	}}
	c := newTestClient(remote, o)

	ans, err := c.Ask(context.Background(), "how many offices in Springfield")
	require.NoError(t, err)
	assert.Equal(t, "Found 3 records using Region LIKE '%Springfield%'.", ans.Answer)

	var synthetic []string
	for _, s := range ans.Steps {
		if s.Synthetic {
			synthetic = append(synthetic, s.Action)
		}
	}
	assert.Equal(t, []string{"client_fallback_Region"}, synthetic)
}

func TestAsk_LocationFallback_MissThenHit(t *testing.T) {
	remote := &fakeRemote{handler: func(_ string, args map[string]any) (string, error) {
		q, _ := args["query"].(string)
		if strings.Contains(q, "c.Area LIKE '%Springfield%'") {
			return `{"results": [{"id": 1}, {"id": 2}]}`, nil
		}
		return `{"results": []}`, nil
	}}

	o := &stubOracle{responses: []func(context.Context, string) (string, error){
		func(ctx context.Context, _ string) (string, error) {
			RecorderFrom(ctx).Append(Step{
				Action:      "query_cosmos",
				Input:       `{"query": "SELECT * FROM c WHERE c.City = 'Springfield'"}`,
				Observation: `{"results": [0]}`,
			})
			return "", nil
		},
	}}
	c := newTestClient(remote, o)

	ans, err := c.Ask(context.Background(), "how many offices in Springfield")
	require.NoError(t, err)
	assert.Equal(t, "Found 2 records using Area LIKE '%Springfield%'.", ans.Answer)

	var synthetic []string
	for _, s := range ans.Steps {
		if s.Synthetic {
			synthetic = append(synthetic, s.Action)
		}
	}
	// Region 先试探落空，Area 命中后停止，District 不再尝试
	assert.Equal(t, []string{"client_fallback_Region", "client_fallback_Area"}, synthetic)
}

func TestAsk_LocationFallback_NonPrimaryFieldDoesNotTrigger(t *testing.T) {
	remote := &fakeRemote{}

	o := &stubOracle{responses: []func(context.Context, string) (string, error){
		func(ctx context.Context, _ string) (string, error) {
			// 零命中查询落在非首位的回退字段上
			RecorderFrom(ctx).Append(Step{
				Action:      "query_cosmos",
				Input:       `{"query": "SELECT * FROM c WHERE c.Region = 'Springfield' AND c.latest = 0"}`,
				Observation: `{"results": []}`,
			})
			return "No offices in that region.", nil
		},
	}}
	c := newTestClient(remote, o)

	ans, err := c.Ask(context.Background(), "how many offices in Springfield region")
	require.NoError(t, err)
	// 模型的回答保持原样，不做任何字段试探
	assert.Equal(t, "No offices in that region.", ans.Answer)
	assert.Empty(t, remote.calls)
	for _, s := range ans.Steps {
		assert.False(t, s.Synthetic)
	}
}

func TestAsk_LocationFallback_StopsOnFirstError(t *testing.T) {
	remote := &fakeRemote{handler: func(_ string, args map[string]any) (string, error) {
		q, _ := args["query"].(string)
		if strings.Contains(q, "c.Region LIKE") {
			return "", errors.New("query endpoint unavailable")
		}
		return `{"results": [{"id": 1}]}`, nil
	}}

	o := &stubOracle{responses: []func(context.Context, string) (string, error){
		func(ctx context.Context, _ string) (string, error) {
			RecorderFrom(ctx).Append(Step{
				Action:      "query_cosmos",
				Input:       `{"query": "SELECT * FROM c WHERE c.City = 'Springfield'"}`,
				Observation: `{"results": []}`,
			})
			return "", nil
		},
	}}
	c := newTestClient(remote, o)

	ans, err := c.Ask(context.Background(), "how many offices in Springfield")
	require.NoError(t, err)
	assert.Empty(t, ans.Answer)

	var synthetic []string
	for _, s := range ans.Steps {
		if s.Synthetic {
			synthetic = append(synthetic, s.Action)
		}
	}
	// 首次试探失败即终止，Area/District 不再尝试
	assert.Equal(t, []string{"client_fallback_error"}, synthetic)
	assert.Len(t, remote.calls, 1)
}

func TestAsk_GentleRetry(t *testing.T) {
	o := &stubOracle{responses: []func(context.Context, string) (string, error){
		func(context.Context, string) (string, error) { return " ", nil },
		func(_ context.Context, input string) (string, error) {
			// 重试轮提示要带上配置的默认页大小
			if !strings.Contains(input, "TOP 25") {
				return "", errors.New("expected retry hint")
			}
			return "Here are 3 offices: A, B, C.", nil
		},
	}}
	c := newTestClient(&fakeRemote{}, o)

	ans, err := c.Ask(context.Background(), "show offices in Miami")
	require.NoError(t, err)
	assert.Equal(t, "Here are 3 offices: A, B, C.", ans.Answer)
	assert.Equal(t, 2, o.calls)
}

func TestAsk_AgentErrorDegrades(t *testing.T) {
	o := &stubOracle{responses: []func(context.Context, string) (string, error){
		func(context.Context, string) (string, error) {
			return "", errors.New("model unavailable")
		},
	}}
	c := newTestClient(&fakeRemote{}, o)

	ans, err := c.Ask(context.Background(), "how many offices are there")
	require.NoError(t, err)
	assert.Empty(t, ans.Answer)
	assert.Contains(t, ans.ErrorMessage, "model unavailable")

	require.Len(t, ans.Steps, 1)
	assert.Equal(t, "agent_error", ans.Steps[0].Action)
	assert.True(t, ans.Steps[0].Synthetic)
}

func TestAsk_TemporalWindowPrefix(t *testing.T) {
	var seen string
	o := &stubOracle{responses: []func(context.Context, string) (string, error){
		func(_ context.Context, input string) (string, error) {
			seen = input
			return "There were 12 sales.", nil
		},
	}}
	c := newTestClient(&fakeRemote{}, o)

	_, err := c.Ask(context.Background(), "how many sales last month")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(seen, "(Temporal window: "))
	assert.Contains(t, seen, "how many sales last month")
}

func TestAsk_NotConnected(t *testing.T) {
	cfg := config.DefaultConfig()
	c := NewClient(&cfg, nil, &fakeRemote{}, nil)

	_, err := c.Ask(context.Background(), "how many offices")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestSchema_CachesResult(t *testing.T) {
	remote := &fakeRemote{handler: func(name string, _ map[string]any) (string, error) {
		require.Equal(t, "describe_container", name)
		return `{"fields": {"City": "string", "latest": "number"}}`, nil
	}}
	c := newTestClient(remote, &stubOracle{})

	first, err := c.Schema(context.Background())
	require.NoError(t, err)
	assert.Contains(t, first, "City")

	second, err := c.Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// 第二次命中缓存，不再触发远端调用
	assert.Len(t, remote.calls, 1)
}

func TestSchema_NotConnected(t *testing.T) {
	cfg := config.DefaultConfig()
	c := NewClient(&cfg, nil, &fakeRemote{}, nil)

	_, err := c.Schema(context.Background())
	require.Error(t, err)
}

func TestAsk_ConfiguredToday(t *testing.T) {
	var seen string
	o := &stubOracle{responses: []func(context.Context, string) (string, error){
		func(_ context.Context, input string) (string, error) {
			seen = input
			return "There were 12 sales.", nil
		},
	}}
	cfg := config.DefaultConfig()
	cfg.Agent.Today = "2024-03-15"
	c := NewClient(&cfg, nil, &fakeRemote{}, nil)
	c.oracle = o

	_, err := c.Ask(context.Background(), "how many sales last month")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(seen, "(Temporal window: 2024-02-01 to 2024-03-01)"))
}

func TestAsk_PersistsSyntheticSteps(t *testing.T) {
	store, err := storage.Open(context.Background(), storage.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	remote := &fakeRemote{handler: func(_ string, args map[string]any) (string, error) {
		q, _ := args["query"].(string)
		if strings.Contains(q, "c.Region LIKE '%Springfield%'") {
			return `{"results": [{"id": 1}]}`, nil
		}
		return `{"results": []}`, nil
	}}
	o := &stubOracle{responses: []func(context.Context, string) (string, error){
		func(ctx context.Context, _ string) (string, error) {
			RecorderFrom(ctx).Append(Step{
				Action:      "query_cosmos",
				Input:       `{"query": "SELECT * FROM c WHERE c.City = 'Springfield'"}`,
				Observation: `{"results": []}`,
			})
			return "", nil
		},
	}}
	cfg := config.DefaultConfig()
	c := NewClient(&cfg, nil, remote, store)
	c.oracle = o

	ans, err := c.Ask(context.Background(), "how many offices in Springfield")
	require.NoError(t, err)
	assert.Equal(t, "Found 1 records using Region LIKE '%Springfield%'.", ans.Answer)

	rows, err := store.QueryToolInvocations(context.Background(), storage.InvocationQuery{TraceID: ans.TraceID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "client_fallback_Region", rows[0].Tool)
	assert.Equal(t, "success", rows[0].Status)
	assert.True(t, rows[0].Synthetic)
}
