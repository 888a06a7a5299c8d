package agent

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/wwwzy/CosmoAgent/internal/metrics"
	"github.com/wwwzy/CosmoAgent/internal/storage"
)

const traceTruncateLimit = 2048

// Step 是一次提问执行轨迹中的一个步骤。
type Step struct {
	// Action 为工具名，合成步骤用 client_fallback_* 前缀。
	Action string `json:"action"`
	// Input 为入参 JSON 文本。
	Input string `json:"input"`
	// Observation 为工具输出或错误文本。
	Observation string `json:"observation"`
	// Synthetic 标记该步骤由客户端合成，而非模型发起。
	Synthetic bool `json:"synthetic"`
}

// Recorder 收集一次提问的全部步骤，跨工具调用并发安全。
type Recorder struct {
	mu    sync.Mutex
	steps []Step
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Append(step Step) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

// Steps 返回当前步骤快照。
func (r *Recorder) Steps() []Step {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// TraceDeps 是轨迹包装层的外部依赖，均可为空。
type TraceDeps struct {
	Store *storage.Storage
	Log   *zap.Logger
	// ToolTimeout 为单次工具调用的时限，零值表示不限。
	ToolTimeout time.Duration
}

// tracedTool 包装一个工具，在执行前后写入三路记录：
// context 中的 Recorder（本次提问的轨迹）、storage 审计表、Prometheus 指标。
type tracedTool struct {
	impl tool.InvokableTool
	deps TraceDeps
}

func wrapWithTrace(t tool.InvokableTool, deps TraceDeps) tool.BaseTool {
	return &tracedTool{impl: t, deps: deps}
}

func (t *tracedTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return t.impl.Info(ctx)
}

func (t *tracedTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	info, err := t.impl.Info(ctx)
	action := "unknown"
	if err == nil && info != nil {
		action = info.Name
	}

	traceID := GetTraceID(ctx)
	now := time.Now().UTC()
	record := &storage.ToolInvocation{
		TraceID:    traceID,
		Tool:       action,
		ParamsJSON: truncate(argumentsInJSON, traceTruncateLimit),
		Status:     "running",
		StartedAt:  now,
	}

	// 落库失败不阻断工具执行
	if t.deps.Store != nil {
		if insErr := t.deps.Store.InsertToolInvocation(ctx, record); insErr != nil {
			t.logWarn("insert tool invocation failed", insErr)
		}
	}

	// 容错：截断的参数 JSON 补全为空对象
	safeArgs := argumentsInJSON
	if safeArgs == "{" || safeArgs == "" {
		safeArgs = "{}"
	}

	runCtx := ctx
	if t.deps.ToolTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.deps.ToolTimeout)
		defer cancel()
	}
	result, runErr := t.impl.InvokableRun(runCtx, safeArgs, opts...)

	finishedAt := time.Now().UTC()
	status := "success"
	observation := result
	var errMsg *string
	var resultJSON *string

	if runErr != nil {
		status = "failed"
		observation = runErr.Error()
		e := truncate(runErr.Error(), traceTruncateLimit)
		errMsg = &e
	} else {
		r := truncate(result, traceTruncateLimit)
		resultJSON = &r
	}

	if rec := RecorderFrom(ctx); rec != nil {
		rec.Append(Step{
			Action:      action,
			Input:       argumentsInJSON,
			Observation: observation,
		})
	}

	metrics.ToolInvocationsTotal.WithLabelValues(action, status).Inc()

	if t.deps.Store != nil && record.ID != 0 {
		update := storage.InvocationUpdate{
			Status:       &status,
			ResultJSON:   resultJSON,
			ErrorMessage: errMsg,
			FinishedAt:   &finishedAt,
		}
		if upErr := t.deps.Store.UpdateToolInvocation(ctx, record.ID, update); upErr != nil {
			t.logWarn("update tool invocation failed", upErr)
		}
	}

	return result, runErr
}

func (t *tracedTool) logWarn(msg string, err error) {
	if t.deps.Log != nil {
		t.deps.Log.Warn(msg, zap.Error(err))
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}
