package agent

import (
	"context"
)

type traceIDKey struct{}

// WithTraceID 将 TraceID 注入 context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// GetTraceID 从 context 获取 TraceID
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

type recorderKey struct{}

// WithRecorder 将步骤记录器注入 context，供工具包装层写入执行轨迹。
func WithRecorder(ctx context.Context, rec *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

// RecorderFrom 从 context 获取步骤记录器，未注入时返回 nil。
func RecorderFrom(ctx context.Context) *Recorder {
	if v, ok := ctx.Value(recorderKey{}).(*Recorder); ok {
		return v
	}
	return nil
}
