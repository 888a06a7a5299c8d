package ui

import (
	"context"

	"github.com/wwwzy/CosmoAgent/internal/agent"
)

// ChatBackend 是 UI 对问答能力的最小依赖。
type ChatBackend interface {
	Ask(ctx context.Context, question string) (*agent.Answer, error)
}

type ChatUI interface {
	Run(ctx context.Context, backend ChatBackend, opts ChatOptions) error
}

type ChatOptions struct {
	// ShowSteps 控制是否在回答后打印执行轨迹。
	ShowSteps bool
}
