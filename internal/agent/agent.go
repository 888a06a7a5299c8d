package agent

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/wwwzy/CosmoAgent/internal/config"
)

// BuildAgent 组装 ReAct Agent：Ark ChatModel 绑定工具集，
// 消息修饰器负责系统提示词与参数清洗。
func BuildAgent(ctx context.Context, arkConfig config.ArkConfig, agentConfig config.AgentConfig, tools []tool.BaseTool) (*react.Agent, error) {
	chatModel, err := NewChatModel(ctx, arkConfig)
	if err != nil {
		return nil, err
	}

	toolsInfo, err := GetToolsInfo(ctx, tools)
	if err != nil {
		return nil, err
	}
	toolCallingModel, err := chatModel.WithTools(toolsInfo)
	if err != nil {
		return nil, err
	}

	// 每轮迭代消耗一次模型调用加一次工具调用，另留一次收尾回答
	maxStep := 2*agentConfig.MaxIterations + 1

	a, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: toolCallingModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: tools,
		},
		MessageModifier: NewMessageModifier(agentConfig),
		MaxStep:         maxStep,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
