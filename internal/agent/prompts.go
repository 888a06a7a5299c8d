package agent

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/wwwzy/CosmoAgent/internal/config"
)

const systemPromptTemplate = `You are a careful Cosmos DB query assistant.
You answer questions about documents in a single container by calling the available tools.

Current date: {today}

Rules you must follow:
{latest_rule}- Queries use Cosmos DB SQL syntax with the container alias "c", e.g. SELECT * FROM c WHERE c.City = 'Miami'.
- When listing records, always add TOP {top_n} to the SELECT clause to bound the result size.
- For "how many" questions prefer the count_documents tool with simple equality filters; use a SELECT VALUE COUNT(1) query only when the filters need operators.
- When the question names a time window, restrict with an ISO date range: c.Date >= 'start' AND c.Date < 'end'.
- Answer concisely and base every answer on tool observations. If a query returns nothing, say so instead of guessing.`

const latestGuardRule = "- Every query that reads documents must include the condition c.latest = 0 so only current versions are counted.\n"

// NewMessageModifier 返回每轮调用 ChatModel 前执行的消息修饰器。
// 做两件事：把无效的 tool call 参数 JSON 清洗为 "{}"，
// 以及在历史中没有 system 消息时前置注入系统提示词。
// 守卫规则只在 EnforceLatestGuard 开启时出现在提示词里。
func NewMessageModifier(cfg config.AgentConfig) func(ctx context.Context, input []*schema.Message) []*schema.Message {
	latestRule := ""
	if cfg.EnforceLatestGuard {
		latestRule = latestGuardRule
	}
	content := strings.NewReplacer(
		"{today}", todayFrom(cfg).Format(dateLayout),
		"{top_n}", strconv.Itoa(cfg.DefaultTopN),
		"{latest_rule}", latestRule,
	).Replace(systemPromptTemplate)

	return func(ctx context.Context, input []*schema.Message) []*schema.Message {
		sanitized := input
		changed := false
		for i, m := range input {
			if m == nil {
				continue
			}
			if m.Role != schema.Assistant || len(m.ToolCalls) == 0 {
				continue
			}
			toolCallsChanged := false
			newToolCalls := m.ToolCalls
			for j := range m.ToolCalls {
				args := strings.TrimSpace(m.ToolCalls[j].Function.Arguments)
				if args == "" || args == "null" || !json.Valid([]byte(args)) {
					if !toolCallsChanged {
						newToolCalls = append([]schema.ToolCall(nil), m.ToolCalls...)
						toolCallsChanged = true
					}
					newToolCalls[j].Function.Arguments = "{}"
				}
			}
			if toolCallsChanged {
				if !changed {
					sanitized = append([]*schema.Message(nil), input...)
					changed = true
				}
				nm := *m
				nm.ToolCalls = newToolCalls
				sanitized[i] = &nm
			}
		}

		for _, m := range sanitized {
			if m == nil {
				continue
			}
			if m.Role == schema.System {
				return sanitized
			}
		}

		sys := schema.SystemMessage(content)
		out := make([]*schema.Message, 0, len(sanitized)+1)
		out = append(out, sys)
		out = append(out, sanitized...)
		return out
	}
}
