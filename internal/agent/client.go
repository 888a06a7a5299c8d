package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wwwzy/CosmoAgent/internal/config"
	"github.com/wwwzy/CosmoAgent/internal/mcp"
	"github.com/wwwzy/CosmoAgent/internal/metrics"
	"github.com/wwwzy/CosmoAgent/internal/storage"
)

// oracle 是 Client 看到的推理入口，便于测试替换真实模型。
type oracle interface {
	Invoke(ctx context.Context, input string) (string, error)
}

type reactOracle struct {
	agent *react.Agent
}

func (o *reactOracle) Invoke(ctx context.Context, input string) (string, error) {
	msg, err := o.agent.Generate(ctx, []*schema.Message{schema.UserMessage(input)})
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

// remoteClient 是 Client 对工具服务端的完整视图。
type remoteClient interface {
	remoteCaller
	ListTools(ctx context.Context) ([]mcp.ToolDescriptor, error)
}

// Answer 是一次提问的完整结果。
type Answer struct {
	Question       string  `json:"question"`
	Answer         string  `json:"answer"`
	Steps          []Step  `json:"steps"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	TraceID        string  `json:"trace_id"`
	ErrorMessage   string  `json:"error,omitempty"`
}

// Client 把远端工具、ReAct Agent 与客户端补救逻辑（位置回退、
// 温和重试）编排成一个问答入口。
type Client struct {
	cfg    *config.Config
	log    *zap.Logger
	remote remoteClient
	store  *storage.Storage

	tools  int
	oracle oracle

	schemaMu    sync.Mutex
	schemaCache string
}

func NewClient(cfg *config.Config, log *zap.Logger, remote remoteClient, store *storage.Storage) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, log: log, remote: remote, store: store}
}

// Connect 拉取远端工具清单并组装 Agent。必须在 Ask 之前调用。
func (c *Client) Connect(ctx context.Context) error {
	listCtx, cancel := context.WithTimeout(ctx, c.cfg.MCP.ConnectTimeout)
	defer cancel()

	descriptors, err := c.remote.ListTools(listCtx)
	if err != nil {
		return fmt.Errorf("list remote tools: %w", err)
	}
	if len(descriptors) == 0 {
		return errors.New("remote exposes no tools")
	}

	tools := WrapTools(c.remote, descriptors, c.cfg.Agent, TraceDeps{Store: c.store, Log: c.log})

	a, err := BuildAgent(ctx, c.cfg.Ark, c.cfg.Agent, tools)
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}

	c.tools = len(tools)
	c.oracle = &reactOracle{agent: a}

	c.log.Info("connected to tool server", zap.Int("tools", len(tools)))
	return nil
}

// ToolCount 返回已接入的工具数量。
func (c *Client) ToolCount() int {
	return c.tools
}

// Schema 返回容器结构描述。结果在首次成功获取后缓存，
// 容器结构在一次会话内视为不变。
func (c *Client) Schema(ctx context.Context) (string, error) {
	if c.oracle == nil {
		return "", errors.New("client not connected")
	}

	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()
	if c.schemaCache != "" {
		return c.schemaCache, nil
	}

	out, err := c.remote.CallTool(ctx, "describe_container", map[string]any{})
	if err != nil {
		return "", fmt.Errorf("describe_container: %w", err)
	}
	c.schemaCache = out
	return out, nil
}

const greetingAnswer = "Hello! Ask me a question about the documents, for example: how many offices are in Miami?"

// Ask 处理一个自然语言问题并返回回答与执行轨迹。
func (c *Client) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is empty")
	}
	if c.oracle == nil {
		return nil, errors.New("client not connected")
	}

	// 纯寒暄不跑链路，不计时也不落历史
	if IsGreeting(question) {
		return &Answer{
			Question:       question,
			Answer:         greetingAnswer,
			Steps:          []Step{},
			ElapsedSeconds: 0.0,
		}, nil
	}

	start := time.Now()
	traceID := uuid.NewString()
	rec := NewRecorder()
	ctx = WithRecorder(WithTraceID(ctx, traceID), rec)

	prompt := question
	if from, to, ok := TemporalWindow(question, todayFrom(c.cfg.Agent)); ok {
		prompt = fmt.Sprintf("(Temporal window: %s to %s) %s", from, to, question)
	}

	answer, runErr := c.invokeWithTimeout(ctx, prompt)
	if runErr != nil {
		// Agent 失败降级为空回答，让补救逻辑有机会兜底
		c.log.Warn("agent run failed", zap.String("trace_id", traceID), zap.Error(runErr))
		rec.Append(Step{
			Action:      "agent_error",
			Input:       prompt,
			Observation: runErr.Error(),
			Synthetic:   true,
		})
		answer = ""
	}

	// 位置回退：最后一次查询零命中时换字段重试
	if failedQuery, ok := lastZeroQuery(rec.Steps()); ok {
		if resolved, hit := c.resolveLocationFallback(ctx, rec, failedQuery); hit {
			answer = resolved
		}
	}

	// 温和重试：要求取数的问题拿到了空回答，补一个提示再跑一轮
	if wantsRecords(question) && len(strings.TrimSpace(answer)) < 2 {
		retryPrompt := prompt + fmt.Sprintf("\nThe previous attempt produced no answer. Run a query and answer with the data. When listing records, add TOP %d to the query.", c.cfg.Agent.DefaultTopN)
		if retryAnswer, err := c.invokeWithTimeout(ctx, retryPrompt); err == nil && strings.TrimSpace(retryAnswer) != "" {
			answer = retryAnswer
			runErr = nil
		}
	}

	elapsedRaw := time.Since(start).Seconds()
	elapsed := math.Round(elapsedRaw*100) / 100
	metrics.RequestDuration.Observe(elapsedRaw)

	result := &Answer{
		Question:       question,
		Answer:         answer,
		Steps:          rec.Steps(),
		ElapsedSeconds: elapsed,
		TraceID:        traceID,
	}
	if runErr != nil {
		result.ErrorMessage = runErr.Error()
	}

	if c.store != nil {
		hist := &storage.QueryHistory{
			TraceID:        traceID,
			Question:       question,
			Answer:         answer,
			ErrorMessage:   result.ErrorMessage,
			StepCount:      len(result.Steps),
			ElapsedSeconds: elapsed,
		}
		if err := c.store.InsertQueryHistory(ctx, hist); err != nil {
			c.log.Warn("insert query history failed", zap.Error(err))
		}
	}

	return result, nil
}

func (c *Client) invokeWithTimeout(ctx context.Context, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.cfg.Agent.Timeout)
	defer cancel()
	return c.oracle.Invoke(runCtx, prompt)
}
