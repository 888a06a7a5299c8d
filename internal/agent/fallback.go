package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wwwzy/CosmoAgent/internal/metrics"
	"github.com/wwwzy/CosmoAgent/internal/observe"
	"github.com/wwwzy/CosmoAgent/internal/sqlguard"
	"github.com/wwwzy/CosmoAgent/internal/storage"
)

// lastZeroQuery 从轨迹末尾找最近一次零命中的查询步骤，返回其查询文本。
func lastZeroQuery(steps []Step) (string, bool) {
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.Action != "query_cosmos" || s.Synthetic {
			continue
		}
		if !observe.IsZero(s.Observation) {
			return "", false
		}
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(s.Input), &args); err == nil && args.Query != "" {
			return args.Query, true
		}
		return s.Input, true
	}
	return "", false
}

// resolveLocationFallback 在位置字段上做顺序试探：原查询在首个位置
// 字段上零命中时，把同一个检索词依次换到其余位置字段上用 LIKE 重查，
// 第一个有命中的字段直接给出答案。每次试探记为合成步骤并落审计表。
// 首字段之外的字段不触发试探；任何一次试探失败即终止整个序列。
func (c *Client) resolveLocationFallback(ctx context.Context, rec *Recorder, query string) (string, bool) {
	fields := c.cfg.Agent.LocationFallbackFields
	if len(fields) < 2 {
		return "", false
	}

	primary := fields[0]
	if !sqlguard.ReferencesField(query, primary) {
		return "", false
	}
	term, ok := sqlguard.ExtractFieldTerm(query, primary)
	if !ok {
		return "", false
	}

	c.log.Info("starting location fallback",
		zap.String("field", primary),
		zap.String("term", term))

	for _, f := range fields[1:] {
		probe := sqlguard.ReplaceFieldPredicate(query, primary, f, term)
		probe = sqlguard.InjectLatestGuard(sqlguard.StripFences(probe), c.cfg.Agent.EnforceLatestGuard)

		obs, err := c.remote.CallTool(ctx, "query_cosmos", map[string]any{"query": probe})
		if err != nil {
			step := Step{
				Action:      "client_fallback_error",
				Input:       probe,
				Observation: err.Error(),
				Synthetic:   true,
			}
			rec.Append(step)
			c.persistSyntheticStep(ctx, step, "failed")
			metrics.FallbackAttemptsTotal.WithLabelValues(f, "error").Inc()
			c.log.Warn("fallback probe failed", zap.String("field", f), zap.Error(err))
			return "", false
		}

		step := Step{
			Action:      "client_fallback_" + f,
			Input:       probe,
			Observation: obs,
			Synthetic:   true,
		}
		rec.Append(step)
		c.persistSyntheticStep(ctx, step, "success")

		if count, ok := observe.ExtractCount(obs); ok && count > 0 {
			metrics.FallbackAttemptsTotal.WithLabelValues(f, "hit").Inc()
			return fmt.Sprintf("Found %d records using %s LIKE '%%%s%%'.", count, f, term), true
		}
		metrics.FallbackAttemptsTotal.WithLabelValues(f, "miss").Inc()
	}

	return "", false
}

// persistSyntheticStep 把客户端合成的步骤写入审计表，失败只告警。
func (c *Client) persistSyntheticStep(ctx context.Context, step Step, status string) {
	if c.store == nil {
		return
	}
	now := time.Now().UTC()
	record := &storage.ToolInvocation{
		TraceID:    GetTraceID(ctx),
		Tool:       step.Action,
		ParamsJSON: truncate(step.Input, traceTruncateLimit),
		Status:     status,
		Synthetic:  true,
		StartedAt:  now,
		FinishedAt: now,
	}
	if status == "failed" {
		record.ErrorMessage = truncate(step.Observation, traceTruncateLimit)
	} else {
		record.ResultJSON = truncate(step.Observation, traceTruncateLimit)
	}
	if err := c.store.InsertToolInvocation(ctx, record); err != nil {
		c.log.Warn("insert synthetic invocation failed", zap.Error(err))
	}
}
