package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultLimit = 200
	maxLimit     = 5000

	defaultDeleteLimit = 500
	maxDeleteLimit     = 900
)

// InvocationQuery 用于查询工具调用记录的过滤条件。
// 所有字段都是可选过滤条件，零值表示不参与过滤。
// 时间范围使用 CreatedAt（写入时间）。
type InvocationQuery struct {
	// TraceID 精确匹配链路 ID。
	TraceID string
	// Tool 精确匹配工具名。
	Tool string
	// Status 精确匹配执行状态（running/success/failed）。
	Status string
	// From/To 过滤 CreatedAt 区间：[From, To]（两端包含）。
	From *time.Time
	To   *time.Time
	// Limit 限制返回条数；<=0 使用默认值。
	Limit int
	// Desc 按 CreatedAt 倒序返回（优先返回最新记录）。
	Desc bool
}

func (s *Storage) InsertToolInvocation(ctx context.Context, rec *ToolInvocation) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if rec == nil {
		return errors.New("invocation is nil")
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert tool invocation: %w", err)
	}
	return nil
}

func (s *Storage) QueryToolInvocations(ctx context.Context, q InvocationQuery) ([]ToolInvocation, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}

	limit := normalizeLimit(q.Limit)
	db := s.db.WithContext(ctx).Model(&ToolInvocation{})
	if q.TraceID != "" {
		db = db.Where("trace_id = ?", q.TraceID)
	}
	if q.Tool != "" {
		db = db.Where("tool = ?", q.Tool)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.From != nil {
		db = db.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("created_at <= ?", *q.To)
	}
	if q.Desc {
		db = db.Order("created_at DESC")
	} else {
		db = db.Order("created_at ASC")
	}
	db = db.Limit(limit)

	var out []ToolInvocation
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query tool invocations: %w", err)
	}
	return out, nil
}

type InvocationUpdate struct {
	Status       *string
	ResultJSON   *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (s *Storage) UpdateToolInvocation(ctx context.Context, id uint64, up InvocationUpdate) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}

	updates := make(map[string]interface{})
	if up.Status != nil {
		updates["status"] = *up.Status
	}
	if up.ResultJSON != nil {
		updates["result_json"] = *up.ResultJSON
	}
	if up.ErrorMessage != nil {
		updates["error_message"] = *up.ErrorMessage
	}
	if up.FinishedAt != nil {
		updates["finished_at"] = *up.FinishedAt
	}

	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&ToolInvocation{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update tool invocation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gormNotFoundError("tool invocation", id)
	}
	return nil
}

func (s *Storage) DeleteToolInvocationsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&ToolInvocation{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete tool invocations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Storage) DeleteToolInvocationsBeforeLimited(ctx context.Context, before time.Time, limit int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}

	limit = normalizeDeleteLimit(limit)

	var ids []uint64
	db := s.db.WithContext(ctx).Model(&ToolInvocation{}).
		Select("id").
		Where("created_at < ?", before).
		Order("id ASC").
		Limit(limit)
	if err := db.Find(&ids).Error; err != nil {
		return 0, fmt.Errorf("select tool invocation ids: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&ToolInvocation{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete tool invocations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// HistoryQuery 用于查询问答历史的过滤条件。
type HistoryQuery struct {
	// TraceID 精确匹配链路 ID。
	TraceID string
	// Contains 对 Question 做子串匹配（SQL LIKE），用于关键字检索。
	Contains string
	// From/To 过滤 CreatedAt 区间：[From, To]（两端包含）。
	From *time.Time
	To   *time.Time
	// Limit 限制返回条数；<=0 使用默认值。
	Limit int
	// Desc 按 CreatedAt 倒序返回（优先返回最新记录）。
	Desc bool
}

func (s *Storage) InsertQueryHistory(ctx context.Context, rec *QueryHistory) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if rec == nil {
		return errors.New("history is nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert query history: %w", err)
	}
	return nil
}

func (s *Storage) QueryHistoryEntries(ctx context.Context, q HistoryQuery) ([]QueryHistory, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}

	limit := normalizeLimit(q.Limit)
	db := s.db.WithContext(ctx).Model(&QueryHistory{})
	if q.TraceID != "" {
		db = db.Where("trace_id = ?", q.TraceID)
	}
	if q.Contains != "" {
		db = db.Where("question LIKE ?", "%"+q.Contains+"%")
	}
	if q.From != nil {
		db = db.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("created_at <= ?", *q.To)
	}
	if q.Desc {
		db = db.Order("created_at DESC")
	} else {
		db = db.Order("created_at ASC")
	}
	db = db.Limit(limit)

	var out []QueryHistory
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query history entries: %w", err)
	}
	return out, nil
}

func (s *Storage) DeleteQueryHistoryBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&QueryHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete query history: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountRows 返回两张表的当前行数，供 storage info 命令展示。
func (s *Storage) CountRows(ctx context.Context) (invocations int64, history int64, err error) {
	if s == nil || s.db == nil {
		return 0, 0, errors.New("storage not initialized")
	}
	if err := s.db.WithContext(ctx).Model(&ToolInvocation{}).Count(&invocations).Error; err != nil {
		return 0, 0, fmt.Errorf("count tool invocations: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&QueryHistory{}).Count(&history).Error; err != nil {
		return 0, 0, fmt.Errorf("count query history: %w", err)
	}
	return invocations, history, nil
}

func normalizeLimit(v int) int {
	if v <= 0 {
		return defaultLimit
	}
	if v > maxLimit {
		return maxLimit
	}
	return v
}

func normalizeDeleteLimit(v int) int {
	if v <= 0 {
		return defaultDeleteLimit
	}
	if v > maxDeleteLimit {
		return maxDeleteLimit
	}
	return v
}

type notFoundError struct {
	Entity string
	ID     uint64
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

func gormNotFoundError(entity string, id uint64) error {
	return notFoundError{Entity: entity, ID: id}
}
