package storage

import "time"

// ToolInvocation 记录 Agent 的一次工具调用及其结果，用于审计、追溯与后续分析。
//
// 一条记录对应 ReAct 链路中的一个步骤（例如 query_cosmos、count_documents），
// 也包括客户端合成的回退步骤。复杂入参/输出统一以 JSON 字符串存放，
// 便于快速落地与版本演进。
type ToolInvocation struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// TraceID 用于串联一次提问的全部步骤，按链路聚合检索。
	TraceID string `gorm:"size:64;index"`
	// Tool 为稳定的工具名（例如 query_cosmos / client_fallback_Region）。
	Tool string `gorm:"size:128;not null;index"`
	// ParamsJSON 存放工具入参（JSON 字符串）。
	ParamsJSON string `gorm:"type:text"`
	// ResultJSON 存放工具输出摘要（JSON 字符串或原始观察文本）。
	ResultJSON string `gorm:"type:text"`
	// Status 表示执行状态（running/success/failed），用于快速筛选与统计。
	Status string `gorm:"size:32;not null;index"`
	// ErrorMessage 存放失败时的错误信息。
	ErrorMessage string `gorm:"type:text"`
	// Synthetic 标记该步骤由客户端合成（回退/重试），而非模型发起。
	Synthetic bool `gorm:"not null;default:false"`
	// StartedAt/FinishedAt 表示调用起止时间。
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time `gorm:"index"`
	// CreatedAt 为记录写入数据库的时间，默认自动填充。
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}

// QueryHistory 记录一次完整的提问与回答，面向历史检索与 Web 展示。
type QueryHistory struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// TraceID 关联本次提问的全部 ToolInvocation。
	TraceID string `gorm:"size:64;index"`
	// Question 为用户原始输入。
	Question string `gorm:"type:text;not null"`
	// Answer 为最终回答文本（可能为空，表示失败或无结果）。
	Answer string `gorm:"type:text"`
	// ErrorMessage 存放失败时的错误信息。
	ErrorMessage string `gorm:"type:text"`
	// StepCount 为本次提问产生的步骤数（含合成步骤）。
	StepCount int `gorm:"not null"`
	// ElapsedSeconds 为端到端耗时（秒，保留两位小数）。
	ElapsedSeconds float64 `gorm:"not null"`
	// CreatedAt 为记录写入数据库的时间，默认自动填充。
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}
