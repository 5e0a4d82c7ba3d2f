package models

import (
	"time"
)

// 决策来源
const (
	ResolvedByAutomatic = "automatic"
	ResolvedByHuman     = "human"
)

// 人工上下文请求状态
const (
	ContextRequestPending  = "pending"
	ContextRequestResolved = "resolved"
)

// Decision 仲裁决策审计记录（对应 decisions 表，只追加）
type Decision struct {
	DecisionID       string    `json:"decision_id" db:"decision_id"`
	EmergencyID      string    `json:"emergency_id" db:"emergency_id"` // 胜者
	ResolvedBy       string    `json:"resolved_by" db:"resolved_by"`   // automatic, human
	ResolvedAt       time.Time `json:"resolved_at" db:"resolved_at"`
	RequiredResource string    `json:"required_resource" db:"required_resource"`
	LoserIDs         []string  `json:"loser_ids" db:"loser_ids"` // JSONB，按分数降序
	ResourceID       *string   `json:"resource_id,omitempty" db:"resource_id"`         // 人工决策时分配的资源
	ContextRequestID *string   `json:"context_request_id,omitempty" db:"context_request_id"`
	SourceEventID    *string   `json:"source_event_id,omitempty" db:"source_event_id"` // 人工响应 ID（幂等键）
}

// EmergencySnapshot 上下文请求中的争用者快照（完整属性 + 分数）
type EmergencySnapshot struct {
	Emergency
	Score int `json:"score"`
}

// ContextRequest 人工决策请求（对应 context_requests 表）
type ContextRequest struct {
	RequestID         string              `json:"request_id" db:"request_id"`
	RequiredResource  string              `json:"required_resource" db:"required_resource"`
	Emergencies       []EmergencySnapshot `json:"emergencies" db:"emergencies"` // JSONB
	AvailableCount    int                 `json:"available_count" db:"available_count"`
	Status            string              `json:"status" db:"status"` // pending, resolved
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
	ResolvedAt        *time.Time          `json:"resolved_at,omitempty" db:"resolved_at"`
	ChosenEmergencyID *string             `json:"chosen_emergency_id,omitempty" db:"chosen_emergency_id"`
}
