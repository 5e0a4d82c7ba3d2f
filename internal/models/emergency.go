package models

import (
	"time"
)

// 紧急事件类型
const (
	EmergencyTypeFire     = "fire"
	EmergencyTypeMedical  = "medical"
	EmergencyTypeAccident = "accident"
	EmergencyTypePolice   = "police"
	EmergencyTypeOther    = "other"
)

// 紧急事件生命周期状态
const (
	StatusOpen     = "open"
	StatusActive   = "active"
	StatusAssigned = "assigned"
	StatusWaiting  = "waiting"
	StatusResolved = "resolved"
)

// 严重程度范围
const (
	MinSeverity = 1
	MaxSeverity = 10
)

// ContendingStatuses 仍可参与资源争用的状态
var ContendingStatuses = []string{StatusOpen, StatusActive, StatusWaiting}

// Emergency 紧急事件（对应 emergencies 表）
type Emergency struct {
	EmergencyID      string    `json:"emergency_id" db:"emergency_id"`
	Type             string    `json:"type" db:"emergency_type"`
	Severity         int       `json:"severity" db:"severity"`
	RequiredResource string    `json:"required_resource,omitempty" db:"required_resource"` // 空字符串表示未指定
	Status           string    `json:"status" db:"status"`
	DeadlockDetected bool      `json:"deadlock_detected" db:"deadlock_detected"` // 在仲裁中落败过
	DeadlockResolved bool      `json:"deadlock_resolved" db:"deadlock_resolved"` // 在仲裁中胜出
	Version          int64     `json:"version" db:"version"`                     // 乐观锁版本号
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// IsContending 当前状态是否仍在争用资源
func (e *Emergency) IsContending() bool {
	switch e.Status {
	case StatusOpen, StatusActive, StatusWaiting:
		return true
	}
	return false
}

// Resource 可分配资源（对应 resources 表）
type Resource struct {
	ResourceID   string    `json:"resource_id" db:"resource_id"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	Available    bool      `json:"available" db:"available"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
