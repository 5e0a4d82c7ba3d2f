package repository

import (
	"context"
	"time"

	"github.com/Gstman420/emergency-response-backend/internal/models"
)

// EmergenciesRepository 紧急事件读取
type EmergenciesRepository interface {
	// 获取单个紧急事件，不存在时返回 ErrNotFound
	GetEmergency(ctx context.Context, emergencyID string) (*models.Emergency, error)

	// 查询争用同一类资源、处于 open/active/waiting 的紧急事件
	ListContending(ctx context.Context, requiredResource string) ([]*models.Emergency, error)
}

// ResourcesRepository 资源读取
type ResourcesRepository interface {
	// 统计某类型当前可用资源数量
	CountAvailable(ctx context.Context, resourceType string) (int, error)
}

// ContextRequestsRepository 人工上下文请求
type ContextRequestsRepository interface {
	// 某类资源是否存在 pending 请求
	HasPendingContextRequest(ctx context.Context, requiredResource string) (bool, error)

	// 创建 pending 请求；同类资源已存在 pending 请求时返回 created=false
	CreateContextRequest(ctx context.Context, req *models.ContextRequest) (bool, error)

	// 刷新 pending 请求中的争用者快照
	RefreshPendingContextRequest(ctx context.Context, requiredResource string, snapshot []models.EmergencySnapshot, availableCount int) error
}

// DecisionsRepository 决策审计日志读取
type DecisionsRepository interface {
	ListDecisions(ctx context.Context, filters DecisionFilters) ([]*models.Decision, error)
}

// DecisionFilters 决策过滤条件
type DecisionFilters struct {
	RequiredResource *string
	ResolvedBy       *string
	StartTime        *time.Time // resolved_at >= StartTime
	EndTime          *time.Time // resolved_at < EndTime
	Limit            int        // 0 表示不限制
}

// AutomaticCommit 自动仲裁提交命令
type AutomaticCommit struct {
	Plan     *models.ArbitrationPlan
	Decision *models.Decision
	Now      time.Time
}

// HumanCommit 人工决策提交命令
type HumanCommit struct {
	ChosenEmergencyID string
	Decision          *models.Decision // RequiredResource / ResourceID / ContextRequestID 由存储层在事务内填充
	Now               time.Time
}

// HumanCommitResult 人工决策提交结果
type HumanCommitResult struct {
	Duplicate        bool    // 同一 source_event_id 已处理过，或选中事件已是 assigned
	RequiredResource string  // 被选中事件需要的资源类型
	ResourceID       *string // 分配的资源，nil 表示无可用资源
	ContextRequestID *string // 被消费的 pending 请求
}

// Committer 原子提交（唯一的互斥点）
type Committer interface {
	// 单事务：胜者 deadlock_resolved、败者 waiting、追加决策；任一记录版本变化返回 ErrCommitFailed
	ApplyAutomatic(ctx context.Context, cmd AutomaticCommit) error

	// 单事务：选中事件 assigned、分配一个资源、消费 pending 请求、追加决策
	ApplyHuman(ctx context.Context, cmd HumanCommit) (*HumanCommitResult, error)
}

// Store 仲裁引擎所需的全部存储操作
type Store interface {
	EmergenciesRepository
	ResourcesRepository
	ContextRequestsRepository
	DecisionsRepository
	Committer
}
