package arbitration

import (
	"fmt"

	"github.com/Gstman420/emergency-response-backend/internal/models"
)

// 升级策略
const (
	// PolicyGraded 缺口为 1 且最高分无并列时自动仲裁，否则交给人工
	PolicyGraded = "graded"
	// PolicyCount 只要争用者多于可用资源就交给人工
	PolicyCount = "count"
)

// GateDecision 升级闸门的判定结果
type GateDecision string

const (
	// GateNoScarcity 可用资源足够所有争用者，无需仲裁
	GateNoScarcity GateDecision = "no_scarcity"
	// GateAutomatic 由 Arbiter 自动仲裁
	GateAutomatic GateDecision = "automatic"
	// GateEscalate 需要人工决策
	GateEscalate GateDecision = "escalate"
)

// EscalationGate 根据争用者数量与可用资源数量决定自动仲裁还是人工升级
type EscalationGate struct {
	policy string
	scorer *PriorityScorer
}

// NewEscalationGate 创建升级闸门
func NewEscalationGate(policy string, scorer *PriorityScorer) (*EscalationGate, error) {
	switch policy {
	case "":
		policy = PolicyGraded
	case PolicyGraded, PolicyCount:
	default:
		return nil, fmt.Errorf("%w: unknown escalation policy %q", ErrInvalidArgument, policy)
	}
	return &EscalationGate{policy: policy, scorer: scorer}, nil
}

// Policy 当前策略
func (g *EscalationGate) Policy() string {
	return g.policy
}

// Decide 判定冲突集的处理方式
func (g *EscalationGate) Decide(conflictSet []*models.Emergency, availableResourceCount int) GateDecision {
	contenders := len(conflictSet)
	if availableResourceCount >= contenders {
		return GateNoScarcity
	}
	if g.policy == PolicyCount || availableResourceCount <= 0 {
		return GateEscalate
	}
	if g.topScoreTied(conflictSet) {
		return GateEscalate
	}
	if contenders-availableResourceCount == 1 {
		return GateAutomatic
	}
	return GateEscalate
}

func (g *EscalationGate) topScoreTied(conflictSet []*models.Emergency) bool {
	ranked := Rank(g.scorer, conflictSet)
	return len(ranked) >= 2 && ranked[0].PriorityScore == ranked[1].PriorityScore
}
