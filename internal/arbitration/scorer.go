package arbitration

import (
	"fmt"

	"github.com/Gstman420/emergency-response-backend/internal/models"
)

// 评分档案
const (
	ScoringProfileDefault = "default"
	ScoringProfileLegacy  = "legacy"
)

// DefaultTypeBonus 类型加成：fire > accident > medical > police > other
var DefaultTypeBonus = map[string]int{
	models.EmergencyTypeFire:     5,
	models.EmergencyTypeAccident: 4,
	models.EmergencyTypeMedical:  3,
	models.EmergencyTypePolice:   2,
}

// LegacyTypeBonus 早期触发器使用的加成表（police 无加成）
var LegacyTypeBonus = map[string]int{
	models.EmergencyTypeFire:     5,
	models.EmergencyTypeAccident: 4,
	models.EmergencyTypeMedical:  3,
}

// PriorityScorer 紧急事件优先级评分（纯函数，无副作用）
type PriorityScorer struct {
	typeBonus map[string]int
}

// NewPriorityScorer 创建评分器，bonus 为 nil 时使用 DefaultTypeBonus
func NewPriorityScorer(bonus map[string]int) *PriorityScorer {
	if bonus == nil {
		bonus = DefaultTypeBonus
	}
	copied := make(map[string]int, len(bonus))
	for k, v := range bonus {
		copied[k] = v
	}
	return &PriorityScorer{typeBonus: copied}
}

// NewPriorityScorerForProfile 按档案名创建评分器
func NewPriorityScorerForProfile(profile string) (*PriorityScorer, error) {
	switch profile {
	case "", ScoringProfileDefault:
		return NewPriorityScorer(DefaultTypeBonus), nil
	case ScoringProfileLegacy:
		return NewPriorityScorer(LegacyTypeBonus), nil
	default:
		return nil, fmt.Errorf("%w: unknown scoring profile %q", ErrInvalidArgument, profile)
	}
}

// Score severity*10 + typeBonus(type)
// severity 超出 [1,10] 时取最近边界而不是拒绝，保证仲裁始终能推进；未知类型无加成
func (s *PriorityScorer) Score(e *models.Emergency) int {
	return ClampSeverity(e.Severity)*10 + s.typeBonus[e.Type]
}

// TypeBonus 返回类型加成
func (s *PriorityScorer) TypeBonus(emergencyType string) int {
	return s.typeBonus[emergencyType]
}

// ClampSeverity 将严重程度限制在 [MinSeverity, MaxSeverity]
func ClampSeverity(severity int) int {
	if severity < models.MinSeverity {
		return models.MinSeverity
	}
	if severity > models.MaxSeverity {
		return models.MaxSeverity
	}
	return severity
}
