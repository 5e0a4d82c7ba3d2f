package arbitration

import (
	"fmt"
	"sort"

	"github.com/Gstman420/emergency-response-backend/internal/models"
)

// Arbiter 从冲突集中选出唯一胜者
type Arbiter struct {
	scorer *PriorityScorer
}

// NewArbiter 创建仲裁器
func NewArbiter(scorer *PriorityScorer) *Arbiter {
	return &Arbiter{scorer: scorer}
}

// Arbitrate 计算分数并排序：分数降序 → created_at 升序 → emergency_id 字典序升序。
// 第一个为胜者，其余按排序顺序成为败者。非 nil 成员少于 2 个时返回 ErrInvalidArgument。
func (a *Arbiter) Arbitrate(conflictSet []*models.Emergency) (*models.ArbitrationPlan, error) {
	ranked := Rank(a.scorer, conflictSet)
	if len(ranked) < 2 {
		return nil, fmt.Errorf("%w: arbitrate requires at least 2 contenders, got %d", ErrInvalidArgument, len(ranked))
	}

	return &models.ArbitrationPlan{
		RequiredResource: ranked[0].RequiredResource,
		Winner:           ranked[0],
		Losers:           ranked[1:],
	}, nil
}

// Rank 对冲突集评分并按确定性顺序排序
func Rank(scorer *PriorityScorer, set []*models.Emergency) []models.ScoredEmergency {
	ranked := make([]models.ScoredEmergency, 0, len(set))
	for _, e := range set {
		if e == nil {
			continue
		}
		ranked = append(ranked, models.ScoredEmergency{
			Emergency:     *e,
			PriorityScore: scorer.Score(e),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.EmergencyID < b.EmergencyID
	})
	return ranked
}

// Snapshot 构建上下文请求使用的争用者快照（按排序顺序）
func Snapshot(scorer *PriorityScorer, set []*models.Emergency) []models.EmergencySnapshot {
	ranked := Rank(scorer, set)
	snapshot := make([]models.EmergencySnapshot, 0, len(ranked))
	for _, r := range ranked {
		snapshot = append(snapshot, models.EmergencySnapshot{
			Emergency: r.Emergency,
			Score:     r.PriorityScore,
		})
	}
	return snapshot
}
