package models

// ScoredEmergency 带优先级分数的紧急事件（只存在于一次仲裁过程中）
type ScoredEmergency struct {
	Emergency
	PriorityScore int `json:"score"`
}

// ArbitrationPlan 仲裁结果：唯一胜者 + 按分数降序排列的败者
type ArbitrationPlan struct {
	RequiredResource string            `json:"required_resource"`
	Winner           ScoredEmergency   `json:"winner"`
	Losers           []ScoredEmergency `json:"losers"`
}

// LoserIDs 败者 ID 列表（保持排序）
func (p *ArbitrationPlan) LoserIDs() []string {
	ids := make([]string, 0, len(p.Losers))
	for _, l := range p.Losers {
		ids = append(ids, l.EmergencyID)
	}
	return ids
}

// AlreadyApplied 该计划的效果是否已经存在于读取到的数据中
// 胜者已 deadlock_resolved，且所有败者都已处于 waiting + deadlock_detected
func (p *ArbitrationPlan) AlreadyApplied() bool {
	if !p.Winner.DeadlockResolved {
		return false
	}
	for _, l := range p.Losers {
		if l.Status != StatusWaiting || !l.DeadlockDetected || l.DeadlockResolved {
			return false
		}
	}
	return true
}
