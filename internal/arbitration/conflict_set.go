package arbitration

import (
	"fmt"

	"github.com/Gstman420/emergency-response-backend/internal/models"
)

// BuildConflicts 构建冲突集
// 从 active 中筛选与 newEmergency 争用同一类资源、且仍处于 open/active/waiting 的其他紧急事件。
// 筛选结果为空时返回空集（无争用）；否则返回筛选结果 + newEmergency 本身。
// newEmergency 未指定 required_resource 时返回 ErrValidation。
func BuildConflicts(newEmergency *models.Emergency, active []*models.Emergency) ([]*models.Emergency, error) {
	if newEmergency == nil {
		return nil, fmt.Errorf("%w: emergency is required", ErrValidation)
	}
	if newEmergency.RequiredResource == "" {
		return nil, fmt.Errorf("%w: emergency %s has no required_resource", ErrValidation, newEmergency.EmergencyID)
	}
	// 已分配/已解决的事件不再参与争用（重复投递时直接返回空集）
	if !newEmergency.IsContending() {
		return nil, nil
	}

	seen := map[string]bool{newEmergency.EmergencyID: true}
	var contenders []*models.Emergency
	for _, e := range active {
		if e == nil || seen[e.EmergencyID] {
			continue
		}
		if e.RequiredResource != newEmergency.RequiredResource || !e.IsContending() {
			continue
		}
		seen[e.EmergencyID] = true
		contenders = append(contenders, e)
	}

	if len(contenders) == 0 {
		return nil, nil
	}
	return append(contenders, newEmergency), nil
}
