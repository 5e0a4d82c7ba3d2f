package models

// 入站事件类型
const (
	EventEmergencyCreated     = "emergency.created"
	EventHumanDecisionCreated = "context_response.created"
)

// 出站事件类型
const (
	EventEscalationRequested = "escalation.requested"
	EventDecisionCommitted   = "decision.committed"
)

// EmergencyCreated 新紧急事件记录出现
type EmergencyCreated struct {
	EmergencyID string    `json:"emergency_id"`
	Record      Emergency `json:"record"`
}

// HumanDecisionCreated 人工决策记录出现
type HumanDecisionCreated struct {
	ResponseID        string `json:"response_id"`
	ChosenEmergencyID string `json:"chosen_emergency_id"`
}
