package notify

import (
	"context"
	"time"

	"github.com/Gstman420/emergency-response-backend/internal/models"

	"go.uber.org/multierr"
)

// Notifier 仲裁结果的出站通知
// 通知失败只记录日志，不影响已提交的决策
type Notifier interface {
	// 新建人工请求（需要调度员决策）
	EscalationRequested(ctx context.Context, req *models.ContextRequest) error

	// 决策已提交（自动或人工）
	DecisionCommitted(ctx context.Context, decision *models.Decision) error
}

// Envelope MQTT / Webhook 的消息外层
type Envelope struct {
	EventType string      `json:"event_type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func newEnvelope(eventType string, data interface{}) Envelope {
	return Envelope{
		EventType: eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}

// Multi 依次调用所有通知器，某个失败不影响其余
// 失败合并为一个 multierr 返回，由调用方统一记录
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Len 已注册的通知器数量
func (m *Multi) Len() int {
	return len(m.notifiers)
}

func (m *Multi) EscalationRequested(ctx context.Context, req *models.ContextRequest) error {
	var errs error
	for _, n := range m.notifiers {
		errs = multierr.Append(errs, n.EscalationRequested(ctx, req))
	}
	return errs
}

func (m *Multi) DecisionCommitted(ctx context.Context, decision *models.Decision) error {
	var errs error
	for _, n := range m.notifiers {
		errs = multierr.Append(errs, n.DecisionCommitted(ctx, decision))
	}
	return errs
}

// Nop 不发送任何通知
type Nop struct{}

func (Nop) EscalationRequested(context.Context, *models.ContextRequest) error { return nil }
func (Nop) DecisionCommitted(context.Context, *models.Decision) error        { return nil }
