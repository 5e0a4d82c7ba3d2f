package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Gstman420/emergency-response-backend/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier 通过 HTTP POST 通知外部调度台
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookNotifier 创建 Webhook 通知器（5xx 和网络错误重试 2 次）
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

func (n *WebhookNotifier) EscalationRequested(ctx context.Context, req *models.ContextRequest) error {
	return n.post(ctx, newEnvelope(models.EventEscalationRequested, req))
}

func (n *WebhookNotifier) DecisionCommitted(ctx context.Context, decision *models.Decision) error {
	return n.post(ctx, newEnvelope(models.EventDecisionCommitted, decision))
}

func (n *WebhookNotifier) post(ctx context.Context, env Envelope) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(env).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook %s failed: %w", env.EventType, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook %s returned status %d", env.EventType, resp.StatusCode())
	}

	n.logger.Debug("Webhook notification delivered",
		zap.String("event_type", env.EventType),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}
