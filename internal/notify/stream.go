package notify

import (
	"context"
	"fmt"

	rediscommon "github.com/Gstman420/emergency-response-backend/common/redis"
	"github.com/Gstman420/emergency-response-backend/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamNotifier 将升级请求和决策发布到 Redis Stream（event_type + data + timestamp）
type StreamNotifier struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewStreamNotifier(client *redis.Client, stream string, logger *zap.Logger) *StreamNotifier {
	return &StreamNotifier{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (n *StreamNotifier) EscalationRequested(ctx context.Context, req *models.ContextRequest) error {
	id, err := rediscommon.PublishJSONToStream(ctx, n.client, n.stream, models.EventEscalationRequested, req)
	if err != nil {
		return fmt.Errorf("failed to publish escalation to stream %s: %w", n.stream, err)
	}
	n.logger.Debug("Escalation published to stream",
		zap.String("stream", n.stream),
		zap.String("message_id", id),
		zap.String("request_id", req.RequestID),
	)
	return nil
}

func (n *StreamNotifier) DecisionCommitted(ctx context.Context, decision *models.Decision) error {
	id, err := rediscommon.PublishJSONToStream(ctx, n.client, n.stream, models.EventDecisionCommitted, decision)
	if err != nil {
		return fmt.Errorf("failed to publish decision to stream %s: %w", n.stream, err)
	}
	n.logger.Debug("Decision published to stream",
		zap.String("stream", n.stream),
		zap.String("message_id", id),
		zap.String("decision_id", decision.DecisionID),
	)
	return nil
}
