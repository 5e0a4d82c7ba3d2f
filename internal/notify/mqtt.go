package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gstman420/emergency-response-backend/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT 发布接口（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier 向调度台推送升级请求和决策
// 升级请求发到 topic，决策发到 topic + "/decisions"
type MQTTNotifier struct {
	publisher Publisher
	topic     string
	qos       byte
	logger    *zap.Logger
}

func NewMQTTNotifier(publisher Publisher, topic string, qos byte, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		publisher: publisher,
		topic:     topic,
		qos:       qos,
		logger:    logger,
	}
}

func (n *MQTTNotifier) EscalationRequested(_ context.Context, req *models.ContextRequest) error {
	return n.publish(n.topic, newEnvelope(models.EventEscalationRequested, req))
}

func (n *MQTTNotifier) DecisionCommitted(_ context.Context, decision *models.Decision) error {
	return n.publish(n.topic+"/decisions", newEnvelope(models.EventDecisionCommitted, decision))
}

func (n *MQTTNotifier) publish(topic string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", env.EventType, err)
	}
	if err := n.publisher.Publish(topic, n.qos, false, payload); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", env.EventType, topic, err)
	}
	n.logger.Debug("MQTT notification published",
		zap.String("topic", topic),
		zap.String("event_type", env.EventType),
	)
	return nil
}
