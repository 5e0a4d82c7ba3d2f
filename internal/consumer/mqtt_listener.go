package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gstman420/emergency-response-backend/internal/models"

	"go.uber.org/zap"
)

// NewMQTTDecisionHandler 调度台通过 MQTT 直接下发人工决策时的处理函数
// 签名与 common/mqtt.MessageHandler 一致；payload 为 HumanDecisionCreated JSON
func NewMQTTDecisionHandler(handler Handler, timeout time.Duration, logger *zap.Logger) func(topic string, payload []byte) error {
	return func(topic string, payload []byte) error {
		var evt models.HumanDecisionCreated
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("invalid human decision payload on %s: %w", topic, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logger.Debug("Human decision received via MQTT",
			zap.String("topic", topic),
			zap.String("response_id", evt.ResponseID),
			zap.String("emergency_id", evt.ChosenEmergencyID),
		)
		return handler.HandleHumanDecision(ctx, evt)
	}
}
