package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rediscommon "github.com/Gstman420/emergency-response-backend/common/redis"
	"github.com/Gstman420/emergency-response-backend/internal/arbitration"
	"github.com/Gstman420/emergency-response-backend/internal/models"
	"github.com/Gstman420/emergency-response-backend/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	errorParse            = "parse"
	errorNotFound         = "not_found"
	errorCommitFailed     = "commit_failed"
	errorStoreUnavailable = "store_unavailable"
	errorOther            = "other"
)

// Handler 入站事件处理（service.ArbitrationService 实现）
type Handler interface {
	HandleEmergencyCreated(ctx context.Context, evt models.EmergencyCreated) error
	HandleHumanDecision(ctx context.Context, evt models.HumanDecisionCreated) error
}

// Config 消费者配置
type Config struct {
	EmergencyStream string
	DecisionStream  string
	ConsumerGroup   string
	ConsumerName    string
	BatchSize       int64
	Workers         int
	Block           time.Duration // 每个流的 XREADGROUP 阻塞时长
	ClaimIdle       time.Duration // 0 表示不认领超时消息
}

// EventConsumer 从 Redis Streams 读取 emergency.created / context_response.created 事件
// 处理成功或确定不可恢复时 ACK；其余错误不 ACK，由 Streams 重投（至少一次）
type EventConsumer struct {
	cfg         Config
	redisClient *redis.Client
	handler     Handler
	logger      *zap.Logger
	metrics     *Metrics
	lastClaim   time.Time
}

// NewEventConsumer 创建事件消费者
func NewEventConsumer(cfg Config, redisClient *redis.Client, handler Handler, logger *zap.Logger) *EventConsumer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	if cfg.Block == 0 {
		cfg.Block = time.Second
	}
	return &EventConsumer{
		cfg:         cfg,
		redisClient: redisClient,
		handler:     handler,
		logger:      logger,
		metrics:     &Metrics{StartTime: time.Now()},
	}
}

// Metrics 返回指标
func (c *EventConsumer) Metrics() *Metrics {
	return c.metrics
}

func (c *EventConsumer) streams() []string {
	return []string{c.cfg.EmergencyStream, c.cfg.DecisionStream}
}

// Start 启动消费者，阻塞直到 ctx 取消
func (c *EventConsumer) Start(ctx context.Context) error {
	for _, stream := range c.streams() {
		if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, c.cfg.ConsumerGroup); err != nil {
			return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
		}
	}

	c.logger.Info("Event consumer started",
		zap.String("consumer_group", c.cfg.ConsumerGroup),
		zap.String("consumer_name", c.cfg.ConsumerName),
		zap.Strings("streams", c.streams()),
		zap.Int("workers", c.cfg.Workers),
	)

	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go c.reportMetrics(metricsCtx)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Event consumer stopped")
			return nil
		default:
		}

		if err := c.ConsumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Event consumer stopped")
				return nil
			}
			c.logger.Error("Failed to consume streams",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)

			// 指数退避
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
		} else {
			backoffDuration = time.Second
		}
	}
}

// ConsumeOnce 认领超时消息（按需）并从每个流读取一批新消息
func (c *EventConsumer) ConsumeOnce(ctx context.Context) error {
	if c.cfg.ClaimIdle > 0 && time.Since(c.lastClaim) >= c.cfg.ClaimIdle/2 {
		if err := c.ReclaimStale(ctx); err != nil {
			return err
		}
		c.lastClaim = time.Now()
	}

	for _, stream := range c.streams() {
		messages, err := rediscommon.ReadFromStream(
			ctx,
			c.redisClient,
			stream,
			c.cfg.ConsumerGroup,
			c.cfg.ConsumerName,
			c.cfg.BatchSize,
			c.cfg.Block,
		)
		if err != nil {
			return fmt.Errorf("failed to read from stream %s: %w", stream, err)
		}
		c.ProcessMessages(ctx, messages)
	}
	return nil
}

// ReclaimStale 认领其他消费者超时未确认的消息并重新处理
func (c *EventConsumer) ReclaimStale(ctx context.Context) error {
	for _, stream := range c.streams() {
		messages, err := rediscommon.ClaimStale(ctx, c.redisClient, stream, c.cfg.ConsumerGroup, c.cfg.ConsumerName, c.cfg.ClaimIdle, c.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to claim stale messages from %s: %w", stream, err)
		}
		if len(messages) == 0 {
			continue
		}
		c.metrics.incrementReclaimed(len(messages))
		c.logger.Info("Reclaimed stale messages",
			zap.String("stream", stream),
			zap.Int("count", len(messages)),
		)
		c.ProcessMessages(ctx, messages)
	}
	return nil
}

// ProcessMessages 并发处理一批消息（最多 Workers 个同时进行）
// 不同资源类的事件互不影响；同一资源类的并发由提交事务串行化
func (c *EventConsumer) ProcessMessages(ctx context.Context, messages []rediscommon.StreamMessage) {
	if len(messages) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for _, msg := range messages {
		msg := msg
		g.Go(func() error {
			c.handleMessage(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
}

// handleMessage 处理单条消息并决定是否 ACK
func (c *EventConsumer) handleMessage(ctx context.Context, msg rediscommon.StreamMessage) {
	startTime := time.Now()
	c.metrics.incrementProcessed()

	err := c.dispatch(ctx, msg)
	if err == nil {
		c.metrics.incrementSucceeded(time.Since(startTime))
		c.ack(ctx, msg)
		return
	}

	errorType, permanent := classify(err)
	c.metrics.incrementError(errorType, permanent)
	if permanent {
		c.logger.Error("Dropping unprocessable message",
			zap.String("stream", msg.Stream),
			zap.String("stream_id", msg.ID),
			zap.String("error_type", errorType),
			zap.Error(err),
		)
		c.ack(ctx, msg)
		return
	}

	c.logger.Error("Failed to process message, leaving for redelivery",
		zap.String("stream", msg.Stream),
		zap.String("stream_id", msg.ID),
		zap.String("error_type", errorType),
		zap.Error(err),
	)
}

func (c *EventConsumer) ack(ctx context.Context, msg rediscommon.StreamMessage) {
	if err := rediscommon.AckMessage(ctx, c.redisClient, msg.Stream, c.cfg.ConsumerGroup, msg.ID); err != nil {
		c.logger.Error("Failed to ack message",
			zap.String("stream", msg.Stream),
			zap.String("stream_id", msg.ID),
			zap.Error(err),
		)
	}
}

// errParse 消息格式错误
var errParse = errors.New("invalid message")

func (c *EventConsumer) dispatch(ctx context.Context, msg rediscommon.StreamMessage) error {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return fmt.Errorf("%w: missing data field", errParse)
	}

	switch msg.Stream {
	case c.cfg.EmergencyStream:
		var evt models.EmergencyCreated
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return fmt.Errorf("%w: %v", errParse, err)
		}
		c.logger.Debug("Processing emergency created",
			zap.String("stream_id", msg.ID),
			zap.String("emergency_id", evt.EmergencyID),
		)
		return c.handler.HandleEmergencyCreated(ctx, evt)

	case c.cfg.DecisionStream:
		var evt models.HumanDecisionCreated
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return fmt.Errorf("%w: %v", errParse, err)
		}
		c.logger.Debug("Processing human decision",
			zap.String("stream_id", msg.ID),
			zap.String("response_id", evt.ResponseID),
			zap.String("emergency_id", evt.ChosenEmergencyID),
		)
		return c.handler.HandleHumanDecision(ctx, evt)
	}
	return fmt.Errorf("%w: unexpected stream %s", errParse, msg.Stream)
}

// classify 返回错误类型以及是否不可恢复（重投也无法成功）
func classify(err error) (string, bool) {
	switch {
	case errors.Is(err, errParse):
		return errorParse, true
	case errors.Is(err, repository.ErrNotFound):
		return errorNotFound, true
	case errors.Is(err, arbitration.ErrValidation), errors.Is(err, arbitration.ErrInvalidArgument):
		return errorOther, true
	case errors.Is(err, repository.ErrCommitFailed):
		return errorCommitFailed, false
	case errors.Is(err, repository.ErrStoreUnavailable):
		return errorStoreUnavailable, false
	}
	return errorOther, false
}

// reportMetrics 每 60 秒输出一次指标
func (c *EventConsumer) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()

			var avgProcessingTime time.Duration
			if snapshot.MessagesSucceeded > 0 {
				avgProcessingTime = snapshot.TotalProcessingTime / time.Duration(snapshot.MessagesSucceeded)
			}

			c.logger.Info("Metrics report",
				zap.Int64("messages_processed", snapshot.MessagesProcessed),
				zap.Int64("messages_succeeded", snapshot.MessagesSucceeded),
				zap.Int64("messages_failed", snapshot.MessagesFailed),
				zap.Int64("messages_dropped", snapshot.MessagesDropped),
				zap.Int64("messages_reclaimed", snapshot.MessagesReclaimed),
				zap.Int64("errors_parse", snapshot.ErrorsParse),
				zap.Int64("errors_not_found", snapshot.ErrorsNotFound),
				zap.Int64("errors_commit_failed", snapshot.ErrorsCommitFailed),
				zap.Int64("errors_store_unavailable", snapshot.ErrorsStoreUnavailable),
				zap.Duration("avg_processing_time", avgProcessingTime),
				zap.Duration("uptime", time.Since(snapshot.StartTime)),
			)
		}
	}
}
