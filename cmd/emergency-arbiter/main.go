package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gstman420/emergency-response-backend/common/database"
	logpkg "github.com/Gstman420/emergency-response-backend/common/logger"
	mqttcommon "github.com/Gstman420/emergency-response-backend/common/mqtt"
	rediscommon "github.com/Gstman420/emergency-response-backend/common/redis"
	"github.com/Gstman420/emergency-response-backend/internal/config"
	"github.com/Gstman420/emergency-response-backend/internal/consumer"
	"github.com/Gstman420/emergency-response-backend/internal/notify"
	"github.com/Gstman420/emergency-response-backend/internal/repository"
	"github.com/Gstman420/emergency-response-backend/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "emergency-arbiter")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting emergency-arbiter service",
		zap.Bool("db_enabled", cfg.DBEnabled),
		zap.String("emergency_stream", cfg.Arbiter.EmergencyStream),
		zap.String("decision_stream", cfg.Arbiter.DecisionStream),
		zap.String("output_stream", cfg.Arbiter.OutputStream),
		zap.String("escalation_policy", cfg.Arbiter.EscalationPolicy),
		zap.String("scoring_profile", cfg.Arbiter.ScoringProfile),
		zap.Int("max_retries", cfg.Arbiter.MaxRetries),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 存储
	var (
		store    repository.Store
		ingester service.EmergencyIngester
		db       *sql.DB
	)
	if cfg.DBEnabled {
		db, err = database.NewPostgresDB(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(db)
		store = repository.NewPostgresStore(db, logger)
	} else {
		logger.Warn("DB_ENABLED=false, using in-memory store (state is lost on restart)")
		mem := repository.NewMemoryStore()
		store = mem
		ingester = mem
	}

	// 2. Redis
	redisClient, err := rediscommon.Connect(ctx, &cfg.Redis, 5*time.Second)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
	}
	defer rediscommon.Close(redisClient)

	// 3. 出站通知
	notifiers := []notify.Notifier{
		notify.NewStreamNotifier(redisClient, cfg.Arbiter.OutputStream, logger),
	}
	var mqttClient *mqttcommon.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqttcommon.NewClient(&cfg.MQTT.Config, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MQTT broker", zap.Error(err), zap.String("broker", cfg.MQTT.Config.Broker))
		}
		defer mqttClient.Disconnect()
		notifiers = append(notifiers, notify.NewMQTTNotifier(mqttClient, cfg.MQTT.EscalationTopic, cfg.MQTT.Config.QoS, logger))
	}
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Timeout, logger))
	}
	notifier := notify.NewMulti(notifiers...)
	logger.Info("Notifiers configured",
		zap.Int("count", notifier.Len()),
		zap.Bool("mqtt", cfg.MQTT.Enabled),
		zap.Bool("webhook", cfg.Webhook.URL != ""),
	)

	// 4. 仲裁服务
	arbiterService, err := service.NewArbitrationService(store, notifier, service.Options{
		ScoringProfile:   cfg.Arbiter.ScoringProfile,
		EscalationPolicy: cfg.Arbiter.EscalationPolicy,
		MaxRetries:       cfg.Arbiter.MaxRetries,
		Ingester:         ingester,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create arbitration service", zap.Error(err))
	}

	if mqttClient != nil && cfg.MQTT.DecisionTopic != "" {
		handler := consumer.NewMQTTDecisionHandler(arbiterService, 30*time.Second, logger)
		if err := mqttClient.Subscribe(cfg.MQTT.DecisionTopic, cfg.MQTT.Config.QoS, handler); err != nil {
			logger.Fatal("Failed to subscribe to decision topic", zap.Error(err), zap.String("topic", cfg.MQTT.DecisionTopic))
		}
	}

	// 5. 事件消费者
	eventConsumer := consumer.NewEventConsumer(consumer.Config{
		EmergencyStream: cfg.Arbiter.EmergencyStream,
		DecisionStream:  cfg.Arbiter.DecisionStream,
		ConsumerGroup:   cfg.Arbiter.ConsumerGroup,
		ConsumerName:    cfg.Arbiter.ConsumerName,
		BatchSize:       int64(cfg.Arbiter.BatchSize),
		Workers:         cfg.Arbiter.Workers,
		ClaimIdle:       cfg.Arbiter.ClaimIdle,
	}, redisClient, arbiterService, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := eventConsumer.Start(ctx); err != nil {
			logger.Error("Event consumer exited", zap.Error(err))
			cancel()
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	// 优雅关闭：等待进行中的消息处理结束
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("Timed out waiting for in-flight events")
	}

	logger.Info("Service stopped")
}
