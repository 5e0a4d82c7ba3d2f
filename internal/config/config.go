package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	commoncfg "github.com/Gstman420/emergency-response-backend/common/config"
	"github.com/Gstman420/emergency-response-backend/internal/arbitration"
)

// Config emergency-arbiter（资源争用仲裁服务）配置
type Config struct {
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     commoncfg.RedisConfig

	Arbiter struct {
		// Redis Streams
		EmergencyStream string // 新紧急事件流
		DecisionStream  string // 人工决策流
		OutputStream    string // 决策/升级通知输出流
		ConsumerGroup   string
		ConsumerName    string
		BatchSize       int           // 每次读取消息数，默认 10
		Workers         int           // 并发处理数，默认 4
		ClaimIdle       time.Duration // 超过该时长未确认的消息会被重新认领

		// 仲裁策略
		MaxRetries       int    // ErrCommitFailed 最大重试次数，默认 3
		EscalationPolicy string // graded, count
		ScoringProfile   string // default, legacy
	}

	MQTT struct {
		Enabled         bool
		Config          commoncfg.MQTTConfig
		EscalationTopic string
		DecisionTopic   string // 调度台下发人工决策的主题，为空时不订阅
	}

	Webhook struct {
		URL     string // 为空时禁用
		Timeout time.Duration
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "emergency",
		SSLMode:  "disable",
		MaxConns: 20,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Arbiter.EmergencyStream = getEnv("ARBITER_EMERGENCY_STREAM", "arbiter:emergencies:created")
	cfg.Arbiter.DecisionStream = getEnv("ARBITER_DECISION_STREAM", "arbiter:context-responses:created")
	cfg.Arbiter.OutputStream = getEnv("ARBITER_OUTPUT_STREAM", "arbiter:decisions")
	cfg.Arbiter.ConsumerGroup = getEnv("ARBITER_CONSUMER_GROUP", "emergency-arbiter-group")
	cfg.Arbiter.ConsumerName = getEnv("ARBITER_CONSUMER_NAME", defaultConsumerName())
	cfg.Arbiter.BatchSize = parseInt(getEnv("ARBITER_BATCH_SIZE", "10"), 10)
	cfg.Arbiter.Workers = parseInt(getEnv("ARBITER_WORKERS", "4"), 4)
	cfg.Arbiter.ClaimIdle = time.Duration(parseInt(getEnv("ARBITER_CLAIM_IDLE_SECONDS", "60"), 60)) * time.Second
	cfg.Arbiter.MaxRetries = parseInt(getEnv("ARBITRATION_MAX_RETRIES", "3"), 3)
	cfg.Arbiter.EscalationPolicy = getEnv("ESCALATION_POLICY", arbitration.PolicyGraded)
	cfg.Arbiter.ScoringProfile = getEnv("SCORING_PROFILE", arbitration.ScoringProfileDefault)

	// MQTT（升级通知推送，默认禁用）
	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Config = commoncfg.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "emergency-arbiter",
		QoS:      1,
	}
	cfg.MQTT.Config.LoadFromEnv("MQTT")
	cfg.MQTT.EscalationTopic = getEnv("MQTT_ESCALATION_TOPIC", "arbiter/escalations")
	cfg.MQTT.DecisionTopic = getEnv("MQTT_DECISION_TOPIC", "")

	cfg.Webhook.URL = getEnv("WEBHOOK_URL", "")
	cfg.Webhook.Timeout = time.Duration(parseInt(getEnv("WEBHOOK_TIMEOUT_SECONDS", "5"), 5)) * time.Second

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	switch c.Arbiter.EscalationPolicy {
	case arbitration.PolicyGraded, arbitration.PolicyCount:
	default:
		return fmt.Errorf("invalid ESCALATION_POLICY %q (expected %s or %s)",
			c.Arbiter.EscalationPolicy, arbitration.PolicyGraded, arbitration.PolicyCount)
	}
	switch c.Arbiter.ScoringProfile {
	case arbitration.ScoringProfileDefault, arbitration.ScoringProfileLegacy:
	default:
		return fmt.Errorf("invalid SCORING_PROFILE %q (expected %s or %s)",
			c.Arbiter.ScoringProfile, arbitration.ScoringProfileDefault, arbitration.ScoringProfileLegacy)
	}
	if c.Arbiter.MaxRetries < 0 {
		return fmt.Errorf("ARBITRATION_MAX_RETRIES must be >= 0, got %d", c.Arbiter.MaxRetries)
	}
	if c.Arbiter.Workers < 1 {
		return fmt.Errorf("ARBITER_WORKERS must be >= 1, got %d", c.Arbiter.Workers)
	}
	if c.Arbiter.BatchSize < 1 {
		return fmt.Errorf("ARBITER_BATCH_SIZE must be >= 1, got %d", c.Arbiter.BatchSize)
	}
	return nil
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "emergency-arbiter-1"
	}
	return "emergency-arbiter-" + host
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
