package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "arbiter",
		Password: "secret",
		Database: "emergency",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=db port=5433 user=arbiter password=secret dbname=emergency sslmode=disable", cfg.GetDSN())
}

func TestDatabaseConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("TESTDB_HOST", "pg.internal")
	t.Setenv("TESTDB_PORT", "6543")
	t.Setenv("TESTDB_NAME", "arbiter")
	t.Setenv("TESTDB_MAX_CONNS", "20")
	t.Setenv("TESTDB_MAX_IDLE", "not-a-number")

	cfg := DatabaseConfig{Host: "localhost", Port: 5432, MaxIdle: 5}
	cfg.LoadFromEnv("TESTDB")

	assert.Equal(t, "pg.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "arbiter", cfg.Database)
	assert.Equal(t, 20, cfg.MaxConns)
	// 非法数字保留原值
	assert.Equal(t, 5, cfg.MaxIdle)
}

func TestRedisConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("TESTREDIS_ADDR", "redis:6380")
	t.Setenv("TESTREDIS_DB", "3")
	t.Setenv("TESTREDIS_POOL_SIZE", "-1")

	cfg := RedisConfig{Addr: "localhost:6379"}
	cfg.LoadFromEnv("TESTREDIS")

	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, "", cfg.Password)
	assert.Equal(t, 0, cfg.PoolSize)
}

func TestMQTTConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("TESTMQTT_BROKER", "tcp://broker:1883")
	t.Setenv("TESTMQTT_QOS", "7")

	cfg := MQTTConfig{QoS: 1}
	cfg.LoadFromEnv("TESTMQTT")

	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	// QoS 超出范围时忽略
	assert.Equal(t, byte(1), cfg.QoS)
}
