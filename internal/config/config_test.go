package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/exams")
	t.Setenv("SWEEPER_INTERVAL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/exams", cfg.DatabaseURL)
	assert.Equal(t, 3*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, cfg.Sweeper.Interval, cfg.Sweeper.LockTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "exam-engine.activity", cfg.Kafka.Topic)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SWEEPER_INTERVAL", "5")
	t.Setenv("SWEEPER_LOCK_TTL", "10s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, 10*time.Second, cfg.Sweeper.LockTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad interval", key: "SWEEPER_INTERVAL", val: "soon"},
		{name: "zero interval", key: "SWEEPER_INTERVAL", val: "0"},
		{name: "bad bool", key: "DB_AUTO_MIGRATE", val: "maybe"},
		{name: "bad level", key: "LOG_LEVEL", val: "loud"},
		{name: "bad pool size", key: "DB_MAX_OPEN_CONNS", val: "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
