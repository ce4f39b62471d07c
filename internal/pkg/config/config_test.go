package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		JWT:      JWTConfig{Secret: "0123456789abcdef0123456789abcdef"},
		Database: DatabaseConfig{Host: "localhost", User: "postgres", DBName: "course_market"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Payment:  PaymentConfig{Currency: "CNY", GatewayTimeout: 5 * time.Second},
		Outbox:   OutboxConfig{Workers: 2, BatchSize: 10, MaxAttempts: 3},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("short jwt secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWT.Secret = "short"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing currency", func(t *testing.T) {
		cfg := validConfig()
		cfg.Payment.Currency = ""
		assert.EqualError(t, cfg.Validate(), "payment currency is required")
	})

	t.Run("zero gateway timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Payment.GatewayTimeout = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("outbox without workers", func(t *testing.T) {
		cfg := validConfig()
		cfg.Outbox.Workers = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: "9090"
database:
  host: db
  user: app
  dbname: market
payment:
  currency: CNY
  gateway_timeout: 3s
alipay:
  app_id: "2021000000"
  notify_url: https://example.com/payments/alipay/webhook
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := Load("dev", dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 3*time.Second, cfg.Payment.GatewayTimeout)
	assert.Equal(t, "2021000000", cfg.Alipay.AppID)
	// 未配置的项使用默认值
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}
