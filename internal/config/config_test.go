package config_test

import (
	"testing"
	"time"

	"chatrelay/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "STORE_DRIVER", "DATABASE_DSN", "MONGO_URI", "MONGO_DATABASE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "JWT_SECRET_KEY", "JWT_TTL",
		"SEND_BUFFER", "MAX_MESSAGE_SIZE", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":5001", cfg.Server.Addr)
	assert.True(t, cfg.Server.AllowAllOrigins())
	assert.Equal(t, config.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, config.DefaultMongoDatabase, cfg.Store.MongoDatabase)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, config.DefaultJWTTTL, cfg.Auth.TTL)
	assert.Equal(t, config.DefaultSendBuffer, cfg.Relay.SendBuffer)
	assert.Equal(t, int64(config.DefaultMaxMessageSize), cfg.Relay.MaxMessageSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173, http://example.com")
	t.Setenv("STORE_DRIVER", "MONGO")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("JWT_TTL", "1h")
	t.Setenv("SEND_BUFFER", "16")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:5173", "http://example.com"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Server.AllowAllOrigins())
	assert.Equal(t, config.DriverMongo, cfg.Store.Driver)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Auth.TTL)
	assert.Equal(t, 16, cfg.Relay.SendBuffer)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port with space", key: "PORT", value: "80 80"},
		{name: "unknown driver", key: "STORE_DRIVER", value: "sqlite"},
		{name: "redis db not a number", key: "REDIS_DB", value: "one"},
		{name: "bad ttl", key: "JWT_TTL", value: "forever"},
		{name: "zero buffer", key: "SEND_BUFFER", value: "0"},
		{name: "negative message size", key: "MAX_MESSAGE_SIZE", value: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
