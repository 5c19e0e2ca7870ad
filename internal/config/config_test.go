package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	cfg := LoadRateLimitConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 60, cfg.Capacity)
	assert.Equal(t, 10, cfg.AuthCapacity)
	assert.Equal(t, time.Second, cfg.RefillInterval)
	assert.Equal(t, "bookstore:rl", cfg.Prefix)
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_AUTH_CAPACITY", "50")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_LOCAL_RPS", "-1")

	cfg := LoadRateLimitConfig()

	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.AuthCapacity, "auth bucket never exceeds the general bucket")
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 10*time.Second, cfg.TTL, "ttl is at least five refill intervals")
	assert.Equal(t, float64(1), cfg.LocalRPS)
}

func TestLoadRateLimitConfigRefillEvery(t *testing.T) {
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "4")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "250ms")
	t.Setenv("RATE_LIMIT_BURST", "7")

	cfg := LoadRateLimitConfig()

	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 250*time.Millisecond, cfg.RefillInterval)
	assert.Equal(t, 7, cfg.Capacity)
}

func TestWithCapacity(t *testing.T) {
	base := RateLimitConfig{Capacity: 60, Prefix: "rl"}
	auth := base.WithCapacity(5, "auth")

	assert.Equal(t, 5, auth.Capacity)
	assert.Equal(t, "rl:auth", auth.Prefix)
	assert.Equal(t, 60, base.Capacity)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	t.Setenv("CACHE_TTL", "bogus")
	t.Setenv("CACHE_ENABLED", "off")

	cfg := LoadCacheConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 30*time.Second, cfg.TTL)
	assert.Equal(t, 1048576, cfg.MaxBodyBytes)
	assert.True(t, cfg.PurgeOnWrite)
}

func TestEnvBool(t *testing.T) {
	cases := map[string]bool{"yes": true, "ON": true, "0": false, "False": false}
	for raw, want := range cases {
		t.Setenv("BOOL_UNDER_TEST", raw)
		assert.Equal(t, want, envBool("BOOL_UNDER_TEST", !want), raw)
	}
	t.Setenv("BOOL_UNDER_TEST", "maybe")
	assert.True(t, envBool("BOOL_UNDER_TEST", true))
}

func TestAMQPURL(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "")
	assert.Empty(t, AMQPURL())

	t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")
	assert.Equal(t, "amqp://u:p@broker:5672/", AMQPURL())

	t.Setenv("RABBITMQ_URL", "amqp://primary/")
	assert.Equal(t, "amqp://primary/", AMQPURL())
}
