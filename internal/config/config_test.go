package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "HTTP_PORT", "STORE_BACKEND", "QUEUE_BACKEND", "PROVIDER_API_KEY",
		"OPENROUTER_API_KEY", "OPENAI_API_KEY", "PROVIDER_MODEL", "OPENROUTER_MODEL",
		"ACCESS_TTL", "ASK_PROMPT_MODE", "CORS_ALLOW_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "memory", cfg.QueueBackend)
	assert.Equal(t, "", cfg.ProviderAPIKey)
	assert.Equal(t, "google/gemma-2-9b-it", cfg.ProviderModel)
	assert.Equal(t, 400, cfg.ProviderMaxTokens)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, "verbatim", cfg.AskPromptMode)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
	assert.False(t, cfg.UsesRedis())
}

func TestLoadProviderKeyFallbacks(t *testing.T) {
	t.Setenv("PROVIDER_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	assert.Equal(t, "sk-openai", Load().ProviderAPIKey)

	t.Setenv("OPENROUTER_API_KEY", "sk-router")
	assert.Equal(t, "sk-router", Load().ProviderAPIKey)

	t.Setenv("PROVIDER_API_KEY", "sk-provider")
	assert.Equal(t, "sk-provider", Load().ProviderAPIKey)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCESS_TTL", "soon")
	t.Setenv("PROVIDER_MAX_TOKENS", "many")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "maybe")

	cfg := Load()

	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, 400, cfg.ProviderMaxTokens)
	assert.False(t, cfg.OTLPInsecure)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("QUEUE_BACKEND", "redis")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("APP_ENV", "prod")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.UsesRedis())
	assert.True(t, cfg.Production())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowOrigins)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_POOL_SIZE", "")
	t.Setenv("REDIS_TIMEOUT", "250ms")

	opts := Load().Redis()

	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)
	assert.Equal(t, 250*time.Millisecond, opts.Timeout)
}
