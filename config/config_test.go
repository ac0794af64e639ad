package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("REDIS_SHARDS", "")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("CHUNCHUN_INIT_USERS", "3000")
	t.Setenv("CHUNCHUN_INIT_SKIP", "false")

	cfg := LoadConfig()
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 3000, cfg.Init.Users)
	assert.False(t, cfg.Init.Skip)
	assert.Empty(t, cfg.Redis.Shards)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CHUNCHUN_INIT_WATCHES", "7")
	t.Setenv("CHUNCHUN_INIT_SKIP", "true")
	t.Setenv("REDIS_SHARDS", "a:6379, b:6379,,")
	t.Setenv("MINIO_USE_SSL", "not-a-bool")

	cfg := LoadConfig()
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 7, cfg.Init.Watches)
	assert.True(t, cfg.Init.Skip)
	assert.Equal(t, []string{"a:6379", "b:6379"}, cfg.Redis.Shards)
	assert.False(t, cfg.Minio.UseSSL)
}
