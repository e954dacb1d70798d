package server

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}))

	assert.Equal(t, "sqlite://files-vault.db", cfg.StoreURI)
	assert.Equal(t, 512, cfg.RSAKeyBits)
	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, int64(16*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, int64(64*1024*1024), cfg.MaxRequestSize)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestConfigFromEnvironment(t *testing.T) {
	cfg := Config{}
	err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"FILES_VAULT_STORE_URI":    "mongodb://localhost:27017/vault",
		"FILES_VAULT_RSA_KEY_BITS": "2048",
		"FILES_VAULT_PORT":         "8080",
		"FILES_VAULT_ENV":          "production",
		"FILES_VAULT_WORKERS":      "4",
	}})
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017/vault", cfg.StoreURI)
	assert.Equal(t, 2048, cfg.RSAKeyBits)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.IsProduction())
}
