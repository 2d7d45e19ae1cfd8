package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "WalletAuth", cfg.AppName)
	assert.Equal(t, 5*time.Minute, cfg.NonceTTL)
	assert.Equal(t, DriverMemory, cfg.CacheDriver)
	assert.True(t, cfg.Ed25519AddressBinding)

	host, err := cfg.Hostname()
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("APP_NAME", "Issuer Hub")
	t.Setenv("CLIENT_URL", "https://app.example.com:8443/login")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("CACHE_DRIVER", "redis")
	t.Setenv("ED25519_ADDRESS_BINDING", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "Issuer Hub", cfg.AppName)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, DriverRedis, cfg.CacheDriver)
	assert.False(t, cfg.Ed25519AddressBinding)

	host, err := cfg.Hostname()
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", host)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestHostname_MissingHost(t *testing.T) {
	cfg := &Config{ClientURL: "not a url"}
	_, err := cfg.Hostname()
	assert.Error(t, err)
}
