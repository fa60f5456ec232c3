package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{"PORT", "GO_ENV", "LOG_LEVEL", "DEVELOPMENT_MODE", "ALLOWED_ORIGINS",
		"COOKIE_NAME", "STATS_DSN", "RECONNECT_TIMEOUT_SECONDS", "ROOM_CLEANUP_GRACE_SECONDS"}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestValidateEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := ValidateEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 180, cfg.ReconnectTimeoutSeconds)
	assert.Empty(t, cfg.StatsDSN)
}

func TestValidateEnvRejectsBadPort(t *testing.T) {
	clearEnv(t)
	os.Setenv("PORT", "not-a-port")
	defer os.Unsetenv("PORT")

	_, err := ValidateEnv()
	assert.Error(t, err)
}

func TestValidateEnvAccumulatesErrors(t *testing.T) {
	clearEnv(t)
	os.Setenv("PORT", "999999")
	os.Setenv("RECONNECT_TIMEOUT_SECONDS", "not-an-int")
	defer os.Unsetenv("PORT")
	defer os.Unsetenv("RECONNECT_TIMEOUT_SECONDS")

	_, err := ValidateEnv()
	assert.Error(t, err)
}
