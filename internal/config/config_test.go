package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8686", cfg.Port)
	assert.Equal(t, "UTC", cfg.SiteTimezone)
	assert.Equal(t, 30*time.Second, cfg.ReloadInterval)
	assert.Equal(t, 3, cfg.RecordMaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.RecordRetryBackoff)
	assert.False(t, cfg.DebugTrace)
	assert.Equal(t, 1.0, cfg.TracingSampleRate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("SITE_TIMEZONE", "Europe/Berlin")
	t.Setenv("RELOAD_INTERVAL", "1m")
	t.Setenv("RECORD_MAX_ATTEMPTS", "5")
	t.Setenv("DEBUG_TRACE", "true")

	cfg := Load()

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "Europe/Berlin", cfg.SiteTimezone)
	assert.Equal(t, time.Minute, cfg.ReloadInterval)
	assert.Equal(t, 5, cfg.RecordMaxAttempts)
	assert.True(t, cfg.DebugTrace)
}

func TestEnvDurationAcceptsSeconds(t *testing.T) {
	t.Setenv("READ_TIMEOUT", "15")
	cfg := Load()
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
}

func TestEnvHelpersIgnoreInvalid(t *testing.T) {
	t.Setenv("RELOAD_INTERVAL", "soon")
	t.Setenv("RECORD_MAX_ATTEMPTS", "many")
	t.Setenv("DEBUG_TRACE", "definitely")

	cfg := Load()
	assert.Equal(t, 30*time.Second, cfg.ReloadInterval)
	assert.Equal(t, 3, cfg.RecordMaxAttempts)
	assert.False(t, cfg.DebugTrace)
}
