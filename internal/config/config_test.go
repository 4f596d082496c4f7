package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VIGIA_DB_PATH", filepath.Join(t.TempDir(), "vigia.db"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.False(t, cfg.IsProduction())
	assert.True(t, cfg.Diagnostics)

	assert.Equal(t, 15*time.Minute, cfg.Rate.Window)
	assert.Equal(t, 300, cfg.Rate.PublicMax)
	assert.Equal(t, 20, cfg.Rate.AuthMax)
	assert.Equal(t, 10, cfg.Rate.PasswordMax)
	assert.Equal(t, 300, cfg.Rate.MeMax)
	assert.Equal(t, 10, cfg.Rate.ReportMax)
	assert.Equal(t, 12, cfg.Rate.ResourceSubmissionMax)
	assert.Equal(t, 60, cfg.Rate.FollowMax)

	assert.Equal(t, 10*time.Minute, cfg.Guard.Window)
	assert.Equal(t, 8, cfg.Guard.MaxFails)
	assert.Equal(t, time.Hour, cfg.Guard.BlockFor)
	assert.Equal(t, 10*time.Minute, cfg.Guard.AlertCooldown)

	assert.Equal(t, 0.5, cfg.Captcha.Threshold)
	assert.Equal(t, 3, cfg.Captcha.StrikeLimit)
	assert.Equal(t, 30*time.Minute, cfg.Captcha.StrikeBlock)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VIGIA_DB_PATH", filepath.Join(t.TempDir(), "vigia.db"))
	t.Setenv("VIGIA_ENV", "production")
	t.Setenv("VIGIA_RATE_AUTH_MAX", "5")
	t.Setenv("VIGIA_BF_WINDOW_MS", "60000")
	t.Setenv("VIGIA_RECAPTCHA_THRESHOLD", "0.7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.Diagnostics, "diagnostics default off in production")
	assert.Equal(t, 5, cfg.Rate.AuthMax)
	assert.Equal(t, time.Minute, cfg.Guard.Window)
	assert.Equal(t, 0.7, cfg.Captcha.Threshold)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("VIGIA_DB_PATH", filepath.Join(t.TempDir(), "vigia.db"))
	t.Setenv("VIGIA_RATE_AUTH_MAX", "not-a-number")
	t.Setenv("VIGIA_BF_MAX_FAILS", "-3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Rate.AuthMax)
	assert.Equal(t, 8, cfg.Guard.MaxFails)
}

func TestAlertsActive(t *testing.T) {
	cfg := Config{Environment: "production", Alerts: AlertConfig{Enabled: true}}
	assert.True(t, cfg.AlertsActive())

	cfg.Environment = "development"
	assert.False(t, cfg.AlertsActive(), "alerts stay silent outside production")

	cfg.Environment = "prod"
	cfg.Alerts.Enabled = false
	assert.False(t, cfg.AlertsActive())
}
