package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Outreach.DailyEmailCap)
	assert.Equal(t, 100, cfg.Outreach.DailyCallCap)
	assert.Equal(t, 30, cfg.Outreach.CooldownDays)
	assert.Equal(t, 7, cfg.Outreach.ApprovalExpiryDays)
	assert.True(t, cfg.Outreach.ApprovalMode)
	assert.True(t, cfg.Outreach.DryRun)
	assert.Equal(t, "11:00", cfg.Call.WindowStart)
	assert.Equal(t, "17:00", cfg.Call.WindowEnd)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OUTREACH_OUTREACH__DAILY_EMAIL_CAP", "100")
	t.Setenv("OUTREACH_EMAIL__FROM", "hello@devsync.io")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Outreach.DailyEmailCap)
	assert.Equal(t, "hello@devsync.io", cfg.Email.From)
}

func TestValidateRejectsBadWindow(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Call.WindowStart = "17:00"
	cfg.Call.WindowEnd = "09:00"
	assert.Error(t, cfg.Validate())

	cfg.Call.WindowStart = "25:99"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Outreach.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsCapOutOfRange(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Outreach.DailyEmailCap = 0
	assert.Error(t, cfg.Validate())

	cfg.Outreach.DailyEmailCap = 10001
	assert.Error(t, cfg.Validate())
}

func TestLocation(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	loc := cfg.Location()
	require.NotNil(t, loc)
	assert.NotEqual(t, time.UTC, loc)
}
