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

	assert.Equal(t, "8001", cfg.Port)
	assert.Equal(t, 200, cfg.SyncPageSize)
	assert.Equal(t, 4, cfg.SyncMaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.SyncRetryInterval)
	assert.Equal(t, 0.90, cfg.FuzzyThresholdVolunteer)
	assert.Equal(t, time.Duration(0), cfg.SchedulerInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SYNC_PAGE_SIZE", "50")
	t.Setenv("FUZZY_THRESHOLD_STUDENT", "0.85")
	t.Setenv("SCHEDULER_INTERVAL", "15m")
	t.Setenv("SYNC_RETRY_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.SyncPageSize)
	assert.Equal(t, 0.85, cfg.FuzzyThresholdStudent)
	assert.Equal(t, 15*time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, 2*time.Second, cfg.SyncRetryInterval)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("SYNC_PAGE_SIZE", "lots")
	t.Setenv("FUZZY_THRESHOLD_STUDENT", "high")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.SyncPageSize)
	assert.Equal(t, 0.90, cfg.FuzzyThresholdStudent)
}
