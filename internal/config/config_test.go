package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchSpec(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, 100, cfg.MinSamplesForBaseline)
	require.Equal(t, 1000, cfg.BaselineWindowSize)
	require.Equal(t, 50, cfg.BaselineRecalcInterval)
	require.Equal(t, 3.0, cfg.DriftZScoreThreshold)
	require.Equal(t, 5, cfg.DriftConsecutiveThreshold)
	require.Equal(t, 2.5, cfg.DriftModerateThreshold)
	require.Equal(t, 10, cfg.DriftModerateCount)
	require.Equal(t, 20, cfg.DriftModerateWindow)
	require.Equal(t, 50, cfg.RecoveryConsecutiveNormal)
	require.Equal(t, 1, cfg.TimestampToleranceHours)
	require.Equal(t, 10000, cfg.IngestQueueMax)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
drift_zscore_threshold: 4.5
ingest_queue_max: 500
service_name: checkout-svc
retention_max_age: 72h
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 4.5, cfg.DriftZScoreThreshold)
	require.Equal(t, 500, cfg.IngestQueueMax)
	require.Equal(t, "checkout-svc", cfg.ServiceName)
	require.Equal(t, 72*time.Hour, cfg.RetentionMaxAge)

	// Untouched fields keep their defaults.
	require.Equal(t, 100, cfg.MinSamplesForBaseline)
	require.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestIngestionConfigAdapter(t *testing.T) {
	cfg := Defaults()
	ic := cfg.IngestionConfig()
	require.Equal(t, cfg.IngestQueueMax, ic.QueueMax)
	require.Equal(t, cfg.IngestShardCount, ic.ShardCount)
}
