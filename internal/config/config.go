// Package config is the YAML-backed configuration surface for the engine,
// shaped after the teacher's engine.Config/Defaults() pair: a flat struct
// of tunables with a Defaults() constructor giving spec-mandated values,
// loaded from YAML with gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftwatch/driftwatch/internal/ingestion"
)

// Config is the full set of tunables spec §6's configuration table names,
// plus the ambient server/storage/observability settings a complete
// deployment needs. cmd/driftwatch applies the ingestion, storage, HTTP and
// observability fields; the statistical threshold fields are parsed but not
// read by the engine, which uses the constants in internal/kernel,
// internal/baseline and internal/ingestion.
type Config struct {
	// Statistical kernel / drift thresholds.
	MinSamplesForBaseline     int     `yaml:"min_samples_for_baseline"`
	BaselineWindowSize        int     `yaml:"baseline_window_size"`
	BaselineRecalcInterval    int     `yaml:"baseline_recalc_interval"`
	DriftZScoreThreshold      float64 `yaml:"drift_zscore_threshold"`
	DriftConsecutiveThreshold int     `yaml:"drift_consecutive_threshold"`
	DriftModerateThreshold    float64 `yaml:"drift_moderate_zscore_threshold"`
	DriftModerateCount        int     `yaml:"drift_moderate_count"`
	DriftModerateWindow       int     `yaml:"drift_moderate_window"`
	RecoveryConsecutiveNormal int     `yaml:"recovery_consecutive_normal"`
	TimestampToleranceHours   int     `yaml:"timestamp_tolerance_hours"`

	// Ingestion.
	IngestQueueMax   int `yaml:"ingest_queue_max"`
	IngestShardCount int `yaml:"ingest_shard_count"`

	// Storage.
	StoragePath string `yaml:"storage_path"`

	// HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// Observability.
	ServiceName          string `yaml:"service_name"`
	Environment          string `yaml:"environment"`
	MetricsEnabled       bool   `yaml:"metrics_enabled"`
	MetricsBackend       string `yaml:"metrics_backend"` // "prom" | "otel" | "noop"
	PrometheusListenAddr string `yaml:"prometheus_listen_addr"`
	LogLevel             string `yaml:"log_level"`

	// RetentionSweepInterval and RetentionMaxAge describe a telemetry
	// retention sweep; nothing in this repository reads them and no sweep
	// runs.
	RetentionSweepInterval time.Duration `yaml:"retention_sweep_interval"`
	RetentionMaxAge        time.Duration `yaml:"retention_max_age"`
}

// Defaults returns a Config populated with spec §6's stated defaults.
func Defaults() Config {
	return Config{
		MinSamplesForBaseline:     100,
		BaselineWindowSize:        1000,
		BaselineRecalcInterval:    50,
		DriftZScoreThreshold:      3.0,
		DriftConsecutiveThreshold: 5,
		DriftModerateThreshold:    2.5,
		DriftModerateCount:        10,
		DriftModerateWindow:       20,
		RecoveryConsecutiveNormal: 50,
		TimestampToleranceHours:   1,

		IngestQueueMax:   ingestion.DefaultQueueMax,
		IngestShardCount: ingestion.DefaultShardCount,

		StoragePath: "driftwatch.db",
		ListenAddr:  ":8080",

		ServiceName:          "driftwatch",
		Environment:          "development",
		MetricsEnabled:       true,
		MetricsBackend:       "prom",
		PrometheusListenAddr: ":2112",
		LogLevel:             "info",

		RetentionSweepInterval: time.Hour,
		RetentionMaxAge:        30 * 24 * time.Hour,
	}
}

// Load reads and parses a YAML config file, applying it on top of Defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// IngestionConfig adapts Config to ingestion.Config.
func (c Config) IngestionConfig() ingestion.Config {
	return ingestion.Config{QueueMax: c.IngestQueueMax, ShardCount: c.IngestShardCount}
}
