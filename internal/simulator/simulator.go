// Package simulator generates synthetic telemetry for manual smoke testing
// of the ingestion pipeline, driven by cmd/driftwatch's -simulate flag. It
// is a standalone external collaborator (spec §1 names the API Adapter as
// one example of a caller driving ingest()), not something the engine
// itself imports or exercises in tests.
package simulator

import (
	"context"
	"math/rand"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
)

// Sink is the narrow surface the simulator drives; ingestion.Pipeline
// satisfies it.
type Sink interface {
	Accept(req models.TelemetryRequest) models.IngestResult
}

// ServiceProfile describes one simulated service's steady-state latency and
// payload distribution, plus an optional drift injection.
type ServiceProfile struct {
	ServiceID      string
	LatencyMeanMs  float64
	LatencyStddev  float64
	PayloadMeanKB  float64
	PayloadStddev  float64
	// DriftAfter, if non-zero, shifts LatencyMeanMs by DriftShiftMs once
	// this many samples have been emitted for the service, simulating a
	// step-function regression.
	DriftAfter   int
	DriftShiftMs float64
}

// Config controls the overall run.
type Config struct {
	Profiles     []ServiceProfile
	SamplesTotal int
	Interval     time.Duration
	Rand         *rand.Rand // nil uses a package-default source
}

// Run emits Config.SamplesTotal samples round-robin across Profiles,
// pacing Interval apart, until ctx is cancelled or the total is reached. It
// returns the count of samples actually accepted.
func Run(ctx context.Context, sink Sink, cfg Config) int {
	if len(cfg.Profiles) == 0 || cfg.SamplesTotal <= 0 {
		return 0
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	counts := make([]int, len(cfg.Profiles))
	accepted := 0
	ticker := time.NewTicker(max(cfg.Interval, time.Millisecond))
	defer ticker.Stop()

	for i := 0; i < cfg.SamplesTotal; i++ {
		select {
		case <-ctx.Done():
			return accepted
		case <-ticker.C:
		}

		p := cfg.Profiles[i%len(cfg.Profiles)]
		idx := i % len(cfg.Profiles)
		counts[idx]++

		mean := p.LatencyMeanMs
		if p.DriftAfter > 0 && counts[idx] > p.DriftAfter {
			mean += p.DriftShiftMs
		}

		req := models.TelemetryRequest{
			ServiceID: p.ServiceID,
			LatencyMs: clampNonNegative(rng.NormFloat64()*p.LatencyStddev + mean),
			PayloadKB: clampNonNegative(rng.NormFloat64()*p.PayloadStddev + p.PayloadMeanKB),
		}
		if sink.Accept(req).Outcome == models.OutcomeAccepted {
			accepted++
		}
	}
	return accepted
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func max(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
