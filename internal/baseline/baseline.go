// Package baseline owns recompute cadence and persistence for per-service
// statistical baselines, built on top of the pure functions in
// internal/kernel. Shaped after the teacher's resources.Manager: a small
// struct wrapping a Store dependency, no package-level state.
package baseline

import (
	"context"
	"fmt"

	"github.com/driftwatch/driftwatch/internal/clock"
	"github.com/driftwatch/driftwatch/internal/kernel"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store"
)

// RecalcInterval is how far a service's total sample count must exceed the
// baseline's recorded SampleCount before ShouldRecalculate fires again.
// SampleCount is capped at the baseline window (1000), so once a service
// has more than 1000+RecalcInterval samples every new sample triggers a
// recompute.
const RecalcInterval = 50

// Manager recomputes and persists baselines for services once they cross
// kernel.MinSamplesForBaseline observations.
type Manager struct {
	store store.Store
	clock clock.Clock
}

// New constructs a Manager.
func New(s store.Store, c clock.Clock) *Manager {
	return &Manager{store: s, clock: c}
}

// ShouldRecalculate reports whether a service's baseline is due for
// recompute: either no baseline exists yet and enough samples have arrived,
// or sampleCount has advanced by at least RecalcInterval since the
// baseline's recorded SampleCount.
func ShouldRecalculate(existing *models.Baseline, sampleCount int) bool {
	if sampleCount < kernel.MinSamplesForBaseline {
		return false
	}
	if existing == nil {
		return true
	}
	return sampleCount-existing.SampleCount >= RecalcInterval
}

// CalculateAndStore pulls the most recent windowSize (1000) samples
// for serviceID, computes fresh baseline statistics over their latency and
// payload dimensions, and persists the result. Returns the new baseline.
func (m *Manager) CalculateAndStore(ctx context.Context, serviceID string) (models.Baseline, error) {
	const windowSize = 1000 // spec §6 BASELINE_WINDOW_SIZE

	samples, err := m.store.RecentTelemetry(ctx, serviceID, windowSize)
	if err != nil {
		return models.Baseline{}, fmt.Errorf("baseline: load samples for %s: %w", serviceID, err)
	}
	if len(samples) < kernel.MinSamplesForBaseline {
		return models.Baseline{}, fmt.Errorf("baseline: %s has %d samples, need %d: %w",
			serviceID, len(samples), kernel.MinSamplesForBaseline, kernel.ErrInsufficientSamples)
	}

	latencies := make([]float64, len(samples))
	payloads := make([]float64, len(samples))
	for i, s := range samples {
		latencies[i] = s.LatencyMs
		payloads[i] = s.PayloadKB
	}

	latStats, err := kernel.Baseline(latencies)
	if err != nil {
		return models.Baseline{}, fmt.Errorf("baseline: latency stats for %s: %w", serviceID, err)
	}
	payloadStats, err := kernel.Baseline(payloads)
	if err != nil {
		return models.Baseline{}, fmt.Errorf("baseline: payload stats for %s: %w", serviceID, err)
	}

	now := clock.NowMillis(m.clock)
	b := models.Baseline{
		ServiceID:     serviceID,
		SampleCount:   len(samples),
		MeanLatency:   latStats.Mean,
		StddevLatency: latStats.Stddev,
		P50Latency:    latStats.P50,
		P95Latency:    latStats.P95,
		P99Latency:    latStats.P99,
		MeanPayload:   payloadStats.Mean,
		StddevPayload: payloadStats.Stddev,
		P50Payload:    payloadStats.P50,
		P95Payload:    payloadStats.P95,
		P99Payload:    payloadStats.P99,
		LastUpdated:   now,
		CreatedAt:     now,
	}

	if existing, err := m.store.GetBaseline(ctx, serviceID); err == nil {
		b.CreatedAt = existing.CreatedAt
	}

	if err := m.store.UpsertBaseline(ctx, b); err != nil {
		return models.Baseline{}, fmt.Errorf("baseline: persist %s: %w", serviceID, err)
	}
	return b, nil
}
