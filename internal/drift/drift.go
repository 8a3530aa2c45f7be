// Package drift wraps the kernel's two-rule predicate with the store reads
// needed to evaluate it against a service's persisted z-score history, and
// the recovery check (with its lower 2.0 threshold) used to leave
// DRIFT_DETECTED.
package drift

import (
	"context"
	"fmt"

	"github.com/driftwatch/driftwatch/internal/kernel"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store"
)

// historyWindow bounds how many recent z-score records Evaluate and
// CheckRecovery pull; large enough to cover both kernel.DriftModerateWindow
// and kernel.RecoveryConsecutiveNormal.
const historyWindow = 64

// Detector evaluates drift and recovery conditions for a service using its
// persisted z-score history.
type Detector struct {
	store store.Store
}

// New constructs a Detector.
func New(s store.Store) *Detector {
	return &Detector{store: s}
}

// Result is what Evaluate reports about the latest sample.
type Result struct {
	LatencyZScore float64
	PayloadZScore float64
	Drift         bool
	Meta          kernel.DriftMeta
}

// Evaluate computes the z-scores for sample against baseline, persists a
// ZScoreRecord, then runs the two-rule drift predicate over the service's
// latency z-score history (newest sample first).
func (d *Detector) Evaluate(ctx context.Context, b models.Baseline, sample models.TelemetrySample) (Result, error) {
	latZ := kernel.ZScore(sample.LatencyMs, b.MeanLatency, b.StddevLatency)
	payZ := kernel.ZScore(sample.PayloadKB, b.MeanPayload, b.StddevPayload)

	if _, err := d.store.AppendZScore(ctx, models.ZScoreRecord{
		ServiceID:     sample.ServiceID,
		Timestamp:     sample.Timestamp,
		LatencyZScore: latZ,
		PayloadZScore: payZ,
		CreatedAt:     sample.CreatedAt,
	}); err != nil {
		return Result{}, fmt.Errorf("drift: persist zscore for %s: %w", sample.ServiceID, err)
	}

	history, err := d.store.RecentZScores(ctx, sample.ServiceID, historyWindow)
	if err != nil {
		return Result{}, fmt.Errorf("drift: load zscore history for %s: %w", sample.ServiceID, err)
	}

	latSeries := make([]float64, len(history))
	for i, z := range history {
		latSeries[i] = z.LatencyZScore
	}

	drift, meta := kernel.DetectDrift(latSeries)
	return Result{LatencyZScore: latZ, PayloadZScore: payZ, Drift: drift, Meta: meta}, nil
}

// CheckRecovery reports whether serviceID has strung together enough
// consecutive normal z-scores (per kernel.IsRecovered) to leave
// DRIFT_DETECTED and go back to STABLE.
func (d *Detector) CheckRecovery(ctx context.Context, serviceID string) (bool, error) {
	history, err := d.store.RecentZScores(ctx, serviceID, historyWindow)
	if err != nil {
		return false, fmt.Errorf("drift: load zscore history for %s: %w", serviceID, err)
	}
	latSeries := make([]float64, len(history))
	for i, z := range history {
		latSeries[i] = z.LatencyZScore
	}
	return kernel.IsRecovered(latSeries, 0), nil
}
