// Package storetest holds a store-implementation-agnostic test suite, run
// against both memstore and sqlitestore so the two never drift apart in
// behavior. Grounded on the teacher's habit of sharing fixtures across
// interface implementations via a small internal test helper package.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store"
)

// Run exercises the full store.Store contract against s.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("telemetry round trip", func(t *testing.T) {
		_, err := s.AppendTelemetry(ctx, models.TelemetrySample{
			ServiceID: "svc-a", Timestamp: 100, LatencyMs: 42, PayloadKB: 1, CreatedAt: 100,
		})
		require.NoError(t, err)
		_, err = s.AppendTelemetry(ctx, models.TelemetrySample{
			ServiceID: "svc-a", Timestamp: 200, LatencyMs: 43, PayloadKB: 2, CreatedAt: 200,
		})
		require.NoError(t, err)

		n, err := s.CountTelemetry(ctx, "svc-a")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		recent, err := s.RecentTelemetry(ctx, "svc-a", 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, int64(200), recent[0].Timestamp, "RecentTelemetry must be newest-first")
	})

	t.Run("baseline not found then upsert", func(t *testing.T) {
		_, err := s.GetBaseline(ctx, "svc-missing")
		require.ErrorIs(t, err, store.ErrNotFound)

		b := models.Baseline{ServiceID: "svc-b", SampleCount: 100, MeanLatency: 150, StddevLatency: 10}
		require.NoError(t, s.UpsertBaseline(ctx, b))
		got, err := s.GetBaseline(ctx, "svc-b")
		require.NoError(t, err)
		assert.Equal(t, 100, got.SampleCount)

		b.SampleCount = 150
		require.NoError(t, s.UpsertBaseline(ctx, b))
		got, err = s.GetBaseline(ctx, "svc-b")
		require.NoError(t, err)
		assert.Equal(t, 150, got.SampleCount, "upsert must replace, not duplicate")
	})

	t.Run("health state not found then upsert with metadata", func(t *testing.T) {
		_, err := s.GetHealthState(ctx, "svc-missing")
		require.ErrorIs(t, err, store.ErrNotFound)

		h := models.HealthState{
			ServiceID:           "svc-c",
			State:               models.StatusStable,
			TransitionTimestamp: 1000,
			Metadata:            models.NewBaselineEstablishedMetadata(100),
		}
		require.NoError(t, s.UpsertHealthState(ctx, h))
		got, err := s.GetHealthState(ctx, "svc-c")
		require.NoError(t, err)
		assert.Equal(t, models.StatusStable, got.State)
		assert.Equal(t, models.ReasonBaselineEstablished, got.Metadata.Reason)
		assert.Equal(t, 100, got.Metadata.SampleCount)
	})

	t.Run("drift events newest first and filterable", func(t *testing.T) {
		_, err := s.AppendDriftEvent(ctx, models.DriftEvent{
			ServiceID: "svc-d", DetectedAt: 100, NewState: models.StatusDriftDetected,
			CorrelationID: "c1",
		})
		require.NoError(t, err)
		_, err = s.AppendDriftEvent(ctx, models.DriftEvent{
			ServiceID: "svc-d", DetectedAt: 200, NewState: models.StatusStable,
			CorrelationID: "c2",
		})
		require.NoError(t, err)
		_, err = s.AppendDriftEvent(ctx, models.DriftEvent{
			ServiceID: "svc-other", DetectedAt: 150, NewState: models.StatusDriftDetected,
			CorrelationID: "c3",
		})
		require.NoError(t, err)

		events, err := s.RecentDriftEvents(ctx, "svc-d", 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "c2", events[0].CorrelationID)
		assert.Equal(t, "c1", events[1].CorrelationID)

		all, err := s.RecentDriftEvents(ctx, "", 10)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("zscores newest first", func(t *testing.T) {
		_, err := s.AppendZScore(ctx, models.ZScoreRecord{ServiceID: "svc-e", Timestamp: 100, LatencyZScore: 1})
		require.NoError(t, err)
		_, err = s.AppendZScore(ctx, models.ZScoreRecord{ServiceID: "svc-e", Timestamp: 200, LatencyZScore: 2})
		require.NoError(t, err)

		zs, err := s.RecentZScores(ctx, "svc-e", 10)
		require.NoError(t, err)
		require.Len(t, zs, 2)
		assert.Equal(t, 2.0, zs[0].LatencyZScore)
	})

	t.Run("prune telemetry before cutoff", func(t *testing.T) {
		_, err := s.AppendTelemetry(ctx, models.TelemetrySample{ServiceID: "svc-f", Timestamp: 50})
		require.NoError(t, err)
		_, err = s.AppendTelemetry(ctx, models.TelemetrySample{ServiceID: "svc-f", Timestamp: 500})
		require.NoError(t, err)

		removed, err := s.PruneTelemetryBefore(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		n, err := s.CountTelemetry(ctx, "svc-f")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("services lists observed ids", func(t *testing.T) {
		_, err := s.AppendTelemetry(ctx, models.TelemetrySample{ServiceID: "svc-g", Timestamp: 1})
		require.NoError(t, err)
		ids, err := s.Services(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, "svc-g")
	})
}
