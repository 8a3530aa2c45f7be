// Package store defines the persistence contract the engine's components
// depend on. Store is named-interface-only here; concrete durability lives
// in sqlitestore, and memstore backs tests that need no real database.
package store

import (
	"context"

	"github.com/driftwatch/driftwatch/internal/models"
)

// Store is the full capability set the engine requires of a backing store.
// No component holds a concrete store type directly — everything threads
// this interface so sqlitestore and memstore are interchangeable.
type Store interface {
	// AppendTelemetry inserts one sample and returns its assigned ID.
	AppendTelemetry(ctx context.Context, sample models.TelemetrySample) (int64, error)
	// CountTelemetry returns the number of samples recorded for serviceID.
	CountTelemetry(ctx context.Context, serviceID string) (int, error)
	// RecentTelemetry returns up to limit samples for serviceID, newest first.
	RecentTelemetry(ctx context.Context, serviceID string, limit int) ([]models.TelemetrySample, error)

	// UpsertBaseline replaces the single baseline row for the service.
	UpsertBaseline(ctx context.Context, b models.Baseline) error
	// GetBaseline returns the current baseline, or ErrNotFound if none exists.
	GetBaseline(ctx context.Context, serviceID string) (models.Baseline, error)

	// UpsertHealthState replaces the single health-state row for the service.
	UpsertHealthState(ctx context.Context, h models.HealthState) error
	// GetHealthState returns the current health state, or ErrNotFound.
	GetHealthState(ctx context.Context, serviceID string) (models.HealthState, error)

	// AppendDriftEvent inserts one audit row and returns its assigned ID.
	AppendDriftEvent(ctx context.Context, e models.DriftEvent) (int64, error)
	// RecentDriftEvents returns up to limit events, newest first. serviceID
	// filters to one service when non-empty.
	RecentDriftEvents(ctx context.Context, serviceID string, limit int) ([]models.DriftEvent, error)

	// AppendZScore inserts one computed z-score record.
	AppendZScore(ctx context.Context, z models.ZScoreRecord) (int64, error)
	// RecentZScores returns up to limit z-score records for serviceID, newest
	// first — the input DetectDrift and IsRecovered consume.
	RecentZScores(ctx context.Context, serviceID string, limit int) ([]models.ZScoreRecord, error)

	// PruneTelemetryBefore deletes samples older than cutoff (epoch ms),
	// returning the number of rows removed. No component in this
	// repository calls it on a schedule; there is no retention sweep.
	PruneTelemetryBefore(ctx context.Context, cutoff int64) (int64, error)

	// Services lists every service_id that has telemetry or a health-state
	// row. The HTTP API does not expose it.
	Services(ctx context.Context) ([]string, error)

	Close() error
}
