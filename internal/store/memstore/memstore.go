// Package memstore is an in-memory Store implementation for tests.
// Grounded on the teacher's resources.Manager: a
// single mutex guarding a set of maps, no background goroutines.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store"
)

// Store is a sync.Mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu sync.Mutex

	telemetryNextID int64
	telemetry       map[string][]models.TelemetrySample // serviceID -> append-only, oldest first

	baselines map[string]models.Baseline
	health    map[string]models.HealthState

	driftNextID int64
	drift       []models.DriftEvent // append-only, oldest first

	zscoreNextID int64
	zscores      map[string][]models.ZScoreRecord // serviceID -> append-only, oldest first
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		telemetry: make(map[string][]models.TelemetrySample),
		baselines: make(map[string]models.Baseline),
		health:    make(map[string]models.HealthState),
		zscores:   make(map[string][]models.ZScoreRecord),
	}
}

func (s *Store) AppendTelemetry(_ context.Context, sample models.TelemetrySample) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetryNextID++
	sample.ID = s.telemetryNextID
	s.telemetry[sample.ServiceID] = append(s.telemetry[sample.ServiceID], sample)
	return sample.ID, nil
}

func (s *Store) CountTelemetry(_ context.Context, serviceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.telemetry[serviceID]), nil
}

func (s *Store) RecentTelemetry(_ context.Context, serviceID string, limit int) ([]models.TelemetrySample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.telemetry[serviceID]
	return newestFirst(all, limit), nil
}

func (s *Store) UpsertBaseline(_ context.Context, b models.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[b.ServiceID] = b
	return nil
}

func (s *Store) GetBaseline(_ context.Context, serviceID string) (models.Baseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.baselines[serviceID]
	if !ok {
		return models.Baseline{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) UpsertHealthState(_ context.Context, h models.HealthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[h.ServiceID] = h
	return nil
}

func (s *Store) GetHealthState(_ context.Context, serviceID string) (models.HealthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.health[serviceID]
	if !ok {
		return models.HealthState{}, store.ErrNotFound
	}
	return h, nil
}

func (s *Store) AppendDriftEvent(_ context.Context, e models.DriftEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driftNextID++
	e.ID = s.driftNextID
	s.drift = append(s.drift, e)
	return e.ID, nil
}

func (s *Store) RecentDriftEvents(_ context.Context, serviceID string, limit int) ([]models.DriftEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var filtered []models.DriftEvent
	if serviceID == "" {
		filtered = s.drift
	} else {
		for _, e := range s.drift {
			if e.ServiceID == serviceID {
				filtered = append(filtered, e)
			}
		}
	}
	out := make([]models.DriftEvent, len(filtered))
	copy(out, filtered)
	// append-order is oldest-first; reverse for newest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AppendZScore(_ context.Context, z models.ZScoreRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zscoreNextID++
	z.ID = s.zscoreNextID
	s.zscores[z.ServiceID] = append(s.zscores[z.ServiceID], z)
	return z.ID, nil
}

func (s *Store) RecentZScores(_ context.Context, serviceID string, limit int) ([]models.ZScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(s.zscores[serviceID], limit), nil
}

func (s *Store) PruneTelemetryBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for sid, samples := range s.telemetry {
		kept := samples[:0:0]
		for _, smp := range samples {
			if smp.Timestamp < cutoff {
				removed++
				continue
			}
			kept = append(kept, smp)
		}
		s.telemetry[sid] = kept
	}
	return removed, nil
}

func (s *Store) Services(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for sid := range s.telemetry {
		seen[sid] = struct{}{}
	}
	for sid := range s.health {
		seen[sid] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for sid := range seen {
		out = append(out, sid)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Close() error { return nil }

// newestFirst copies the oldest-first slice in, reverses it, and truncates
// to limit (0 means unlimited).
func newestFirst[T any](in []T, limit int) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
