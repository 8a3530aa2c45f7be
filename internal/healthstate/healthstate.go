// Package healthstate is the orchestrator that ties baseline computation
// and drift detection to the persisted per-service HealthStatus state
// machine. Per-service critical sections are implemented with the same
// FNV-sharded map-of-mutexes idiom the teacher uses to key its adaptive
// rate limiter's domain state, repurposed here from per-domain throttling
// to per-service mutual exclusion around a read-modify-write state
// transition.
package healthstate

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/internal/baseline"
	"github.com/driftwatch/driftwatch/internal/clock"
	"github.com/driftwatch/driftwatch/internal/drift"
	"github.com/driftwatch/driftwatch/internal/kernel"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store"
)

// shardCount must be a power of two; mirrors the teacher's default
// ratelimit shard count.
const shardCount = 16

type shard struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Manager is the per-service state machine orchestrator. One Manager is
// shared by every ingestion worker; its internal sharding is what lets
// workers for different services proceed without contention while workers
// for the same service serialize.
type Manager struct {
	store    store.Store
	clock    clock.Clock
	baseline *baseline.Manager
	drift    *drift.Detector

	shards []*shard
	mask   uint64
}

// New constructs a Manager.
func New(s store.Store, c clock.Clock) *Manager {
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{locks: make(map[string]*sync.Mutex)}
	}
	return &Manager{
		store:    s,
		clock:    c,
		baseline: baseline.New(s, c),
		drift:    drift.New(s),
		shards:   shards,
		mask:     uint64(shardCount - 1),
	}
}

func (m *Manager) shardIndex(serviceID string) uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(serviceID))
	return uint64(h.Sum32()) & m.mask
}

// lockFor returns (creating if necessary) the mutex serializing access to
// serviceID's health state.
func (m *Manager) lockFor(serviceID string) *sync.Mutex {
	sh := m.shards[m.shardIndex(serviceID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	l, ok := sh.locks[serviceID]
	if !ok {
		l = &sync.Mutex{}
		sh.locks[serviceID] = l
	}
	return l
}

// ProcessTelemetry is the single read-modify-write transition driving the
// health state machine forward for one accepted sample: persist it,
// recompute the baseline if due, evaluate drift or recovery against the
// current baseline, and persist any resulting state transition plus its
// audit DriftEvent.
func (m *Manager) ProcessTelemetry(ctx context.Context, sample models.TelemetrySample) (models.HealthState, error) {
	lock := m.lockFor(sample.ServiceID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := m.store.AppendTelemetry(ctx, sample); err != nil {
		return models.HealthState{}, fmt.Errorf("healthstate: append telemetry for %s: %w", sample.ServiceID, err)
	}

	sampleCount, err := m.store.CountTelemetry(ctx, sample.ServiceID)
	if err != nil {
		return models.HealthState{}, fmt.Errorf("healthstate: count telemetry for %s: %w", sample.ServiceID, err)
	}

	current, err := m.currentState(ctx, sample.ServiceID)
	if err != nil {
		return models.HealthState{}, err
	}

	existingBaseline, hasBaseline, err := m.loadBaseline(ctx, sample.ServiceID)
	if err != nil {
		return models.HealthState{}, err
	}

	var existingPtr *models.Baseline
	if hasBaseline {
		existingPtr = &existingBaseline
	}

	if baseline.ShouldRecalculate(existingPtr, sampleCount) {
		newBaseline, err := m.baseline.CalculateAndStore(ctx, sample.ServiceID)
		if err != nil {
			return models.HealthState{}, fmt.Errorf("healthstate: recompute baseline for %s: %w", sample.ServiceID, err)
		}
		existingBaseline = newBaseline
		hasBaseline = true

		if current.State == models.StatusInsufficientData {
			return m.transition(ctx, sample, current, models.StatusStable,
				models.NewBaselineEstablishedMetadata(newBaseline.SampleCount), nil)
		}
	}

	if !hasBaseline {
		return current, nil
	}

	result, err := m.drift.Evaluate(ctx, existingBaseline, sample)
	if err != nil {
		return models.HealthState{}, fmt.Errorf("healthstate: evaluate drift for %s: %w", sample.ServiceID, err)
	}

	switch current.State {
	case models.StatusStable:
		if result.Drift {
			meta := driftMetadata(result)
			return m.transition(ctx, sample, current, models.StatusDriftDetected, meta,
				[]float64{result.LatencyZScore})
		}
	case models.StatusDriftDetected:
		recovered, err := m.drift.CheckRecovery(ctx, sample.ServiceID)
		if err != nil {
			return models.HealthState{}, fmt.Errorf("healthstate: check recovery for %s: %w", sample.ServiceID, err)
		}
		if recovered {
			return m.transition(ctx, sample, current, models.StatusStable,
				models.NewRecoveredMetadata(kernel.RecoveryConsecutiveNormal), nil)
		}
	}

	return current, nil
}

func driftMetadata(r drift.Result) models.TransitionMetadata {
	if r.Meta.Rule == kernel.RuleConsecutiveSevere {
		return models.NewConsecutiveSevereMetadata(r.Meta.ConsecutiveCount, r.LatencyZScore, r.PayloadZScore)
	}
	return models.NewModerateInWindowMetadata(r.Meta.ModerateCount, r.Meta.WindowSize, r.LatencyZScore, r.PayloadZScore)
}

// currentState returns the service's persisted health state. On first
// query for a never-before-seen service, it persists the INSUFFICIENT_DATA
// row rather than merely synthesizing one in memory, per spec §3/§6's
// "creates an INSUFFICIENT_DATA record on first query" contract.
func (m *Manager) currentState(ctx context.Context, serviceID string) (models.HealthState, error) {
	h, err := m.store.GetHealthState(ctx, serviceID)
	if err == store.ErrNotFound {
		h = models.HealthState{
			ServiceID:           serviceID,
			State:               models.StatusInsufficientData,
			TransitionTimestamp: clock.NowMillis(m.clock),
		}
		if err := m.store.UpsertHealthState(ctx, h); err != nil {
			return models.HealthState{}, fmt.Errorf("healthstate: persist initial state for %s: %w", serviceID, err)
		}
		return h, nil
	}
	if err != nil {
		return models.HealthState{}, fmt.Errorf("healthstate: load state for %s: %w", serviceID, err)
	}
	return h, nil
}

func (m *Manager) loadBaseline(ctx context.Context, serviceID string) (models.Baseline, bool, error) {
	b, err := m.store.GetBaseline(ctx, serviceID)
	if err == store.ErrNotFound {
		return models.Baseline{}, false, nil
	}
	if err != nil {
		return models.Baseline{}, false, fmt.Errorf("healthstate: load baseline for %s: %w", serviceID, err)
	}
	return b, true, nil
}

// transition persists the new HealthState and its paired audit DriftEvent.
func (m *Manager) transition(ctx context.Context, sample models.TelemetrySample, prev models.HealthState,
	next models.HealthStatus, meta models.TransitionMetadata, triggerSamples []float64) (models.HealthState, error) {
	now := clock.NowMillis(m.clock)
	state := models.HealthState{
		ServiceID:           sample.ServiceID,
		State:               next,
		TransitionTimestamp: now,
		Metadata:            meta,
	}
	if err := m.store.UpsertHealthState(ctx, state); err != nil {
		return models.HealthState{}, fmt.Errorf("healthstate: persist state for %s: %w", sample.ServiceID, err)
	}

	event := models.DriftEvent{
		ServiceID:      sample.ServiceID,
		DetectedAt:     now,
		PreviousState:  prev.State,
		NewState:       next,
		TriggerSamples: triggerSamples,
		Metadata:       meta,
		CorrelationID:  uuid.NewString(),
	}
	if _, err := m.store.AppendDriftEvent(ctx, event); err != nil {
		return models.HealthState{}, fmt.Errorf("healthstate: append drift event for %s: %w", sample.ServiceID, err)
	}
	return state, nil
}

// GetHealth returns the current snapshot for serviceID, including its
// baseline (if established) and recent audit trail.
func (m *Manager) GetHealth(ctx context.Context, serviceID string) (models.HealthSnapshot, error) {
	state, err := m.currentState(ctx, serviceID)
	if err != nil {
		return models.HealthSnapshot{}, err
	}

	snapshot := models.HealthSnapshot{
		ServiceID:           serviceID,
		State:               state.State,
		TransitionTimestamp: state.TransitionTimestamp,
		Metadata:            state.Metadata,
	}

	if b, hasBaseline, err := m.loadBaseline(ctx, serviceID); err != nil {
		return models.HealthSnapshot{}, err
	} else if hasBaseline {
		snapshot.Baseline = &b
	}

	sampleCount, err := m.store.CountTelemetry(ctx, serviceID)
	if err != nil {
		return models.HealthSnapshot{}, fmt.Errorf("healthstate: count telemetry for %s: %w", serviceID, err)
	}
	snapshot.SampleCount = sampleCount

	events, err := m.store.RecentDriftEvents(ctx, serviceID, 5)
	if err != nil {
		return models.HealthSnapshot{}, fmt.Errorf("healthstate: recent drift events for %s: %w", serviceID, err)
	}
	snapshot.RecentEvents = events

	zscores, err := m.store.RecentZScores(ctx, serviceID, 5)
	if err != nil {
		return models.HealthSnapshot{}, fmt.Errorf("healthstate: recent zscores for %s: %w", serviceID, err)
	}
	snapshot.RecentZScores = zscores

	return snapshot, nil
}

// Reset forces serviceID back to INSUFFICIENT_DATA, recording a manual-reset
// audit event. Baseline and historical telemetry are left untouched, per
// spec's narrowly-scoped manual-reset contract.
func (m *Manager) Reset(ctx context.Context, serviceID string) (models.HealthState, error) {
	lock := m.lockFor(serviceID)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.currentState(ctx, serviceID)
	if err != nil {
		return models.HealthState{}, err
	}
	if current.State == models.StatusInsufficientData {
		return current, nil
	}
	now := clock.NowMillis(m.clock)
	state := models.HealthState{
		ServiceID:           serviceID,
		State:               models.StatusInsufficientData,
		TransitionTimestamp: now,
		Metadata:            models.NewManualResetMetadata(),
	}
	if err := m.store.UpsertHealthState(ctx, state); err != nil {
		return models.HealthState{}, fmt.Errorf("healthstate: persist reset for %s: %w", serviceID, err)
	}
	event := models.DriftEvent{
		ServiceID:     serviceID,
		DetectedAt:    now,
		PreviousState: current.State,
		NewState:      models.StatusInsufficientData,
		Metadata:      models.NewManualResetMetadata(),
		CorrelationID: uuid.NewString(),
	}
	if _, err := m.store.AppendDriftEvent(ctx, event); err != nil {
		return models.HealthState{}, fmt.Errorf("healthstate: append reset event for %s: %w", serviceID, err)
	}
	return state, nil
}
