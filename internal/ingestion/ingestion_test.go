package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/clock"
	"github.com/driftwatch/driftwatch/internal/healthstate"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store/memstore"
)

func newTestPipeline(cfg Config) (*Pipeline, *healthstate.Manager, *memstore.Store) {
	s := memstore.New()
	fc := clock.NewFake(time.Unix(1_700_000_000, 0))
	health := healthstate.New(s, fc)
	return New(health, fc, cfg), health, s
}

func TestAcceptRejectsMissingServiceID(t *testing.T) {
	p, _, _ := newTestPipeline(DefaultConfig())
	res := p.Accept(models.TelemetryRequest{LatencyMs: 1, PayloadKB: 1})
	assert.Equal(t, models.OutcomeValidationError, res.Outcome)
}

func TestAcceptRejectsNegativeLatency(t *testing.T) {
	p, _, _ := newTestPipeline(DefaultConfig())
	res := p.Accept(models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: -1})
	assert.Equal(t, models.OutcomeValidationError, res.Outcome)
}

func TestAcceptAppliesBackpressureWhenShardFull(t *testing.T) {
	p, _, _ := newTestPipeline(Config{QueueMax: 1, ShardCount: 1})
	first := p.Accept(models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: 1, PayloadKB: 1})
	require.Equal(t, models.OutcomeAccepted, first.Outcome)

	second := p.Accept(models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: 1, PayloadKB: 1})
	assert.Equal(t, models.OutcomeBackpressure, second.Outcome)
}

func TestRunProcessesAcceptedSamples(t *testing.T) {
	p, health, _ := newTestPipeline(Config{QueueMax: 100, ShardCount: 4})
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = p.Run(ctx)
	}()

	res := p.Accept(models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: 150, PayloadKB: 2})
	require.Equal(t, models.OutcomeAccepted, res.Outcome)

	require.Eventually(t, func() bool {
		return p.Stats().Processed == 1
	}, time.Second, time.Millisecond)

	snap, err := health.GetHealth(context.Background(), "svc-a")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.SampleCount)

	cancel()
	wg.Wait()
}

func TestFIFOOrderingPerService(t *testing.T) {
	p, health, s := newTestPipeline(Config{QueueMax: 1000, ShardCount: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = p.Run(ctx)
	}()

	const n = 50
	for i := 0; i < n; i++ {
		res := p.Accept(models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: float64(100 + i), PayloadKB: 1})
		require.Equal(t, models.OutcomeAccepted, res.Outcome)
	}

	require.Eventually(t, func() bool {
		return p.Stats().Processed >= n
	}, 2*time.Second, time.Millisecond)

	snap, err := health.GetHealth(context.Background(), "svc-a")
	require.NoError(t, err)
	assert.Equal(t, n, snap.SampleCount)

	recent, err := s.RecentTelemetry(context.Background(), "svc-a", n)
	require.NoError(t, err)
	require.Len(t, recent, n)
	// recent is newest-first; the last sample accepted must have the
	// highest latency since submissions were monotonically increasing.
	assert.InDelta(t, 100+n-1, recent[0].LatencyMs, 1e-9)
	assert.InDelta(t, 100, recent[n-1].LatencyMs, 1e-9)
}
