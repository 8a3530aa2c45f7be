// Package ingestion is the engine's front door: it validates inbound
// telemetry, enqueues it onto a bounded, non-blocking, per-service-sharded
// set of channels, and drives a worker pool that drains those channels into
// the health state machine. The worker-pool/shard/errgroup shape is
// generalized from the teacher's multi-stage crawl pipeline
// (packages/engine/pipeline/pipeline.go): the teacher chains
// discovery->extraction->processing->output stages over buffered channels
// guarded by a context and a sync.WaitGroup per stage; this package
// collapses that to a single accept-then-process stage, but keeps the
// worker-per-shard, context-cancellation, buffered-channel-backpressure
// idiom intact and swaps the teacher's raw WaitGroups for
// golang.org/x/sync/errgroup.
package ingestion

import (
	"context"
	"hash/fnv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driftwatch/driftwatch/internal/clock"
	"github.com/driftwatch/driftwatch/internal/healthstate"
	"github.com/driftwatch/driftwatch/internal/models"
)

// Defaults mirror spec §6's configuration table.
const (
	DefaultQueueMax           = 10000
	DefaultShardCount         = 16 // must be a power of two
	TimestampToleranceHours   = 1
)

// Config controls queue sizing and shard fan-out.
type Config struct {
	QueueMax   int
	ShardCount int
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{QueueMax: DefaultQueueMax, ShardCount: DefaultShardCount}
}

// Pipeline is the bounded ingestion front door. Each shard is a single
// buffered channel drained by exactly one worker goroutine, which is what
// guarantees FIFO per-service ordering: every sample for a given service_id
// hashes to the same shard and is therefore processed in arrival order
// relative to its siblings, even though samples for other services are
// processed concurrently on other shards.
type Pipeline struct {
	cfg     Config
	clock   clock.Clock
	health  *healthstate.Manager
	shards  []chan models.TelemetrySample
	mask    uint64

	received  int64
	processed int64
	rejected  int64
}

// New constructs a Pipeline. Call Run to start its worker pool.
func New(health *healthstate.Manager, c clock.Clock, cfg Config) *Pipeline {
	if cfg.ShardCount <= 0 || cfg.ShardCount&(cfg.ShardCount-1) != 0 {
		cfg.ShardCount = DefaultShardCount
	}
	if cfg.QueueMax <= 0 {
		cfg.QueueMax = DefaultQueueMax
	}
	perShard := cfg.QueueMax / cfg.ShardCount
	if perShard < 1 {
		perShard = 1
	}
	shards := make([]chan models.TelemetrySample, cfg.ShardCount)
	for i := range shards {
		shards[i] = make(chan models.TelemetrySample, perShard)
	}
	return &Pipeline{cfg: cfg, clock: c, health: health, shards: shards, mask: uint64(cfg.ShardCount - 1)}
}

func (p *Pipeline) shardIndex(serviceID string) uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(serviceID))
	return uint64(h.Sum32()) & p.mask
}

// Accept validates req and enqueues it, never blocking. A full shard yields
// a Backpressure outcome rather than waiting for room.
func (p *Pipeline) Accept(req models.TelemetryRequest) models.IngestResult {
	atomic.AddInt64(&p.received, 1)

	if err := validate(req); err != nil {
		atomic.AddInt64(&p.rejected, 1)
		return models.IngestResult{
			Outcome:   models.OutcomeValidationError,
			ServiceID: req.ServiceID,
			Err:       models.NewEngineError(models.KindValidation, req.ServiceID, err),
		}
	}

	ts := clock.NowMillis(p.clock)
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	now := p.clock.Now()
	if err := checkTimestampTolerance(ts, now); err != nil {
		atomic.AddInt64(&p.rejected, 1)
		return models.IngestResult{
			Outcome:   models.OutcomeValidationError,
			ServiceID: req.ServiceID,
			Err:       models.NewEngineError(models.KindValidation, req.ServiceID, err),
		}
	}

	sample := models.TelemetrySample{
		ServiceID: req.ServiceID,
		Timestamp: ts,
		LatencyMs: req.LatencyMs,
		PayloadKB: req.PayloadKB,
		CreatedAt: now.UnixMilli(),
	}

	shard := p.shards[p.shardIndex(req.ServiceID)]
	select {
	case shard <- sample:
		return models.IngestResult{
			Outcome:   models.OutcomeAccepted,
			ServiceID: req.ServiceID,
			Timestamp: ts,
			QueueSize: len(shard),
		}
	default:
		atomic.AddInt64(&p.rejected, 1)
		return models.IngestResult{
			Outcome:   models.OutcomeBackpressure,
			ServiceID: req.ServiceID,
			Err: models.NewEngineError(models.KindBackpressure, req.ServiceID,
				errBackpressure),
		}
	}
}

// Run starts one worker per shard and blocks until ctx is cancelled or a
// worker returns an error, at which point every other worker is cancelled
// too (errgroup.WithContext semantics). Channels are not drained: samples
// still queued when the workers stop are left unprocessed.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, shard := range p.shards {
		shard := shard
		g.Go(func() error {
			return p.worker(ctx, shard)
		})
	}
	return g.Wait()
}

func (p *Pipeline) worker(ctx context.Context, queue chan models.TelemetrySample) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-queue:
			if !ok {
				return nil
			}
			if _, err := p.health.ProcessTelemetry(ctx, sample); err != nil {
				atomic.AddInt64(&p.rejected, 1)
				continue
			}
			atomic.AddInt64(&p.processed, 1)
		}
	}
}

// Stats returns a point-in-time snapshot of the pipeline's counters.
func (p *Pipeline) Stats() models.IngestionStats {
	received := atomic.LoadInt64(&p.received)
	processed := atomic.LoadInt64(&p.processed)
	var queueSize int
	for _, shard := range p.shards {
		queueSize += len(shard)
	}
	rate := 0.0
	if received > 0 {
		rate = float64(processed) / float64(received)
	}
	return models.IngestionStats{
		Received:       received,
		Processed:      processed,
		Rejected:       atomic.LoadInt64(&p.rejected),
		QueueSize:      queueSize,
		ProcessingRate: rate,
	}
}

func checkTimestampTolerance(tsMillis int64, now time.Time) error {
	ts := time.UnixMilli(tsMillis)
	tolerance := TimestampToleranceHours * time.Hour
	if ts.After(now.Add(tolerance)) || ts.Before(now.Add(-tolerance)) {
		return errTimestampOutOfRange
	}
	return nil
}
