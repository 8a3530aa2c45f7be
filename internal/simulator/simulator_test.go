package simulator

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/models"
)

type recordingSink struct {
	requests []models.TelemetryRequest
}

func (s *recordingSink) Accept(req models.TelemetryRequest) models.IngestResult {
	s.requests = append(s.requests, req)
	return models.IngestResult{Outcome: models.OutcomeAccepted, ServiceID: req.ServiceID}
}

func TestRunEmitsRequestedSampleCountRoundRobin(t *testing.T) {
	sink := &recordingSink{}
	cfg := Config{
		Profiles: []ServiceProfile{
			{ServiceID: "svc-a", LatencyMeanMs: 100, LatencyStddev: 5, PayloadMeanKB: 2, PayloadStddev: 0.1},
			{ServiceID: "svc-b", LatencyMeanMs: 200, LatencyStddev: 5, PayloadMeanKB: 2, PayloadStddev: 0.1},
		},
		SamplesTotal: 10,
		Interval:     time.Millisecond,
		Rand:         rand.New(rand.NewSource(42)),
	}

	accepted := Run(context.Background(), sink, cfg)

	require.Equal(t, 10, accepted)
	require.Len(t, sink.requests, 10)
	require.Equal(t, "svc-a", sink.requests[0].ServiceID)
	require.Equal(t, "svc-b", sink.requests[1].ServiceID)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	accepted := Run(ctx, sink, Config{
		Profiles:     []ServiceProfile{{ServiceID: "svc-a", LatencyMeanMs: 100, LatencyStddev: 1}},
		SamplesTotal: 1000,
		Interval:     time.Millisecond,
	})

	require.Equal(t, 0, accepted)
}

func TestRunAppliesDriftShiftAfterThreshold(t *testing.T) {
	sink := &recordingSink{}
	cfg := Config{
		Profiles: []ServiceProfile{
			{ServiceID: "svc-a", LatencyMeanMs: 100, LatencyStddev: 0.001, DriftAfter: 3, DriftShiftMs: 500},
		},
		SamplesTotal: 6,
		Interval:     time.Millisecond,
		Rand:         rand.New(rand.NewSource(1)),
	}

	Run(context.Background(), sink, cfg)

	require.Len(t, sink.requests, 6)
	for i, req := range sink.requests {
		if i < 3 {
			require.Less(t, req.LatencyMs, 200.0)
		} else {
			require.Greater(t, req.LatencyMs, 400.0)
		}
	}
}

func TestRunWithNoProfilesOrZeroSamplesIsNoop(t *testing.T) {
	sink := &recordingSink{}
	require.Equal(t, 0, Run(context.Background(), sink, Config{}))
	require.Equal(t, 0, Run(context.Background(), sink, Config{Profiles: []ServiceProfile{{ServiceID: "svc-a"}}}))
}
