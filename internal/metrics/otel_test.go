package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOTelProviderInstrumentsDoNotPanic(t *testing.T) {
	p := NewOTelProvider(OTelProviderOptions{ServiceName: "driftwatch-test"})

	c := p.NewCounter(CounterOpts{CommonOpts{Subsystem: "ingest", Name: "accepted", Labels: []string{"service_id"}}})
	c.Inc(1, "svc-a")
	c.Inc(0, "svc-a") // zero delta is a no-op, must not panic

	g := p.NewGauge(GaugeOpts{CommonOpts{Subsystem: "ingest", Name: "queue_size", Labels: []string{"shard"}}})
	g.Set(4, "0")
	g.Set(6, "0") // diff-based Set must handle repeated calls
	g.Add(-2, "0")

	h := p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{Subsystem: "drift", Name: "zscore", Labels: []string{"service_id"}}})
	h.Observe(1.5, "svc-a")

	timerFn := p.NewTimer(HistogramOpts{CommonOpts: CommonOpts{Subsystem: "drift", Name: "eval_seconds"}})
	timerFn().ObserveDuration()

	require.NoError(t, p.Health(context.Background()))
}

func TestBuildOTelNameComposesDottedPath(t *testing.T) {
	name := buildOTelName(CommonOpts{Namespace: "driftwatch", Subsystem: "ingest", Name: "accepted"})
	require.Equal(t, "driftwatch.ingest.accepted", name)
}

func TestLabelKeyDistinguishesValueSets(t *testing.T) {
	require.NotEqual(t, labelKey([]string{"a"}), labelKey([]string{"b"}))
	require.Equal(t, labelKey([]string{"a", "b"}), labelKey([]string{"a", "b"}))
}
