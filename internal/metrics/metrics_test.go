package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopProviderDiscardsObservations(t *testing.T) {
	p := NewNoopProvider()

	c := p.NewCounter(CounterOpts{CommonOpts{Name: "ignored"}})
	c.Inc(1, "svc-a")

	g := p.NewGauge(GaugeOpts{CommonOpts{Name: "ignored"}})
	g.Set(5, "svc-a")
	g.Add(1, "svc-a")

	h := p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{Name: "ignored"}})
	h.Observe(0.5, "svc-a")

	timerFn := p.NewTimer(HistogramOpts{CommonOpts: CommonOpts{Name: "ignored"}})
	timerFn().ObserveDuration("svc-a")

	require.NoError(t, p.Health(context.Background()))
}
