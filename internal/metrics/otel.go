package metrics

// OTel-backed Provider, carried over from the teacher's
// packages/engine/telemetry/metrics/otel_provider.go: counters and
// histograms map directly onto OTel instruments, gauges are synthesized
// from a Float64UpDownCounter plus a locally tracked last-value (OTel has
// no native Set semantics).

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelProviderOptions configures NewOTelProvider.
type OTelProviderOptions struct {
	ServiceName string
}

// NewOTelProvider returns a Provider backed by an OTel MeterProvider.
func NewOTelProvider(opts OTelProviderOptions) Provider {
	mp := sdkmetric.NewMeterProvider()
	name := opts.ServiceName
	if name == "" {
		name = "driftwatch"
	}
	return &otelProvider{mp: mp, meter: mp.Meter(name)}
}

type otelProvider struct {
	mp    *sdkmetric.MeterProvider
	meter metric.Meter
}

func (p *otelProvider) NewCounter(opts CounterOpts) Counter {
	inst, err := p.meter.Float64Counter(buildOTelName(opts.CommonOpts), metric.WithDescription(opts.Help))
	if err != nil {
		return noopCounter{}
	}
	return &otelCounter{c: inst, keys: opts.Labels}
}

func (p *otelProvider) NewGauge(opts GaugeOpts) Gauge {
	inst, err := p.meter.Float64UpDownCounter(buildOTelName(opts.CommonOpts), metric.WithDescription(opts.Help))
	if err != nil {
		return noopGauge{}
	}
	return &otelGauge{g: inst, keys: opts.Labels, last: make(map[string]float64)}
}

func (p *otelProvider) NewHistogram(opts HistogramOpts) Histogram {
	inst, err := p.meter.Float64Histogram(buildOTelName(opts.CommonOpts), metric.WithDescription(opts.Help))
	if err != nil {
		return noopHistogram{}
	}
	return &otelHistogram{h: inst, keys: opts.Labels}
}

func (p *otelProvider) NewTimer(h HistogramOpts) func() Timer {
	hist := p.NewHistogram(h)
	return func() Timer { return &otelTimer{h: hist, start: time.Now()} }
}

func (p *otelProvider) Health(context.Context) error { return nil }

// buildOTelName composes namespace/subsystem/name using OTel's dotted
// naming convention.
func buildOTelName(c CommonOpts) string {
	name := c.Name
	if c.Subsystem != "" {
		name = c.Subsystem + "." + name
	}
	if c.Namespace != "" {
		name = c.Namespace + "." + name
	}
	return name
}

func attrs(keys, values []string) []attribute.KeyValue {
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	out := make([]attribute.KeyValue, n)
	for i := 0; i < n; i++ {
		out[i] = attribute.String(keys[i], values[i])
	}
	return out
}

type otelCounter struct {
	c    metric.Float64Counter
	keys []string
}

func (c *otelCounter) Inc(delta float64, labels ...string) {
	if delta <= 0 {
		return
	}
	c.c.Add(context.Background(), delta, metric.WithAttributes(attrs(c.keys, labels)...))
}

type otelGauge struct {
	g    metric.Float64UpDownCounter
	keys []string
	mu   sync.Mutex
	last map[string]float64
}

func labelKey(values []string) string {
	key := ""
	for _, v := range values {
		key += "\x00" + v
	}
	return key
}

func (g *otelGauge) Set(v float64, labels ...string) {
	key := labelKey(labels)
	g.mu.Lock()
	diff := v - g.last[key]
	g.last[key] = v
	g.mu.Unlock()
	if diff != 0 {
		g.g.Add(context.Background(), diff, metric.WithAttributes(attrs(g.keys, labels)...))
	}
}

func (g *otelGauge) Add(delta float64, labels ...string) {
	if delta == 0 {
		return
	}
	key := labelKey(labels)
	g.mu.Lock()
	g.last[key] += delta
	g.mu.Unlock()
	g.g.Add(context.Background(), delta, metric.WithAttributes(attrs(g.keys, labels)...))
}

type otelHistogram struct {
	h    metric.Float64Histogram
	keys []string
}

func (h *otelHistogram) Observe(value float64, labels ...string) {
	h.h.Record(context.Background(), value, metric.WithAttributes(attrs(h.keys, labels)...))
}

type otelTimer struct {
	h     Histogram
	start time.Time
}

func (t *otelTimer) ObserveDuration(labels ...string) {
	t.h.Observe(time.Since(t.start).Seconds(), labels...)
}
