// Package metrics is a small Prometheus-compatible registry: counters,
// gauges, and histograms with optional labels, rendered in the text
// exposition format. Callers mount Handler on their own mux.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are the default histogram buckets, in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter is a monotonically increasing counter.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge can go up and down.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram tracks the distribution of observed values in fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *Histogram {
	b := make([]float64, len(buckets))
	copy(b, buckets)
	sort.Float64s(b)
	return &Histogram{buckets: b, counts: make([]uint64, len(b))}
}

// Observe records a value into its bucket; Render accumulates cumulatively.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
			break
		}
	}
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

func (h *Histogram) snapshot() (buckets []float64, counts []uint64, sum float64, count uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts = make([]uint64, len(h.counts))
	copy(counts, h.counts)
	return h.buckets, counts, h.sum, h.count
}

type kind int

const (
	kindCounter kind = iota
	kindGauge
	kindHistogram
)

func (k kind) String() string {
	switch k {
	case kindCounter:
		return "counter"
	case kindGauge:
		return "gauge"
	default:
		return "histogram"
	}
}

// family groups every labeled series of one metric name.
type family struct {
	kind kind
	help string
}

// Registry holds named metrics. Label pairs are baked into the series name
// as name{k="v"}, so each label combination is a distinct series.
type Registry struct {
	mu         sync.RWMutex
	families   map[string]family
	order      []string
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		families:   make(map[string]family),
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

func (r *Registry) register(series string, k kind, help string) {
	base := baseName(series)
	if _, ok := r.families[base]; !ok {
		r.order = append(r.order, base)
	}
	r.families[base] = family{kind: k, help: help}
}

// Counter returns (or creates) a counter series.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.register(name, kindCounter, help)
	return c
}

// Gauge returns (or creates) a gauge series.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.register(name, kindGauge, help)
	return g
}

// Histogram returns (or creates) a histogram series. nil buckets selects
// DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := newHistogram(buckets)
	r.histograms[name] = h
	r.register(name, kindHistogram, help)
	return h
}

// WithLabels builds a labeled series name: WithLabels("foo", "k", "v")
// yields `foo{k="v"}`. Odd trailing pairs are ignored.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) < 2 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i+1 < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

func baseName(series string) string {
	if i := strings.IndexByte(series, '{'); i != -1 {
		return series[:i]
	}
	return series
}

// innerLabels returns the label body of a series name, without braces.
func innerLabels(series string) string {
	i := strings.IndexByte(series, '{')
	if i == -1 {
		return ""
	}
	return series[i+1 : len(series)-1]
}

// Render emits the Prometheus text exposition format, families in
// registration order, series sorted within each family.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, base := range r.order {
		fam := r.families[base]
		if fam.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, fam.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, fam.kind)

		switch fam.kind {
		case kindCounter:
			for _, series := range seriesNames(r.counters, base) {
				fmt.Fprintf(&b, "%s %d\n", series, r.counters[series].Value())
			}
		case kindGauge:
			for _, series := range seriesNames(r.gauges, base) {
				fmt.Fprintf(&b, "%s %d\n", series, r.gauges[series].Value())
			}
		case kindHistogram:
			for _, series := range seriesNames(r.histograms, base) {
				r.renderHistogram(&b, base, series)
			}
		}
	}
	return b.String()
}

func seriesNames[M any](m map[string]M, base string) []string {
	var out []string
	for name := range m {
		if baseName(name) == base {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) renderHistogram(b *strings.Builder, base, series string) {
	h := r.histograms[series]
	buckets, counts, sum, count := h.snapshot()
	labels := innerLabels(series)

	sep := ""
	if labels != "" {
		sep = ","
	}
	cumulative := uint64(0)
	for i, bk := range buckets {
		cumulative += counts[i]
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"%s%s} %d\n", base, bk, sep, labels, cumulative)
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"%s%s} %d\n", base, sep, labels, count)

	wrapped := ""
	if labels != "" {
		wrapped = "{" + labels + "}"
	}
	fmt.Fprintf(b, "%s_sum%s %g\n", base, wrapped, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, wrapped, count)
}

// Handler serves the rendered registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}
