// Package metrics is a small Prometheus-compatible metrics registry.
//
// Metrics are grouped in families. A family has a name, help text, a type
// and a fixed list of label names; each distinct set of label values is a
// series. The registry renders every family in the Prometheus text
// exposition format.
package metrics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when label values don't match the family's label names.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrDuplicateMetric is returned when a name is registered twice.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// Type is the Prometheus metric type.
type Type string

const (
	TypeCounter   Type = "counter"
	TypeGauge     Type = "gauge"
	TypeHistogram Type = "histogram"
)

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// float stores a float64 in a uint64 for atomic access.
type float struct{ bits atomic.Uint64 }

func (f *float) load() float64 { return math.Float64frombits(f.bits.Load()) }

func (f *float) store(v float64) { f.bits.Store(math.Float64bits(v)) }

func (f *float) add(delta float64) {
	for {
		old := f.bits.Load()
		if f.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

// series is one label combination of a family.
type series struct {
	values []string
	value  float
	// histogram only
	counts []atomic.Uint64
	count  atomic.Uint64
}

type family struct {
	name    string
	help    string
	typ     Type
	labels  []string
	buckets []float64

	mu     sync.RWMutex
	series map[string]*series
}

func (f *family) get(values []string) (*series, error) {
	if len(values) != len(f.labels) {
		return nil, fmt.Errorf("%w: %s expects %d labels, got %d", ErrLabelCountMismatch, f.name, len(f.labels), len(values))
	}
	key := strings.Join(values, "\x00")
	f.mu.RLock()
	s, ok := f.series[key]
	f.mu.RUnlock()
	if ok {
		return s, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok = f.series[key]; ok {
		return s, nil
	}
	s = &series{values: append([]string(nil), values...)}
	if f.typ == TypeHistogram {
		s.counts = make([]atomic.Uint64, len(f.buckets))
	}
	f.series[key] = s
	return s, nil
}

// find returns the series for values without creating it.
func (f *family) find(values []string) *series {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.series[strings.Join(values, "\x00")]
}

// sorted returns the series ordered by label values.
func (f *family) sorted() []*series {
	f.mu.RLock()
	out := make([]*series, 0, len(f.series))
	for _, s := range f.series {
		out = append(out, s)
	}
	f.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return strings.Join(out[i].values, "\x00") < strings.Join(out[j].values, "\x00")
	})
	return out
}

// Counter is a monotonically increasing metric.
type Counter struct{ f *family }

// Add adds delta (which must not be negative) to the series for values.
func (c *Counter) Add(delta float64, values ...string) error {
	if delta < 0 {
		return fmt.Errorf("counter %s cannot decrease", c.f.name)
	}
	s, err := c.f.get(values)
	if err != nil {
		return err
	}
	s.value.add(delta)
	return nil
}

// Inc adds one to the series for values.
func (c *Counter) Inc(values ...string) error { return c.Add(1, values...) }

// Value returns the current value of the series for values.
func (c *Counter) Value(values ...string) float64 {
	if s := c.f.find(values); s != nil {
		return s.value.load()
	}
	return 0
}

// Gauge is a metric that can go up and down.
type Gauge struct{ f *family }

// Set sets the series for values.
func (g *Gauge) Set(v float64, values ...string) error {
	s, err := g.f.get(values)
	if err != nil {
		return err
	}
	s.value.store(v)
	return nil
}

// Value returns the current value of the series for values.
func (g *Gauge) Value(values ...string) float64 {
	if s := g.f.find(values); s != nil {
		return s.value.load()
	}
	return 0
}

// Histogram tracks a distribution in cumulative buckets.
type Histogram struct{ f *family }

// Observe records v in the series for values.
func (h *Histogram) Observe(v float64, values ...string) error {
	s, err := h.f.get(values)
	if err != nil {
		return err
	}
	for i, bound := range h.f.buckets {
		if v <= bound {
			s.counts[i].Add(1)
			break
		}
	}
	s.value.add(v)
	s.count.Add(1)
	return nil
}

// Count returns the number of observations in the series for values.
func (h *Histogram) Count(values ...string) uint64 {
	if s := h.f.find(values); s != nil {
		return s.count.Load()
	}
	return 0
}

// Registry holds metric families.
type Registry struct {
	mu       sync.RWMutex
	families []*family
	names    map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

func (r *Registry) register(name, help string, typ Type, buckets []float64, labels []string) *family {
	f := &family{
		name:    name,
		help:    help,
		typ:     typ,
		labels:  labels,
		buckets: buckets,
		series:  make(map[string]*series),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names[name] {
		panic(fmt.Sprintf("%s: %s", ErrDuplicateMetric, name))
	}
	r.names[name] = true
	r.families = append(r.families, f)
	return f
}

// NewCounter registers a counter. It panics on a duplicate name.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	return &Counter{f: r.register(name, help, TypeCounter, nil, labels)}
}

// NewGauge registers a gauge. It panics on a duplicate name.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	return &Gauge{f: r.register(name, help, TypeGauge, nil, labels)}
}

// NewHistogram registers a histogram. A +Inf bucket is appended when
// missing. It panics on a duplicate name.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	if len(b) == 0 || !math.IsInf(b[len(b)-1], 1) {
		b = append(b, math.Inf(1))
	}
	return &Histogram{f: r.register(name, help, TypeHistogram, b, labels)}
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_ = r.Write(w)
	})
}

// Write renders every non-empty family.
func (r *Registry) Write(w io.Writer) error {
	r.mu.RLock()
	families := append([]*family(nil), r.families...)
	r.mu.RUnlock()

	var b strings.Builder
	for _, f := range families {
		all := f.sorted()
		if len(all) == 0 {
			continue
		}
		fmt.Fprintf(&b, "# HELP %s %s\n", f.name, escape(f.help, false))
		fmt.Fprintf(&b, "# TYPE %s %s\n", f.name, f.typ)
		for _, s := range all {
			if f.typ != TypeHistogram {
				writeSample(&b, f.name, f.labels, s.values, "", s.value.load())
				continue
			}
			var cumulative uint64
			for i, bound := range f.buckets {
				cumulative += s.counts[i].Load()
				writeSample(&b, f.name+"_bucket", f.labels, s.values, formatFloat(bound), float64(cumulative))
			}
			writeSample(&b, f.name+"_sum", f.labels, s.values, "", s.value.load())
			writeSample(&b, f.name+"_count", f.labels, s.values, "", float64(s.count.Load()))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeSample(b *strings.Builder, name string, labels, values []string, le string, v float64) {
	b.WriteString(name)
	if len(labels) > 0 || le != "" {
		b.WriteByte('{')
		for i, l := range labels {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, `%s="%s"`, l, escape(values[i], true))
		}
		if le != "" {
			if len(labels) > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, `le="%s"`, le)
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(formatFloat(v))
	b.WriteByte('\n')
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escape(s string, quote bool) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	if quote {
		s = strings.ReplaceAll(s, `"`, `\"`)
	}
	return s
}
