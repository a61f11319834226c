package metrics

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"mercator-hq/correlator/pkg/telemetry/guard"

	"github.com/prometheus/client_golang/prometheus"
)

// Labels maps label keys to values for one observation.
type Labels map[string]string

// DefaultBuckets are used by Histogram when the recorder has no buckets of
// its own. They fit millisecond latencies.
var DefaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Buckets is the default histogram layout. Nil means DefaultBuckets.
	Buckets []float64

	// Reporter receives registration and observation failures.
	Reporter guard.Reporter
}

// Recorder creates instruments on first use and caches them by normalized
// name, so every caller asking for "http.requests total" and
// "HTTP_Requests_Total" shares one instrument. It is safe for concurrent use.
//
// The label keys of an instrument are fixed by the first call that creates
// it. Later calls with the same name return the cached instrument as is.
type Recorder struct {
	registry *prometheus.Registry
	reporter guard.Reporter
	buckets  []float64

	mu         sync.RWMutex
	counters   map[string]*Counter
	histograms map[string]*Histogram
	gauges     map[string]*Gauge
}

// NewRecorder creates a recorder that registers its instruments with
// registry. A nil registry gets a fresh one.
func NewRecorder(registry *prometheus.Registry, opts RecorderOptions) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	return &Recorder{
		registry:   registry,
		reporter:   opts.Reporter,
		buckets:    append([]float64(nil), buckets...),
		counters:   make(map[string]*Counter),
		histograms: make(map[string]*Histogram),
		gauges:     make(map[string]*Gauge),
	}
}

// Registry returns the Prometheus registry instruments are registered with.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Counter returns the counter called name, creating it if needed.
func (r *Recorder) Counter(name, help string, labelKeys ...string) *Counter {
	key := NormalizeName(name)
	return lookup(r, r.counters, key, func() *Counter {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: key, Help: helpText(help, key)}, labelKeys)
		vec = register(r, key, vec)
		return &Counter{instrument: newInstrument(r, key, labelKeys), vec: vec}
	})
}

// Histogram returns the histogram called name with the recorder's default
// buckets, creating it if needed.
func (r *Recorder) Histogram(name, help string, labelKeys ...string) *Histogram {
	return r.HistogramWithBuckets(name, help, r.buckets, labelKeys...)
}

// HistogramWithBuckets is Histogram with an explicit bucket layout. The
// buckets only apply when the call creates the histogram.
func (r *Recorder) HistogramWithBuckets(name, help string, buckets []float64, labelKeys ...string) *Histogram {
	key := NormalizeName(name)
	return lookup(r, r.histograms, key, func() *Histogram {
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    key,
			Help:    helpText(help, key),
			Buckets: buckets,
		}, labelKeys)
		vec = register(r, key, vec)
		return &Histogram{instrument: newInstrument(r, key, labelKeys), vec: vec}
	})
}

// Gauge returns the gauge called name, creating it if needed.
func (r *Recorder) Gauge(name, help string, labelKeys ...string) *Gauge {
	key := NormalizeName(name)
	return lookup(r, r.gauges, key, func() *Gauge {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: key, Help: helpText(help, key)}, labelKeys)
		vec = register(r, key, vec)
		return &Gauge{instrument: newInstrument(r, key, labelKeys), vec: vec}
	})
}

func lookup[T any](r *Recorder, cache map[string]*T, key string, create func() *T) *T {
	r.mu.RLock()
	if inst, ok := cache[key]; ok {
		r.mu.RUnlock()
		return inst
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if inst, ok := cache[key]; ok {
		return inst
	}
	inst := create()
	cache[key] = inst
	return inst
}

// register adds c to the registry. If an identical collector is already
// registered (another Recorder on the same registry) that one is returned.
// Any other failure is reported and c stays unregistered: it still accepts
// observations but is never exported.
func register[C prometheus.Collector](r *Recorder, name string, c C) C {
	var result C = c
	guard.Run(r.reporter, "metrics", "register "+name, func() {
		err := r.registry.Register(c)
		if err == nil {
			return
		}
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				result = existing
				return
			}
		}
		guard.Check(r.reporter, "metrics", "register "+name, err)
	})
	return result
}

func helpText(help, name string) string {
	if help != "" {
		return help
	}
	return name
}

// NormalizeName lowercases name, replaces every run of characters outside
// [a-z0-9] with a single underscore and trims underscores at both ends.
func NormalizeName(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))

	pendingSep := false
	for _, c := range strings.ToLower(name) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(c)
			continue
		}
		pendingSep = true
	}
	return sb.String()
}

// instrument holds what every instrument kind shares.
type instrument struct {
	name     string
	keys     []string
	reporter guard.Reporter
}

func newInstrument(r *Recorder, name string, keys []string) instrument {
	return instrument{name: name, keys: append([]string(nil), keys...), reporter: r.reporter}
}

// Name returns the normalized instrument name.
func (i instrument) Name() string { return i.name }

// LabelKeys returns the instrument's label keys in order.
func (i instrument) LabelKeys() []string { return append([]string(nil), i.keys...) }

// values orders labels by the instrument's keys. Missing keys become ""
// and keys the instrument does not know are dropped.
func (i instrument) values(labels Labels) []string {
	vals := make([]string, len(i.keys))
	for n, k := range i.keys {
		vals[n] = labels[k]
	}
	return vals
}

// Counter is a monotonically increasing instrument.
type Counter struct {
	instrument
	vec *prometheus.CounterVec
}

// Add increases the counter. Negative values are reported and ignored.
func (c *Counter) Add(value float64, labels Labels) {
	if value < 0 {
		guard.Check(c.reporter, "metrics", "counter.add "+c.name, fmt.Errorf("negative increment %v", value))
		return
	}
	guard.Run(c.reporter, "metrics", "counter.add "+c.name, func() {
		c.vec.WithLabelValues(c.values(labels)...).Add(value)
	})
}

// Inc adds one.
func (c *Counter) Inc(labels Labels) {
	c.Add(1, labels)
}

// Histogram records a distribution of observed values.
type Histogram struct {
	instrument
	vec *prometheus.HistogramVec
}

// Record observes value.
func (h *Histogram) Record(value float64, labels Labels) {
	guard.Run(h.reporter, "metrics", "histogram.record "+h.name, func() {
		h.vec.WithLabelValues(h.values(labels)...).Observe(value)
	})
}

// Gauge is an instrument that can go up and down.
type Gauge struct {
	instrument
	vec *prometheus.GaugeVec
}

// Set sets the gauge to value.
func (g *Gauge) Set(value float64, labels Labels) {
	guard.Run(g.reporter, "metrics", "gauge.set "+g.name, func() {
		g.vec.WithLabelValues(g.values(labels)...).Set(value)
	})
}

// Add adds delta, which may be negative.
func (g *Gauge) Add(delta float64, labels Labels) {
	guard.Run(g.reporter, "metrics", "gauge.add "+g.name, func() {
		g.vec.WithLabelValues(g.values(labels)...).Add(delta)
	})
}
