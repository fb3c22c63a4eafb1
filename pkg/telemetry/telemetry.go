package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"reportchain/pkg/logger"
)

type Step struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration_ms"`
}

// Trace times one operation and its named steps.
type Trace struct {
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	Steps    []Step    `json:"steps"`
	TotalMS  float64   `json:"total_ms"`
	lastMark time.Time
	tel      *Telemetry
}

// Telemetry records finished traces into Prometheus histograms and logs the
// slow ones.
type Telemetry struct {
	slowThreshold time.Duration
	operations    *prometheus.HistogramVec
	steps         *prometheus.HistogramVec
}

var (
	mu  sync.RWMutex
	tel *Telemetry
)

// New builds a telemetry instance and registers its collectors with reg.
// A nil reg skips registration, which tests rely on.
func New(reg prometheus.Registerer, slowThreshold time.Duration) (*Telemetry, error) {
	t := &Telemetry{
		slowThreshold: slowThreshold,
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reportchain",
			Name:      "operation_duration_seconds",
			Help:      "Duration of tracked operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"operation"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reportchain",
			Name:      "operation_step_duration_seconds",
			Help:      "Duration of marked steps inside tracked operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"operation", "step"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{t.operations, t.steps} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// Init installs the global instance used by Track.
func Init(reg prometheus.Registerer, slowThreshold time.Duration) error {
	t, err := New(reg, slowThreshold)
	if err != nil {
		return err
	}
	mu.Lock()
	tel = t
	mu.Unlock()
	return nil
}

// Track starts a trace on the global instance. Before Init the trace is
// timed but not recorded.
func Track(name string) *Trace {
	mu.RLock()
	t := tel
	mu.RUnlock()
	if t == nil {
		now := time.Now()
		return &Trace{Name: name, Start: now, lastMark: now}
	}
	return t.Track(name)
}

// Close drops the global instance.
func Close() {
	mu.Lock()
	tel = nil
	mu.Unlock()
}

// Track starts a new trace that is automatically linked to this telemetry.
func (t *Telemetry) Track(name string) *Trace {
	now := time.Now()
	return &Trace{
		Name:     name,
		Start:    now,
		lastMark: now,
		tel:      t,
	}
}

// Mark records the elapsed duration since last mark.
func (tr *Trace) Mark(label string) {
	now := time.Now()
	delta := now.Sub(tr.lastMark).Seconds() * 1000
	tr.Steps = append(tr.Steps, Step{Name: label, Duration: delta})
	tr.lastMark = now
}

// Finish records the trace. Safe to call multiple times or via defer.
func (tr *Trace) Finish() {
	elapsed := time.Since(tr.Start)
	tr.TotalMS = elapsed.Seconds() * 1000
	if tr.tel == nil {
		return
	}
	t := tr.tel
	tr.tel = nil

	t.operations.WithLabelValues(tr.Name).Observe(elapsed.Seconds())
	for _, s := range tr.Steps {
		t.steps.WithLabelValues(tr.Name, s.Name).Observe(s.Duration / 1000)
	}
	if t.slowThreshold > 0 && elapsed > t.slowThreshold {
		logger.Warn("slow_operation", "operation", tr.Name, "total_ms", tr.TotalMS, "steps", tr.Steps)
	}
}
