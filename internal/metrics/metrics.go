// Package metrics exports workflow engine activity as Prometheus metrics.
//
// A Recorder subscribes to the engine's event hub and derives counters and
// histograms from the event stream; the active-run gauge reads the engine
// directly at scrape time.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// Namespace prefixes every metric name.
const Namespace = "sentinel"

// Recorder holds the engine metrics.
type Recorder struct {
	registry prometheus.Registerer
	logger   *log.Logger

	runsStarted   *prometheus.CounterVec
	runsFinished  *prometheus.CounterVec
	stepsFinished *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	events        prometheus.Counter

	mu     sync.Mutex
	starts map[string]time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger attaches a logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// New registers the engine metrics with reg. A nil reg uses the default
// Prometheus registerer.
func New(reg prometheus.Registerer, opts ...Option) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{registry: reg, starts: make(map[string]time.Time)}
	for _, opt := range opts {
		opt(r)
	}

	factory := promauto.With(reg)
	r.runsStarted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "workflow",
		Name:      "runs_started_total",
		Help:      "Workflow runs that began executing, by kind.",
	}, []string{"kind"})
	r.runsFinished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "workflow",
		Name:      "runs_finished_total",
		Help:      "Workflow runs that reached a terminal status, by kind and status.",
	}, []string{"kind", "status"})
	r.stepsFinished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "workflow",
		Name:      "steps_finished_total",
		Help:      "Steps that reached a terminal status, by kind and status.",
	}, []string{"kind", "status"})
	r.runDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "workflow",
		Name:      "run_duration_seconds",
		Help:      "Time from the first step transition to the terminal event.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind", "status"})
	r.events = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "hub",
		Name:      "events_total",
		Help:      "Events delivered to the metrics subscriber.",
	})
	return r
}

// Attach subscribes the recorder to the engine's hub and registers a gauge
// that reports the engine's active run count at scrape time.
func (r *Recorder) Attach(e *workflow.Engine) *workflow.Subscription {
	promauto.With(r.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "workflow",
		Name:      "active_runs",
		Help:      "Runs currently pending or running.",
	}, func() float64 { return float64(e.ActiveRuns()) })
	return e.Hub().Subscribe(r.Observe)
}

// Observe updates the metrics for one event. It satisfies workflow.Subscriber.
func (r *Recorder) Observe(ev workflow.Event) error {
	r.events.Inc()
	kind := string(ev.Kind)

	r.mu.Lock()
	started, seen := r.starts[ev.RunID]
	if !seen {
		started = ev.Timestamp
		r.starts[ev.RunID] = started
	}
	if ev.Terminal {
		delete(r.starts, ev.RunID)
	}
	r.mu.Unlock()

	if !seen {
		r.runsStarted.WithLabelValues(kind).Inc()
	}

	if ev.Terminal {
		status := string(ev.Status)
		r.runsFinished.WithLabelValues(kind, status).Inc()
		r.runDuration.WithLabelValues(kind, status).Observe(ev.Timestamp.Sub(started).Seconds())
		if r.logger != nil {
			r.logger.Debug("run observed", "run", ev.RunID, "kind", kind, "status", status)
		}
		return nil
	}
	if ev.StepStatus.Terminal() {
		r.stepsFinished.WithLabelValues(kind, string(ev.StepStatus)).Inc()
	}
	return nil
}

// Pending reports how many runs have been seen without a terminal event.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts)
}

// Handler returns an HTTP handler serving the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
