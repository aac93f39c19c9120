package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	tradesTotal    *prometheus.CounterVec
	resultR        *prometheus.CounterVec
	signalsTotal   *prometheus.CounterVec
	droppedSignals *prometheus.CounterVec
	workersActive  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigreplay_runs_total",
			Help: "Total number of replay runs",
		},
		[]string{"strategy", "status"},
	)
	r.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sigreplay_run_duration_seconds",
			Help:    "Replay run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigreplay_trades_total",
			Help: "Total number of simulated trades by outcome",
		},
		[]string{"strategy", "outcome"},
	)
	r.resultR = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigreplay_result_r_total",
			Help: "Sum of absolute trade results in R, by outcome",
		},
		[]string{"strategy", "outcome"},
	)
	r.signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigreplay_signals_total",
			Help: "Total number of BUY/SELL annotations",
		},
		[]string{"strategy"},
	)
	r.droppedSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigreplay_signals_dropped_total",
			Help: "Signals whose entry time had no exact fine bar",
		},
		[]string{"strategy"},
	)
	r.workersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sigreplay_workers_active",
			Help: "Number of sweep workers currently running a replay",
		},
	)

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.resultR)
	reg.MustRegister(r.signalsTotal)
	reg.MustRegister(r.droppedSignals)
	reg.MustRegister(r.workersActive)

	return r
}

// RunOutcome summarises one finished replay for recording.
type RunOutcome struct {
	Strategy   string
	Wins       int
	Losses     int
	Incomplete int
	WinR       float64 // sum of positive results
	LossR      float64 // sum of negative results, as a positive number
	Signals    int
	Dropped    int
}

// RecordRun records a replay completion.
func (r *Registry) RecordRun(o RunOutcome, duration time.Duration) {
	r.runsTotal.WithLabelValues(o.Strategy, StatusSuccess).Inc()
	r.runDuration.Observe(duration.Seconds())

	r.tradesTotal.WithLabelValues(o.Strategy, "win").Add(float64(o.Wins))
	r.tradesTotal.WithLabelValues(o.Strategy, "loss").Add(float64(o.Losses))
	r.tradesTotal.WithLabelValues(o.Strategy, "incomplete").Add(float64(o.Incomplete))
	r.resultR.WithLabelValues(o.Strategy, "win").Add(o.WinR)
	r.resultR.WithLabelValues(o.Strategy, "loss").Add(o.LossR)
	r.signalsTotal.WithLabelValues(o.Strategy).Add(float64(o.Signals))
	r.droppedSignals.WithLabelValues(o.Strategy).Add(float64(o.Dropped))
}

// RecordRunFailure records a replay that ended with an error.
func (r *Registry) RecordRunFailure(strategy string, duration time.Duration) {
	r.runsTotal.WithLabelValues(strategy, StatusFailed).Inc()
	r.runDuration.Observe(duration.Seconds())
}

// WorkerStarted increments the active worker gauge.
func (r *Registry) WorkerStarted() {
	r.workersActive.Inc()
}

// WorkerDone decrements the active worker gauge.
func (r *Registry) WorkerDone() {
	r.workersActive.Dec()
}

// WriteTextfile writes the current metrics in the text exposition format, for
// collection by the node exporter textfile collector. The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
