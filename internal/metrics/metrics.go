// Package metrics provides Prometheus metrics for the handsign pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tick outcomes.
const (
	TickProcessed = "processed"
	TickSkipped   = "skipped"
	TickNotReady  = "not_ready"
	TickNoHand    = "no_hand"
	TickError     = "error"
)

// Manager owns the pipeline metrics and the registry they live on. A nil
// *Manager is valid and records nothing.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	ticks           *prometheus.CounterVec
	appended        prometheus.Counter
	datasetSize     prometheus.Gauge
	mode            *prometheus.GaugeVec
	detections      *prometheus.CounterVec
	estimateLatency prometheus.Histogram
	trainingRuns    *prometheus.CounterVec
	trainingTime    prometheus.Histogram
	trainingLoss    prometheus.Gauge
	persists        *prometheus.CounterVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the buckets of the training duration histogram.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers metrics on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates a Manager on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "handsign",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.ticks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "sampler",
		Name:      "ticks_total",
		Help:      "Sampling loop ticks by outcome",
	}, []string{"outcome"})

	m.appended = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "dataset",
		Name:      "examples_appended_total",
		Help:      "Examples appended while collecting",
	})

	m.datasetSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "dataset",
		Name:      "examples",
		Help:      "Examples currently held in memory",
	})

	m.mode = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "mode",
		Help:      "1 for the active operating mode, 0 otherwise",
	}, []string{"mode"})

	m.detections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "classifier",
		Name:      "detections_total",
		Help:      "Live decisions by detected class",
	}, []string{"class"})

	m.estimateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "classifier",
		Name:      "estimate_duration_seconds",
		Help:      "Time spent scoring one feature vector",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	m.trainingRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "classifier",
		Name:      "training_runs_total",
		Help:      "Training runs by result",
	}, []string{"result"})

	m.trainingTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "classifier",
		Name:      "training_duration_seconds",
		Help:      "Duration of training runs",
		Buckets:   m.histogramBuckets,
	})

	m.trainingLoss = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "classifier",
		Name:      "training_loss",
		Help:      "Final loss of the model being served",
	})

	m.persists = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "dataset",
		Name:      "persists_total",
		Help:      "Dataset persist attempts by result",
	}, []string{"result"})
}

// Registry returns the registry backing the manager.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) RecordTick(outcome string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
}

func (m *Manager) RecordAppend(size int) {
	if m == nil {
		return
	}
	m.appended.Inc()
	m.datasetSize.Set(float64(size))
}

func (m *Manager) SetDatasetSize(size int) {
	if m == nil {
		return
	}
	m.datasetSize.Set(float64(size))
}

// SetMode marks active as the only current mode out of all.
func (m *Manager) SetMode(active string, all []string) {
	if m == nil {
		return
	}
	for _, name := range all {
		v := 0.0
		if name == active {
			v = 1
		}
		m.mode.WithLabelValues(name).Set(v)
	}
}

func (m *Manager) RecordDetection(class string) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(class).Inc()
}

func (m *Manager) ObserveEstimate(d time.Duration) {
	if m == nil {
		return
	}
	m.estimateLatency.Observe(d.Seconds())
}

func (m *Manager) RecordTraining(d time.Duration, loss float64, err error) {
	if m == nil {
		return
	}
	m.trainingTime.Observe(d.Seconds())
	if err != nil {
		m.trainingRuns.WithLabelValues("error").Inc()
		return
	}
	m.trainingRuns.WithLabelValues("ok").Inc()
	m.trainingLoss.Set(loss)
}

func (m *Manager) RecordPersist(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.persists.WithLabelValues("error").Inc()
		return
	}
	m.persists.WithLabelValues("ok").Inc()
}
