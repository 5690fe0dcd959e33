package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/monctl/monctl/pkg/engine"
)

// Metrics provides Prometheus metrics for monctl.
// It implements engine.Observer so it can be attached to a Syncer directly.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram

	// Job metrics
	jobsStarted  prometheus.Counter
	jobsFinished *prometheus.CounterVec
	jobDuration  prometheus.Histogram
	jobsInFlight prometheus.Gauge

	// Retry metrics
	retries *prometheus.CounterVec

	// Resource metrics
	resourcesSynced *prometheus.CounterVec

	registry *prometheus.Registry
}

var _ engine.Observer = (*Metrics)(nil)

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of sync runs by final status",
			},
			[]string{"status", "dry_run"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of sync runs",
				Buckets:   buckets,
			},
		),
		jobsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_started_total",
				Help:      "Total number of jobs claimed by parallel workers",
			},
		),
		jobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_finished_total",
				Help:      "Total number of finished jobs by result",
			},
			[]string{"result"},
		),
		jobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of individual jobs",
				Buckets:   buckets,
			},
		),
		jobsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_in_flight",
				Help:      "Number of jobs currently executing",
			},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retried attempts by error kind",
			},
			[]string{"kind"},
		),
		resourcesSynced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_synced_total",
				Help:      "Total number of synced resources by kind, action and status",
			},
			[]string{"kind", "action", "status"},
		),
	}

	registry.MustRegister(
		m.runsCompleted,
		m.runDuration,
		m.jobsStarted,
		m.jobsFinished,
		m.jobDuration,
		m.jobsInFlight,
		m.retries,
		m.resourcesSynced,
	)

	return m
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// JobStarted records a claimed job.
func (m *Metrics) JobStarted() {
	if !m.enabled() {
		return
	}
	m.jobsStarted.Inc()
	m.jobsInFlight.Inc()
}

// JobFinished records a finished job and its duration.
func (m *Metrics) JobFinished(d time.Duration, err error) {
	if !m.enabled() {
		return
	}
	m.jobsInFlight.Dec()
	m.jobDuration.Observe(d.Seconds())

	result := "success"
	if err != nil {
		result = string(engine.KindOf(err))
	}
	m.jobsFinished.WithLabelValues(result).Inc()
}

// Retried records a retry of the given error kind.
func (m *Metrics) Retried(kind engine.ErrorKind) {
	if !m.enabled() {
		return
	}
	m.retries.WithLabelValues(string(kind)).Inc()
}

// RecordRun records the outcome of a completed run and its items.
func (m *Metrics) RecordRun(run *engine.Run) {
	if !m.enabled() || run == nil {
		return
	}
	m.runsCompleted.WithLabelValues(string(run.Status), fmt.Sprintf("%t", run.DryRun)).Inc()
	m.runDuration.Observe(run.Duration.Seconds())

	for _, item := range run.Items {
		action := string(item.Action)
		if action == "" {
			action = "none"
		}
		m.resourcesSynced.WithLabelValues(string(item.Kind), action, string(item.Status)).Inc()
	}
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves metrics on ListenAddress until ctx is done.
func (m *Metrics) StartMetricsServer(ctx context.Context) error {
	if !m.enabled() || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			FromContext(ctx).WithError(err).Error("metrics server stopped")
		}
	}()

	return nil
}
