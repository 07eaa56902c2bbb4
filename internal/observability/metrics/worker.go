package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the extraction worker: job throughput plus
// per-phase model call accounting.
type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobsInFlight prometheus.Gauge
	queueLag     *prometheus.HistogramVec

	phaseDuration *prometheus.HistogramVec
	modelCalls    *prometheus.CounterVec
	modelTokens   *prometheus.CounterVec
	modelCostUSD  *prometheus.CounterVec
	phaseFailures *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mex",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total processed extraction jobs by status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mex",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Extraction job duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mex",
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Number of extraction jobs currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mex",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job creation and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	phaseDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mex",
			Subsystem: "pipeline",
			Name:      "phase_duration_seconds",
			Help:      "Pipeline phase duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "phase"},
	)
	modelCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mex",
			Subsystem: "pipeline",
			Name:      "model_calls_total",
			Help:      "Total model calls by phase and model.",
		},
		[]string{"service", "phase", "model"},
	)
	modelTokens := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mex",
			Subsystem: "pipeline",
			Name:      "model_tokens_total",
			Help:      "Total model tokens by phase and direction.",
		},
		[]string{"service", "phase", "direction"},
	)
	modelCostUSD := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mex",
			Subsystem: "pipeline",
			Name:      "model_cost_usd_total",
			Help:      "Accumulated model spend in USD by phase.",
		},
		[]string{"service", "phase"},
	)
	phaseFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mex",
			Subsystem: "pipeline",
			Name:      "phase_failures_total",
			Help:      "Pipeline failures by the phase they occurred in.",
		},
		[]string{"service", "phase"},
	)

	registry.MustRegister(
		jobsTotal, jobDuration, jobsInFlight, queueLag,
		phaseDuration, modelCalls, modelTokens, modelCostUSD, phaseFailures,
	)

	return &WorkerMetrics{
		registry:      registry,
		jobsTotal:     jobsTotal,
		jobDuration:   jobDuration,
		jobsInFlight:  jobsInFlight,
		queueLag:      queueLag,
		phaseDuration: phaseDuration,
		modelCalls:    modelCalls,
		modelTokens:   modelTokens,
		modelCostUSD:  modelCostUSD,
		phaseFailures: phaseFailures,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, err error) {
	m.jobsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.jobsTotal.WithLabelValues(service, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObservePhase(service, phase string, duration time.Duration) {
	m.phaseDuration.WithLabelValues(service, phase).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveModelCall(service, phase, model string, inputTokens, outputTokens int, costUSD float64) {
	m.modelCalls.WithLabelValues(service, phase, model).Inc()
	m.modelTokens.WithLabelValues(service, phase, "input").Add(float64(inputTokens))
	m.modelTokens.WithLabelValues(service, phase, "output").Add(float64(outputTokens))
	m.modelCostUSD.WithLabelValues(service, phase).Add(costUSD)
}

func (m *WorkerMetrics) ObservePhaseFailure(service, phase string) {
	m.phaseFailures.WithLabelValues(service, phase).Inc()
}
