package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records stage outcomes and outbound call resilience. It
// satisfies ports.StageObserver and resilience.Observer.
type PipelineMetrics struct {
	service string

	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	retriesTotal  *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Pipeline stage runs by stage and status.",
		},
		[]string{"service", "stage", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "stage"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retried outbound calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "circuit_breaker_open",
			Help:      "1 while the operation's circuit breaker is open, 0.5 half-open, 0 closed.",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(stageTotal, stageDuration, retriesTotal, breakerState)

	return &PipelineMetrics{
		service:       service,
		stageTotal:    stageTotal,
		stageDuration: stageDuration,
		retriesTotal:  retriesTotal,
		breakerState:  breakerState,
	}
}

func (m *PipelineMetrics) ObserveStage(stage, status string, duration time.Duration) {
	m.stageTotal.WithLabelValues(m.service, stage, status).Inc()
	m.stageDuration.WithLabelValues(m.service, stage).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *PipelineMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	switch state {
	case "open":
		value = 1
	case "half-open":
		value = 0.5
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
