package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

var (
	PipelineEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_total",
			Help: "Total number of events processed by the notification pipeline (count)",
		},
		[]string{"outcome"},
	)

	PipelineStageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_errors_total",
			Help: "Total number of evaluation errors per pipeline stage (count)",
		},
		[]string{"stage"},
	)

	PipelineProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_processing_duration_ms",
			Help:    "Processing duration for one pipeline run in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"outcome"},
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_total",
			Help: "Total number of notification dispatch attempts (count)",
		},
		[]string{"channel", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_duration_ms",
			Help:    "Duration of notification searches in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"status"},
	)

	RuleOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_operations_total",
			Help: "Total number of rule store operations (count)",
		},
		[]string{"operation"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of message processing retries (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages published to the dead-letter topic (count)",
		},
		[]string{"service", "source_topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(
		PipelineEventsTotal,
		PipelineStageErrorsTotal,
		PipelineProcessingDuration,
		DispatchTotal,
	)
}

func RegisterSearchMetrics() {
	prometheus.MustRegister(SearchDuration)
}

func RegisterRuleMetrics() {
	prometheus.MustRegister(RuleOperationsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(
		RetryAttemptsTotal,
		DLQMessagesTotal,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
}

func ObservePipelineDuration(d time.Duration, outcome string) {
	PipelineProcessingDuration.WithLabelValues(outcome).Observe(float64(d.Milliseconds()))
}

func ObserveSearchDuration(d time.Duration, status string) {
	SearchDuration.WithLabelValues(status).Observe(float64(d.Milliseconds()))
}

func SetCircuitBreakerState(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}
