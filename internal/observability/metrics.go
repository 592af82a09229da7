package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "narrator_active_runs",
		Help: "Number of pipeline runs in progress",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrator_runs_total",
		Help: "Total number of pipeline runs by outcome",
	}, []string{"outcome"}) // outcome: done or an error kind

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narrator_run_duration_seconds",
		Help:    "Wall-clock duration of pipeline runs",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// Synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrator_synthesis_requests_total",
		Help: "Total number of speech backend calls",
	}, []string{"status"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narrator_synthesis_latency_seconds",
		Help:    "Speech synthesis and decode latency per unit",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Encoder metrics
	encodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narrator_encode_latency_seconds",
		Help:    "Latency of encoding the combined audio",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	})

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrator_audio_bytes_total",
		Help: "Encoded audio bytes handled",
	}, []string{"direction"}) // direction: "in" from the speech backend, "out" to callers

	audioSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narrator_audio_seconds_total",
		Help: "Seconds of combined audio produced",
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "narrator_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrator_circuit_breaker_failures_total",
		Help: "Total calls rejected by an open circuit breaker",
	}, []string{"service"})
)

// RunMetrics tracks metrics for a single pipeline run.
// A run is single-threaded so no locking is needed.
type RunMetrics struct {
	startTime          time.Time
	synthesisStartTime time.Time
	encodeStartTime    time.Time
}

// NewRunMetrics creates a new metrics tracker for a run
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{}
}

// RecordRunStart records the start of a run
func (m *RunMetrics) RecordRunStart() {
	m.startTime = time.Now()
	activeRuns.Inc()
}

// RecordRunEnd records the terminal outcome of a run
func (m *RunMetrics) RecordRunEnd(outcome string) {
	activeRuns.Dec()
	runsTotal.WithLabelValues(outcome).Inc()
	if !m.startTime.IsZero() {
		runDuration.Observe(time.Since(m.startTime).Seconds())
	}
}

// RecordSynthesisStart records the start of one unit's synthesis
func (m *RunMetrics) RecordSynthesisStart() {
	m.synthesisStartTime = time.Now()
}

// RecordSynthesisEnd records the end of one unit's synthesis
func (m *RunMetrics) RecordSynthesisEnd(success bool, encodedBytes int) {
	if !m.synthesisStartTime.IsZero() {
		synthesisLatency.Observe(time.Since(m.synthesisStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	synthesisRequests.WithLabelValues(status).Inc()
	if encodedBytes > 0 {
		audioBytes.WithLabelValues("in").Add(float64(encodedBytes))
	}
}

// RecordEncodeStart records the start of final encoding
func (m *RunMetrics) RecordEncodeStart() {
	m.encodeStartTime = time.Now()
}

// RecordEncodeEnd records the end of final encoding
func (m *RunMetrics) RecordEncodeEnd(encodedBytes int, audioDuration time.Duration) {
	if !m.encodeStartTime.IsZero() {
		encodeLatency.Observe(time.Since(m.encodeStartTime).Seconds())
	}
	if encodedBytes > 0 {
		audioBytes.WithLabelValues("out").Add(float64(encodedBytes))
		audioSeconds.Add(audioDuration.Seconds())
	}
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker rejection counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
