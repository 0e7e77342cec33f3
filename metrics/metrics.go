// Package metrics defines the fabric's instrumentation hook and a Prometheus
// implementation. The engine records through the small Recorder interface so
// deployments without a metrics pipeline pay nothing (NoOp default) and
// alternative backends stay pluggable.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives request-level measurements from the engine.
type Recorder interface {
	// ObserveRequest records a finished request with its coarse outcome
	// ("ok", "fallback", "strategy_failure", "all_agents_failed") and wall
	// duration.
	ObserveRequest(outcome string, d time.Duration)

	// ObserveActivation records how many agents the gatekeeper activated.
	ObserveActivation(count int)

	// ObserveRetrieval records how many claims one agent's context slice held.
	ObserveRetrieval(claims int)

	// IncAgentFailure counts an isolated per-agent execution failure.
	IncAgentFailure(agentID string)
}

// NoOp discards all measurements.
type NoOp struct{}

// ObserveRequest implements Recorder.
func (NoOp) ObserveRequest(string, time.Duration) {}

// ObserveActivation implements Recorder.
func (NoOp) ObserveActivation(int) {}

// ObserveRetrieval implements Recorder.
func (NoOp) ObserveRetrieval(int) {}

// IncAgentFailure implements Recorder.
func (NoOp) IncAgentFailure(string) {}

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	activatedAgents prometheus.Histogram
	retrievedClaims prometheus.Histogram
	agentFailures   *prometheus.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer for the process-global registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentfabric_requests_total",
				Help: "Requests handled by the fabric, partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentfabric_request_duration_seconds",
				Help:    "Wall time of a full request pipeline.",
				Buckets: prometheus.DefBuckets,
			},
		),
		activatedAgents: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentfabric_activated_agents",
				Help:    "Number of agents activated per request.",
				Buckets: prometheus.LinearBuckets(0, 1, 16),
			},
		),
		retrievedClaims: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentfabric_retrieved_claims",
				Help:    "Number of claims in one agent's context slice.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		agentFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentfabric_agent_failures_total",
				Help: "Isolated per-agent execution failures, by agent id.",
			},
			[]string{"agent_id"},
		),
	}

	collectors := []prometheus.Collector{
		r.requests, r.requestDuration, r.activatedAgents, r.retrievedClaims, r.agentFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveRequest implements Recorder.
func (r *PrometheusRecorder) ObserveRequest(outcome string, d time.Duration) {
	r.requests.WithLabelValues(outcome).Inc()
	r.requestDuration.Observe(d.Seconds())
}

// ObserveActivation implements Recorder.
func (r *PrometheusRecorder) ObserveActivation(count int) {
	r.activatedAgents.Observe(float64(count))
}

// ObserveRetrieval implements Recorder.
func (r *PrometheusRecorder) ObserveRetrieval(claims int) {
	r.retrievedClaims.Observe(float64(claims))
}

// IncAgentFailure implements Recorder.
func (r *PrometheusRecorder) IncAgentFailure(agentID string) {
	r.agentFailures.WithLabelValues(agentID).Inc()
}
