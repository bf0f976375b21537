package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus instrumentation for the executor, all
// namespaced "agentflow_":
//
//   - agents_completed_total (counter, labels: workflow_id, node_id)
//   - agents_failed_total (counter, labels: workflow_id, node_id)
//   - agents_skipped_total (counter, labels: workflow_id, node_id, reason)
//   - agent_retries_total (counter, labels: workflow_id, node_id)
//   - agent_latency_ms (histogram, labels: node_id, status)
//   - execution_cost_usd (histogram, labels: workflow_id)
//   - inflight_agents (gauge)
//
// Methods on a nil *Metrics are safe no-ops, so an Executor built
// without WithMetrics never needs to branch on whether metrics are
// configured.
type Metrics struct {
	agentsCompleted *prometheus.CounterVec
	agentsFailed    *prometheus.CounterVec
	agentsSkipped   *prometheus.CounterVec
	agentRetries    *prometheus.CounterVec
	agentLatency    *prometheus.HistogramVec
	executionCost   *prometheus.HistogramVec
	inflightAgents  prometheus.Gauge
}

// NewMetrics registers agentflow's executor metrics against registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		agentsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentflow",
			Name:      "agents_completed_total",
		}, []string{"workflow_id", "node_id"}),
		agentsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentflow",
			Name:      "agents_failed_total",
		}, []string{"workflow_id", "node_id"}),
		agentsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentflow",
			Name:      "agents_skipped_total",
		}, []string{"workflow_id", "node_id", "reason"}),
		agentRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentflow",
			Name:      "agent_retries_total",
		}, []string{"workflow_id", "node_id"}),
		agentLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentflow",
			Name:      "agent_latency_ms",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"node_id", "status"}),
		executionCost: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentflow",
			Name:      "execution_cost_usd",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 50},
		}, []string{"workflow_id"}),
		inflightAgents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentflow",
			Name:      "inflight_agents",
		}),
	}
}

func (m *Metrics) agentStarted() {
	if m == nil {
		return
	}
	m.inflightAgents.Inc()
}

func (m *Metrics) agentFinished() {
	if m == nil {
		return
	}
	m.inflightAgents.Dec()
}

func (m *Metrics) agentCompleted(workflowID, nodeID string, latencyMs int64) {
	if m == nil {
		return
	}
	m.agentsCompleted.WithLabelValues(workflowID, nodeID).Inc()
	m.agentLatency.WithLabelValues(nodeID, "success").Observe(float64(latencyMs))
}

func (m *Metrics) agentFailed(workflowID, nodeID string, latencyMs int64) {
	if m == nil {
		return
	}
	m.agentsFailed.WithLabelValues(workflowID, nodeID).Inc()
	m.agentLatency.WithLabelValues(nodeID, "error").Observe(float64(latencyMs))
}

func (m *Metrics) agentSkipped(workflowID, nodeID, reason string) {
	if m == nil {
		return
	}
	m.agentsSkipped.WithLabelValues(workflowID, nodeID, reason).Inc()
}

func (m *Metrics) agentRetried(workflowID, nodeID string) {
	if m == nil {
		return
	}
	m.agentRetries.WithLabelValues(workflowID, nodeID).Inc()
}

func (m *Metrics) executionFinished(workflowID string, totalCost float64) {
	if m == nil {
		return
	}
	m.executionCost.WithLabelValues(workflowID).Observe(totalCost)
}
