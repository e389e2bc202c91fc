package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects relay metrics: request counts, failures, and forwarded
// stream events, broken down by agent selector.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64
	streamEvents  atomic.Int64

	agentMetrics map[string]*AgentMetrics
}

// AgentMetrics represents metrics for a specific agent selector.
type AgentMetrics struct {
	requestCount  atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		agentMetrics: make(map[string]*AgentMetrics),
	}
}

// Global metrics instance.
var globalMetrics = NewMetrics()

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordRequest records a relay request.
func (m *Metrics) RecordRequest(agent string) {
	m.requestTotal.Add(1)
	m.getAgentMetrics(agent).requestCount.Add(1)
}

// RecordFailure records a failed relay request.
func (m *Metrics) RecordFailure(agent string) {
	m.requestFailed.Add(1)
	m.getAgentMetrics(agent).errorCount.Add(1)
}

// RecordDuration records a request duration.
func (m *Metrics) RecordDuration(agent string, duration time.Duration) {
	m.getAgentMetrics(agent).totalDuration.Add(duration.Milliseconds())
}

// RecordStreamEvent records a stream event forwarded to a caller.
func (m *Metrics) RecordStreamEvent() {
	m.streamEvents.Add(1)
}

// GetRequestTotal returns the total number of requests.
func (m *Metrics) GetRequestTotal() int64 {
	return m.requestTotal.Load()
}

// GetRequestFailed returns the total number of failed requests.
func (m *Metrics) GetRequestFailed() int64 {
	return m.requestFailed.Load()
}

// GetStreamEvents returns the total number of stream events forwarded.
func (m *Metrics) GetStreamEvents() int64 {
	return m.streamEvents.Load()
}

func (m *Metrics) getAgentMetrics(agent string) *AgentMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	am, ok := m.agentMetrics[agent]
	if !ok {
		am = &AgentMetrics{}
		m.agentMetrics[agent] = am
	}
	return am
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.streamEvents.Store(0)

	m.mu.Lock()
	m.agentMetrics = make(map[string]*AgentMetrics)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	agentSnapshots := make(map[string]*AgentMetricsSnapshot, len(m.agentMetrics))
	for agent, am := range m.agentMetrics {
		count := am.requestCount.Load()
		var avg int64
		if count > 0 {
			avg = am.totalDuration.Load() / count
		}
		agentSnapshots[agent] = &AgentMetricsSnapshot{
			RequestCount:    count,
			TotalDuration:   am.totalDuration.Load(),
			ErrorCount:      am.errorCount.Load(),
			AverageDuration: avg,
		}
	}

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		StreamEvents:  m.streamEvents.Load(),
		AgentMetrics:  agentSnapshots,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                            `json:"requestTotal"`
	RequestFailed int64                            `json:"requestFailed"`
	StreamEvents  int64                            `json:"streamEvents"`
	AgentMetrics  map[string]*AgentMetricsSnapshot `json:"agents"`
}

// AgentMetricsSnapshot represents metrics for a specific agent.
type AgentMetricsSnapshot struct {
	RequestCount    int64 `json:"requestCount"`
	TotalDuration   int64 `json:"totalDurationMs"`
	ErrorCount      int64 `json:"errorCount"`
	AverageDuration int64 `json:"averageDurationMs"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
