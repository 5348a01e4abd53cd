package gateway

import "sync/atomic"

// Metrics counts webhook traffic using atomic operations.
type Metrics struct {
	received atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

// RecordReceived records a webhook accepted by its handler.
func (m *Metrics) RecordReceived() { m.received.Add(1) }

// RecordRejected records a webhook refused before reaching a handler
// (bad signature, oversized or malformed body).
func (m *Metrics) RecordRejected() { m.rejected.Add(1) }

// RecordFailed records a webhook whose handler returned an error.
func (m *Metrics) RecordFailed() { m.failed.Add(1) }

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Received: m.received.Load(),
		Rejected: m.rejected.Load(),
		Failed:   m.failed.Load(),
	}
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Received int64 `json:"webhooks_received"`
	Rejected int64 `json:"webhooks_rejected"`
	Failed   int64 `json:"webhooks_failed"`
}
