package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	quotesApplied  atomic.Uint64
	quotesDropped  atomic.Uint64
	reconnects     atomic.Uint64
	ordersPlaced   atomic.Uint64
	ordersRejected atomic.Uint64

	// Gauges
	activeStreams atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordQuoteApplied records one snapshot write into the quote cache.
func (m *Metrics) RecordQuoteApplied() {
	m.quotesApplied.Add(1)
}

// RecordQuoteDropped records a discarded stream message (malformed,
// mismatched market, or missing a side).
func (m *Metrics) RecordQuoteDropped() {
	m.quotesDropped.Add(1)
}

// RecordReconnect records one reconnect attempt on a market stream.
func (m *Metrics) RecordReconnect() {
	m.reconnects.Add(1)
}

// RecordOrderPlaced records a successfully placed order.
func (m *Metrics) RecordOrderPlaced() {
	m.ordersPlaced.Add(1)
}

// RecordOrderRejected records a failed placement.
func (m *Metrics) RecordOrderRejected() {
	m.ordersRejected.Add(1)
}

// IncrementStreams increments the active stream gauge by 1.
func (m *Metrics) IncrementStreams() {
	m.activeStreams.Add(1)
}

// DecrementStreams decrements the active stream gauge by 1.
func (m *Metrics) DecrementStreams() {
	m.activeStreams.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	QuotesApplied  uint64
	QuotesDropped  uint64
	Reconnects     uint64
	OrdersPlaced   uint64
	OrdersRejected uint64
	ActiveStreams  int32
	Timestamp      time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		QuotesApplied:  m.quotesApplied.Load(),
		QuotesDropped:  m.quotesDropped.Load(),
		Reconnects:     m.reconnects.Load(),
		OrdersPlaced:   m.ordersPlaced.Load(),
		OrdersRejected: m.ordersRejected.Load(),
		ActiveStreams:  m.activeStreams.Load(),
		Timestamp:      time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.quotesApplied.Store(0)
	m.quotesDropped.Store(0)
	m.reconnects.Store(0)
	m.ordersPlaced.Store(0)
	m.ordersRejected.Store(0)
	m.activeStreams.Store(0)
}
