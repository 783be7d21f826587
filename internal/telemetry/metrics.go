// Package telemetry owns the matching core's structured logger and
// Prometheus metrics registry, the ambient stack SPEC_FULL.md calls
// for alongside the protocol core itself.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics records counters and latency histograms for engine
// operations. The zero value from NoopEngineMetrics is safe to use
// wherever metrics are optional (tests, standalone tools).
type EngineMetrics struct {
	ordersAccepted  prometheus.Counter
	ordersRejected  prometheus.Counter
	cancelsAccepted prometheus.Counter
	cancelsRejected prometheus.Counter
	tradesExecuted  prometheus.Counter
	qtyMatched      prometheus.Histogram
	ackLatencyNs    prometheus.Histogram
}

// NewEngineMetrics registers the engine's metric collectors on reg.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	factory := promauto.With(reg)
	return &EngineMetrics{
		ordersAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchcore_orders_accepted_total",
			Help: "NEW requests that produced an ACK.",
		}),
		ordersRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchcore_orders_rejected_total",
			Help: "NEW requests that produced a NACK.",
		}),
		cancelsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchcore_cancels_accepted_total",
			Help: "CANCEL requests that produced an ACK.",
		}),
		cancelsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchcore_cancels_rejected_total",
			Help: "CANCEL requests that produced a NACK.",
		}),
		tradesExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchcore_trades_total",
			Help: "Trade records emitted by the matching engine.",
		}),
		qtyMatched: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchcore_trade_quantity",
			Help:    "Per-trade matched quantity.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		ackLatencyNs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchcore_ack_latency_ns",
			Help:    "Nanoseconds between engine receive and ack emission for NEW requests.",
			Buckets: prometheus.ExponentialBuckets(100, 4, 12),
		}),
	}
}

// NoopEngineMetrics returns a metrics sink that discards everything,
// for tests and tools that don't run a metrics server.
func NoopEngineMetrics() *EngineMetrics { return &EngineMetrics{} }

func (m *EngineMetrics) OrderAccepted() {
	if m.ordersAccepted != nil {
		m.ordersAccepted.Inc()
	}
}

func (m *EngineMetrics) OrderRejected() {
	if m.ordersRejected != nil {
		m.ordersRejected.Inc()
	}
}

func (m *EngineMetrics) CancelAccepted() {
	if m.cancelsAccepted != nil {
		m.cancelsAccepted.Inc()
	}
}

func (m *EngineMetrics) CancelRejected() {
	if m.cancelsRejected != nil {
		m.cancelsRejected.Inc()
	}
}

func (m *EngineMetrics) TradesExecuted(n int) {
	if m.tradesExecuted != nil && n > 0 {
		m.tradesExecuted.Add(float64(n))
	}
}

func (m *EngineMetrics) QuantityMatched(qty int32) {
	if m.qtyMatched != nil {
		m.qtyMatched.Observe(float64(qty))
	}
}

func (m *EngineMetrics) AckLatency(ackNs, recvNs uint64) {
	if m.ackLatencyNs != nil && ackNs >= recvNs {
		m.ackLatencyNs.Observe(float64(ackNs - recvNs))
	}
}
