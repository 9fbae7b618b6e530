// README: Prometheus collectors for pickup transitions and realtime fan-out. Nil receivers are no-ops.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "binwise"

type LifecycleMetrics struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pickup_operations_total",
		Help:      "Pickup lifecycle operations by outcome.",
	}, []string{"op", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pickup_operation_duration_seconds",
		Help:      "Latency of pickup lifecycle operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	reg.MustRegister(transitions, duration)
	return &LifecycleMetrics{transitions: transitions, duration: duration}
}

// Observe records one operation. result is "ok", "conflict", "invalid", "not_found" or "error".
func (m *LifecycleMetrics) Observe(op, result string, took time.Duration) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(took.Seconds())
}

type BusMetrics struct {
	published   *prometheus.CounterVec
	dropped     prometheus.Counter
	connections prometheus.Gauge
}

func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	if reg == nil {
		return &BusMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_published_total",
		Help:      "Events published to rooms.",
	}, []string{"event"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_dropped_total",
		Help:      "Events dropped because a connection send queue was full.",
	})
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "Open realtime connections.",
	})
	reg.MustRegister(published, dropped, connections)
	return &BusMetrics{published: published, dropped: dropped, connections: connections}
}

func (m *BusMetrics) Published(event string) {
	if m == nil || m.published == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	m.published.WithLabelValues(event).Inc()
}

func (m *BusMetrics) Dropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}

func (m *BusMetrics) ConnOpened() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Inc()
}

func (m *BusMetrics) ConnClosed() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Dec()
}
