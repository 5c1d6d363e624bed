// Package metrics holds the relay's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Connections   prometheus.Gauge
	Messages      prometheus.Counter
	QuoteEvents   *prometheus.CounterVec
	Rejected      *prometheus.CounterVec
	DroppedFrames prometheus.Counter
	registry      *prometheus.Registry
}

// New registers the collectors on a fresh registry so several relays can
// live in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Number of open realtime connections",
		}),
		Messages: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Total number of chat messages relayed",
		}),
		QuoteEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_quote_events_total",
			Help: "Total number of quote events pushed by event name",
		}, []string{"event"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_rejected_total",
			Help: "Total number of rejected commands by reason",
		}, []string{"reason"}),
		DroppedFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_dropped_frames_total",
			Help: "Frames dropped because a client fell behind",
		}),
		registry: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
