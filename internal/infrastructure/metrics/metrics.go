package metrics

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/homytech-core/internal/device"
	"github.com/nerrad567/homytech-core/internal/fanout"
)

const namespace = "homytech"

// Prune and refusal reasons.
const (
	reasonClosed    = "closed"
	reasonFailed    = "failed"
	reasonSaturated = "saturated"
	reasonStopped   = "stopped"
	reasonOther     = "other"
)

// mqttStates are the values of the connection state gauge.
var mqttStates = []string{"disconnected", "connecting", "connected", "failed"}

// Registry owns every HomyTech collector.
//
// It implements fanout.Observer and ingest.Recorder, so the loop and the
// dispatcher report into it directly.
type Registry struct {
	reg *prometheus.Registry

	mqttMessages *prometheus.CounterVec
	mqttState    *prometheus.GaugeVec

	subscribers *prometheus.GaugeVec
	deliveries  *prometheus.CounterVec
	pruned      *prometheus.CounterVec
	refused     *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ fanout.Observer = (*Registry)(nil)

// New creates a Registry with Go runtime and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		mqttMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_total",
			Help:      "Inbound broker messages by topic and result",
		}, []string{"topic", "result"}),
		mqttState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connection_state",
			Help:      "Broker connection state (1 for the current state)",
		}, []string{"state"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fanout_subscribers",
			Help:      "Live push subscribers per channel",
		}, []string{"channel"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_deliveries_total",
			Help:      "Payloads handed to subscribers per channel",
		}, []string{"channel"}),
		pruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_pruned_total",
			Help:      "Subscribers removed after a failed delivery",
		}, []string{"channel", "reason"}),
		refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_refused_total",
			Help:      "Handoffs the broadcast loop refused",
		}, []string{"reason"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.mqttMessages,
		r.mqttState,
		r.subscribers,
		r.deliveries,
		r.pruned,
		r.refused,
		r.httpRequests,
		r.httpDuration,
	)

	for _, ch := range device.AllChannels {
		r.subscribers.WithLabelValues(string(ch)).Set(0)
	}
	r.MQTTState("disconnected")
	return r
}

// RegisterDB adds connection pool statistics for db.
func (r *Registry) RegisterDB(db *sql.DB, name string) error {
	return r.reg.Register(collectors.NewDBStatsCollector(db, name))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// MessageHandled counts one inbound broker message.
func (r *Registry) MessageHandled(topic, result string) {
	r.mqttMessages.WithLabelValues(topic, result).Inc()
}

// MQTTState marks state as the current broker connection state.
func (r *Registry) MQTTState(state string) {
	for _, s := range mqttStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.mqttState.WithLabelValues(s).Set(v)
	}
}

// Subscribers implements fanout.Observer.
func (r *Registry) Subscribers(ch device.Channel, n int) {
	r.subscribers.WithLabelValues(string(ch)).Set(float64(n))
}

// Delivered implements fanout.Observer.
func (r *Registry) Delivered(ch device.Channel, n int) {
	r.deliveries.WithLabelValues(string(ch)).Add(float64(n))
}

// Pruned implements fanout.Observer.
func (r *Registry) Pruned(ch device.Channel, expected bool) {
	reason := reasonFailed
	if expected {
		reason = reasonClosed
	}
	r.pruned.WithLabelValues(string(ch), reason).Inc()
}

// Refused implements fanout.Observer.
func (r *Registry) Refused(err error) {
	reason := reasonOther
	switch {
	case errors.Is(err, fanout.ErrLoopSaturated):
		reason = reasonSaturated
	case errors.Is(err, fanout.ErrLoopStopped):
		reason = reasonStopped
	}
	r.refused.WithLabelValues(reason).Inc()
}

// ObserveHTTP records one finished HTTP request. route is the matched
// pattern, not the raw path.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
