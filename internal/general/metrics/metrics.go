package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the service counters.
type Collector struct {
	reg *prometheus.Registry

	PositionsIngested *prometheus.CounterVec // source label: http|nats|gtfsrt
	IngestRejected    *prometheus.CounterVec // source label
	NearbyQueries     prometheus.Counter
	NearbyResults     prometheus.Histogram
	RequestsCreated   prometheus.Counter
	Confirmations     *prometheus.CounterVec // outcome label: confirmed|duplicate|no_request|conflict
	ConflictRetries   prometheus.Counter
	EventsPublished   *prometheus.CounterVec // exchange label
	EventPublishErrs  *prometheus.CounterVec // exchange label
	EventsDropped     *prometheus.CounterVec // exchange label
	NATSConnected     prometheus.Gauge
	FeedPolls         *prometheus.CounterVec // result label: ok|error
	LiveSubscribers   prometheus.Gauge

	HTTPDuration *prometheus.HistogramVec // route, code labels
}

// NewCollector builds and registers all service metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PositionsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_positions_ingested_total",
			Help: "Vehicle position samples stored, by source.",
		}, []string{"source"}),
		IngestRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_positions_rejected_total",
			Help: "Vehicle position samples rejected as invalid, by source.",
		}, []string{"source"}),
		NearbyQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boarding_nearby_queries_total",
			Help: "Nearest-vehicle queries served.",
		}),
		NearbyResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "boarding_nearby_results",
			Help:    "Number of vehicles returned per nearby query.",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
		RequestsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boarding_requests_created_total",
			Help: "Boarding requests created or replaced.",
		}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_confirmations_total",
			Help: "Boarding confirmation attempts, by outcome.",
		}, []string{"outcome"}),
		ConflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boarding_conflict_retries_total",
			Help: "Transactions retried after a serialization failure or deadlock.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_events_published_total",
			Help: "Broker messages published, by exchange.",
		}, []string{"exchange"}),
		EventPublishErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_event_publish_errors_total",
			Help: "Broker publish failures, by exchange.",
		}, []string{"exchange"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_events_dropped_total",
			Help: "Broker messages dropped because the publish queue was full, by exchange.",
		}, []string{"exchange"}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boarding_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
		FeedPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_gtfsrt_polls_total",
			Help: "GTFS-realtime feed polls, by result.",
		}, []string{"result"}),
		LiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boarding_live_subscribers",
			Help: "Open live line feed websocket connections.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boarding_http_request_duration_seconds",
			Help:    "HTTP request latency, by route pattern and status code.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		c.PositionsIngested, c.IngestRejected,
		c.NearbyQueries, c.NearbyResults,
		c.RequestsCreated, c.Confirmations, c.ConflictRetries,
		c.EventsPublished, c.EventPublishErrs, c.EventsDropped,
		c.NATSConnected, c.FeedPolls, c.LiveSubscribers,
		c.HTTPDuration,
	)

	return c
}

// Registry exposes the registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// ObserveHTTP records one request's latency.
func (c *Collector) ObserveHTTP(route string, code int, d time.Duration) {
	c.HTTPDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
}

// NATSSetConnected flips the NATS connection gauge.
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}
