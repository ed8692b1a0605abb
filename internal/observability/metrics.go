package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cabride"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "http_requests_in_flight", Help: "HTTP requests currently being served"},
	)

	RidesRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rides_requested_total", Help: "Rides requested by vehicle type"},
		[]string{"vehicle_type"},
	)
	AcceptOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_accept_total", Help: "Accept attempts by outcome"},
		[]string{"outcome"},
	)
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_transitions_total", Help: "Committed ride status transitions"},
		[]string{"status"},
	)
	FinesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cancellation_fines_total", Help: "Cancellation fines applied by party"},
		[]string{"party"},
	)

	FanoutDelivered = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "fanout_delivered_total", Help: "Events queued to realtime sessions"},
	)
	FanoutDropped = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "fanout_dropped_total", Help: "Events dropped because a session queue was full"},
	)
	RealtimeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "realtime_sessions", Help: "Connected realtime sessions"},
	)
	DriversOnline = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "drivers_online", Help: "Drivers currently connected"},
	)

	RoutingLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "routing_lookups_total", Help: "Distance lookups by router and outcome"},
		[]string{"router", "outcome"},
	)
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "sink_events_total", Help: "Lifecycle events written to the durable sink"},
		[]string{"sink", "outcome"},
	)
)
