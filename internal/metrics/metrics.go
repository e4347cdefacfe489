package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onrent_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onrent_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ReservationsTotal counts reservation attempts by outcome:
	// created, conflict, not_available, cross_owner, invalid, timeout, error.
	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onrent_reservations_total",
			Help: "Rental reservation attempts by result",
		},
		[]string{"result"},
	)

	FittingBookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onrent_fitting_bookings_total",
			Help: "Fitting booking attempts by result",
		},
		[]string{"result"},
	)

	StateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onrent_state_transitions_total",
			Help: "Applied lifecycle transitions",
		},
		[]string{"machine", "to"},
	)

	SlotsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "onrent_slots_generated_total",
			Help: "Fitting slots created from weekly templates",
		},
	)

	TxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onrent_tx_duration_seconds",
			Help:    "Unit-of-work duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 12},
		},
		[]string{"op"},
	)
)

// Result labels shared by reservation and booking counters.
const (
	ResultCreated      = "created"
	ResultConflict     = "conflict"
	ResultNotAvailable = "not_available"
	ResultCrossOwner   = "cross_owner"
	ResultInvalid      = "invalid"
	ResultTimeout      = "timeout"
	ResultError        = "error"
)
