package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesRequested = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "rides_requested_total", Help: "Total ride requests created"})
	RidesAccepted  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "rides_accepted_total", Help: "Total rides accepted by a captain"})
	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "rides_completed_total", Help: "Total rides completed"})
	RidesCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "rides_cancelled_total", Help: "Total rides cancelled"})
	AcceptRaceLost = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "accept_race_lost_total", Help: "Total accept attempts that lost the single-accept race"})

	CaptainsOnline = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_marketplace", Name: "captains_online", Help: "Captains currently connected"})

	BookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "bookings_created_total", Help: "Fleet bookings created"},
		[]string{"type"},
	)
	BookingsCancelled   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "bookings_cancelled_total", Help: "Fleet bookings cancelled"})
	ResourceUnavailable = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "booking_resource_unavailable_total", Help: "Booking attempts rejected for lack of drivers or vehicles"})

	NotificationsStored = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "notifications_stored_total", Help: "Durable notification records written"})
	NotificationsPushed = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "notifications_pushed_total", Help: "Notifications delivered to a live connection"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_marketplace",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
