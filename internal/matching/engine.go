package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-marketplace/internal/events"
	"github.com/example/ride-marketplace/internal/geo"
	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/observability"
	"github.com/example/ride-marketplace/internal/registry"
	"github.com/example/ride-marketplace/internal/storage"
)

// Realtime event types pushed over the websocket.
const (
	EventNewRide       = "new_ride"
	EventRideAccepted  = "ride_accepted"
	EventRideTaken     = "ride_already_taken"
	EventRideCompleted = "ride_completed"
	EventRideCancelled = "ride_cancelled"
	EventStatsUpdated  = "stats_updated"
)

// ErrCancelWindowClosed is returned when a free cancellation is no
// longer possible and the caller did not acknowledge the fee.
var ErrCancelWindowClosed = errors.New("free cancellation window closed")

// ValidationError reports a rejected ride request field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// Broadcaster is the slice of the connection registry the engine needs.
type Broadcaster interface {
	BroadcastClass(class string, v any)
	BroadcastAll(v any)
}

// RideRequest is a rider's ride order. Fare is advisory: when the
// client omits it the server estimates one from distance.
type RideRequest struct {
	Pickup        models.Location `json:"pickup"`
	Dropoff       models.Location `json:"dropoff"`
	Fare          float64         `json:"fare"`
	RideType      string          `json:"ride_type"`
	PaymentMethod string          `json:"payment_method"`
	ScheduledAt   *time.Time      `json:"scheduled_at,omitempty"`
}

func (r *RideRequest) validate() error {
	if r.Pickup.Address == "" && r.Pickup.Lat == 0 && r.Pickup.Lng == 0 {
		return &ValidationError{Field: "pickup", Msg: "pickup location is required"}
	}
	if r.Dropoff.Address == "" && r.Dropoff.Lat == 0 && r.Dropoff.Lng == 0 {
		return &ValidationError{Field: "dropoff", Msg: "dropoff location is required"}
	}
	if r.RideType == "" {
		return &ValidationError{Field: "ride_type", Msg: "ride type is required"}
	}
	return nil
}

// CaptainStats is the post-completion earnings snapshot pushed back to
// the captain.
type CaptainStats struct {
	Earnings   float64 `json:"earnings"`
	TotalRides int     `json:"total_rides"`
}

// Engine implements the ride lifecycle. Exclusivity is delegated to the
// store's conditional updates; the engine never decides a race by
// reading first.
type Engine struct {
	rides    storage.RideStore
	captains storage.CaptainStore
	cast     Broadcaster
	producer events.Producer
	routes   geo.Estimator
	logger   *slog.Logger

	// GracePeriod is how long after acceptance a rider can cancel for
	// free. CancellationFee applies past it. PerKmRate prices rides the
	// client did not quote.
	GracePeriod     time.Duration
	CancellationFee float64
	PerKmRate       float64

	now func() time.Time
}

func NewEngine(rides storage.RideStore, captains storage.CaptainStore, cast Broadcaster, producer events.Producer, routes geo.Estimator, logger *slog.Logger) *Engine {
	return &Engine{
		rides:           rides,
		captains:        captains,
		cast:            cast,
		producer:        producer,
		routes:          routes,
		logger:          logger,
		GracePeriod:     2 * time.Minute,
		CancellationFee: 50,
		PerKmRate:       12,
		now:             time.Now,
	}
}

// RequestRide persists the ride and fans it out to every online captain
// whose vehicle class matches. Other classes never see it.
func (e *Engine) RequestRide(ctx context.Context, req RideRequest) (*models.Ride, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	fare := req.Fare
	if fare <= 0 {
		km := geo.EstimateKm(e.routes, req.Pickup, req.Dropoff)
		fare = math.Round(km*e.PerKmRate*100) / 100
	}
	now := e.now().UTC()
	ride := &models.Ride{
		ID:            uuid.NewString(),
		Pickup:        req.Pickup,
		Dropoff:       req.Dropoff,
		Fare:          fare,
		RideType:      req.RideType,
		PaymentMethod: req.PaymentMethod,
		ScheduledAt:   req.ScheduledAt,
		Status:        models.RideRequested,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.rides.CreateRide(ctx, ride); err != nil {
		return nil, err
	}
	observability.RidesRequested.Inc()
	e.cast.BroadcastClass(ride.RideType, registry.Envelope{Type: EventNewRide, Data: ride})
	e.publish(events.RideEvent{Type: events.TypeRideRequested, RideID: ride.ID, Status: string(ride.Status), Fare: ride.Fare})
	e.logger.Info("ride requested", "ride_id", ride.ID, "ride_type", ride.RideType, "fare", ride.Fare)
	return ride, nil
}

// AcceptRide runs the single-accept race. At most one captain wins; the
// rest get storage.ErrRideTaken and nothing else changes for them.
func (e *Engine) AcceptRide(ctx context.Context, rideID, captainID, handle string) (*models.Ride, error) {
	ride, err := e.rides.AcceptRide(ctx, rideID, captainID, handle)
	if err != nil {
		if errors.Is(err, storage.ErrRideTaken) {
			observability.AcceptRaceLost.Inc()
			e.logger.Info("accept race lost", "ride_id", rideID, "captain_id", captainID)
		}
		return nil, err
	}
	observability.RidesAccepted.Inc()

	payload := map[string]any{"ride": ride}
	if c, err := e.captains.GetCaptain(ctx, captainID); err == nil {
		payload["captain"] = c.BroadcastProfile()
	} else {
		e.logger.Warn("captain profile lookup failed", "captain_id", captainID, "error", err)
	}
	e.cast.BroadcastAll(registry.Envelope{Type: EventRideAccepted, Data: payload})
	e.publish(events.RideEvent{Type: events.TypeRideAccepted, RideID: ride.ID, CaptainID: captainID, Status: string(ride.Status), Fare: ride.Fare})
	e.logger.Info("ride accepted", "ride_id", ride.ID, "captain_id", captainID)
	return ride, nil
}

// CompleteRide finishes an accepted ride held by the captain, credits
// the fare and returns the refreshed stats. A captain who lost the
// accept race cannot complete: the store guard rejects the transition.
func (e *Engine) CompleteRide(ctx context.Context, rideID, captainID string) (*models.Ride, *CaptainStats, error) {
	ride, err := e.rides.CompleteRide(ctx, rideID, captainID)
	if err != nil {
		return nil, nil, err
	}
	observability.RidesCompleted.Inc()

	var stats *CaptainStats
	c, err := e.captains.CreditCaptain(ctx, captainID, ride.Fare)
	if err != nil {
		// the ride is completed either way; earnings reconcile offline
		e.logger.Error("captain credit failed", "ride_id", rideID, "captain_id", captainID, "error", err)
	} else {
		stats = &CaptainStats{Earnings: c.Earnings, TotalRides: c.TotalRides}
	}

	e.cast.BroadcastAll(registry.Envelope{Type: EventRideCompleted, Data: ride})
	e.publish(events.RideEvent{Type: events.TypeRideCompleted, RideID: ride.ID, CaptainID: captainID, Status: string(ride.Status), Fare: ride.Fare})
	e.logger.Info("ride completed", "ride_id", ride.ID, "captain_id", captainID, "fare", ride.Fare)
	return ride, stats, nil
}

// CancellationQuote reports whether cancelling the ride now costs a fee.
func (e *Engine) CancellationQuote(ride *models.Ride) float64 {
	if ride.Status != models.RideAccepted || ride.AcceptedAt == nil {
		return 0
	}
	if e.now().Sub(*ride.AcceptedAt) <= e.GracePeriod {
		return 0
	}
	return e.CancellationFee
}

// CancelRide cancels a requested or accepted ride. Within the grace
// period after acceptance cancellation is free; past it the flat fee
// applies and the caller must have acknowledged it.
func (e *Engine) CancelRide(ctx context.Context, rideID, cancelledBy string, feeAcknowledged bool) (*models.Ride, error) {
	current, err := e.rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	fee := e.CancellationQuote(current)
	if fee > 0 && !feeAcknowledged {
		return nil, ErrCancelWindowClosed
	}
	ride, err := e.rides.CancelRide(ctx, rideID, cancelledBy, fee)
	if err != nil {
		return nil, err
	}
	observability.RidesCancelled.Inc()
	e.cast.BroadcastAll(registry.Envelope{Type: EventRideCancelled, Data: ride})
	e.publish(events.RideEvent{Type: events.TypeRideCancelled, RideID: ride.ID, CaptainID: ride.CaptainID, Status: string(ride.Status), Fare: ride.Fare})
	e.logger.Info("ride cancelled", "ride_id", ride.ID, "by", cancelledBy, "fee", fee)
	return ride, nil
}

// GetRide exposes ride lookup for the HTTP layer.
func (e *Engine) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	return e.rides.GetRide(ctx, id)
}

func (e *Engine) publish(ev events.RideEvent) {
	if e.producer == nil {
		return
	}
	if err := e.producer.Publish(ev); err != nil {
		e.logger.Warn("event publish failed", "type", ev.Type, "ride_id", ev.RideID, "error", err)
	}
}
