package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-marketplace/internal/geo"
	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/observability"
	"github.com/example/ride-marketplace/internal/storage"
)

// Server-owned rate table. Clients never supply rates; any rate field
// in a request payload is dropped before it reaches this package.
const (
	HourlyRate = 150.0
	DailyRate  = 1200.0
	PerKmRate  = 12.0
)

var (
	// ErrNoDriverAvailable means the online driver pool is empty.
	ErrNoDriverAvailable = errors.New("no driver available")
	// ErrNoVehicleAvailable means no vehicle of the requested class could
	// be claimed.
	ErrNoVehicleAvailable = errors.New("no vehicle available")
)

// ValidationError reports a rejected booking field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// Rates is the public rate table served to clients for fare previews.
type Rates struct {
	HourlyRate float64 `json:"hourly_rate"`
	DailyRate  float64 `json:"daily_rate"`
	PerKmRate  float64 `json:"per_km_rate"`
	FallbackKm float64 `json:"fallback_km"`
}

func RateTable() Rates {
	return Rates{HourlyRate: HourlyRate, DailyRate: DailyRate, PerKmRate: PerKmRate, FallbackKm: geo.FallbackDistanceKm}
}

// FareParams are the server-derived inputs to fare calculation.
type FareParams struct {
	DurationHours float64
	DurationDays  float64
	DistanceKm    float64
}

// CalculateFare prices a booking from the server rate table. Pure.
func CalculateFare(t models.BookingType, p FareParams) (float64, error) {
	switch t {
	case models.BookingDriverOnly:
		if p.DurationHours < 1 {
			return 0, &ValidationError{Field: "duration_hours", Msg: "must be at least 1"}
		}
		return p.DurationHours * HourlyRate, nil
	case models.BookingVehicleOnly:
		if p.DurationDays < 1 {
			return 0, &ValidationError{Field: "duration_days", Msg: "must be at least 1"}
		}
		return p.DurationDays * DailyRate, nil
	case models.BookingNormal:
		km := p.DistanceKm
		if km <= 0 {
			km = geo.FallbackDistanceKm
		}
		return km * PerKmRate, nil
	default:
		return 0, &ValidationError{Field: "booking_type", Msg: "unknown booking type"}
	}
}

// BookingRequest carries the client-controllable booking fields. Rate
// and fare fields are intentionally absent: decoding a payload into
// this type is what enforces the pricing trust boundary.
type BookingRequest struct {
	ClientName   string             `json:"client_name"`
	ClientPhone  string             `json:"client_phone"`
	ClientEmail  string             `json:"client_email"`
	ClientType   string             `json:"client_type"`
	BookingType  models.BookingType `json:"booking_type"`
	VehicleClass string             `json:"vehicle_class"`
	NumVehicles  int                `json:"num_vehicles"`

	PickupLocation string    `json:"pickup_location"`
	DropLocation   string    `json:"drop_location"`
	Date           time.Time `json:"date"`

	DurationHours float64 `json:"duration_hours"`
	DurationDays  float64 `json:"duration_days"`
	DistanceKm    float64 `json:"distance_km"`

	CustomerVehicle *models.CustomerVehicle `json:"customer_vehicle,omitempty"`
	Purpose         string                  `json:"purpose,omitempty"`
}

// Engine resolves booking requests to drivers and vehicles under the
// server rate table. Vehicle claims go through the store's
// compare-and-swap so two bookings can never hold the same vehicle.
type Engine struct {
	store    storage.FleetStore
	captains storage.CaptainStore
	logger   *slog.Logger

	now func() time.Time
}

func NewEngine(store storage.FleetStore, captains storage.CaptainStore, logger *slog.Logger) *Engine {
	return &Engine{store: store, captains: captains, logger: logger, now: time.Now}
}

// AssignDriver picks the first candidate. No scoring.
func AssignDriver(pool []*models.Captain) *models.Captain {
	if len(pool) == 0 {
		return nil
	}
	return pool[0]
}

// AssignVehicle picks the first candidate. No scoring.
func AssignVehicle(pool []*models.FleetVehicle) *models.FleetVehicle {
	if len(pool) == 0 {
		return nil
	}
	return pool[0]
}

func (e *Engine) validate(req *BookingRequest) error {
	if req.ClientName == "" {
		return &ValidationError{Field: "client_name", Msg: "required"}
	}
	if req.ClientPhone == "" {
		return &ValidationError{Field: "client_phone", Msg: "required"}
	}
	switch req.BookingType {
	case models.BookingDriverOnly:
		if req.CustomerVehicle == nil || req.CustomerVehicle.Plate == "" {
			return &ValidationError{Field: "customer_vehicle", Msg: "required for driver-only bookings"}
		}
	case models.BookingVehicleOnly, models.BookingNormal:
		if req.VehicleClass == "" {
			return &ValidationError{Field: "vehicle_class", Msg: "required"}
		}
	default:
		return &ValidationError{Field: "booking_type", Msg: "unknown booking type"}
	}
	return nil
}

// CreateBooking resolves one booking end to end: validate, price,
// assign, claim, persist. A failed claim or persist leaves no booking
// record and no vehicle held.
func (e *Engine) CreateBooking(ctx context.Context, req *BookingRequest) (*models.FleetBooking, error) {
	if err := e.validate(req); err != nil {
		return nil, err
	}
	fare, err := CalculateFare(req.BookingType, FareParams{
		DurationHours: req.DurationHours,
		DurationDays:  req.DurationDays,
		DistanceKm:    req.DistanceKm,
	})
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	booking := &models.FleetBooking{
		ID:             uuid.NewString(),
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
		ClientEmail:    req.ClientEmail,
		ClientType:     req.ClientType,
		VehicleClass:   req.VehicleClass,
		NumVehicles:    req.NumVehicles,
		PickupLocation: req.PickupLocation,
		DropLocation:   req.DropLocation,
		Date:           req.Date,
		Status:         models.BookingPending,
		BookingType:    req.BookingType,
		Purpose:        req.Purpose,
		CalculatedFare: fare,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	switch req.BookingType {
	case models.BookingDriverOnly:
		booking.CustomerVehicle = req.CustomerVehicle
		booking.HourlyRate = HourlyRate
		booking.DurationHours = req.DurationHours
		pool, err := e.captains.ListOnlineCaptains(ctx, 10)
		if err != nil {
			return nil, err
		}
		driver := AssignDriver(pool)
		if driver == nil {
			observability.ResourceUnavailable.Inc()
			return nil, ErrNoDriverAvailable
		}
		booking.AssignedDriverID = driver.ID

	case models.BookingVehicleOnly:
		booking.DailyRate = DailyRate
		booking.DurationDays = req.DurationDays
		vehicle, err := e.claimOne(ctx, req.VehicleClass)
		if err != nil {
			return nil, err
		}
		booking.AssignedVehicleID = vehicle.ID

	case models.BookingNormal:
		vehicle, err := e.claimOne(ctx, req.VehicleClass)
		if err != nil {
			return nil, err
		}
		booking.AssignedVehicleID = vehicle.ID
	}

	if err := e.store.CreateBooking(ctx, booking); err != nil {
		e.releaseAll(ctx, booking)
		return nil, err
	}
	observability.BookingsCreated.WithLabelValues(string(booking.BookingType)).Inc()
	e.logger.Info("booking created", "booking_id", booking.ID, "type", booking.BookingType, "fare", booking.CalculatedFare)
	return booking, nil
}

// CreateGroupBooking is the legacy multi-vehicle flow: claim N vehicles
// of one class for a single client. All claims succeed or none hold.
func (e *Engine) CreateGroupBooking(ctx context.Context, req *BookingRequest) (*models.FleetBooking, error) {
	req.BookingType = models.BookingNormal
	if err := e.validate(req); err != nil {
		return nil, err
	}
	n := req.NumVehicles
	if n < 1 {
		n = 1
	}
	perVehicle, err := CalculateFare(models.BookingNormal, FareParams{DistanceKm: req.DistanceKm})
	if err != nil {
		return nil, err
	}

	claimed := make([]string, 0, n)
	for len(claimed) < n {
		vehicle, err := e.claimOne(ctx, req.VehicleClass)
		if err != nil {
			for _, id := range claimed {
				e.release(ctx, id)
			}
			return nil, err
		}
		claimed = append(claimed, vehicle.ID)
	}

	now := e.now().UTC()
	booking := &models.FleetBooking{
		ID:               uuid.NewString(),
		ClientName:       req.ClientName,
		ClientPhone:      req.ClientPhone,
		ClientEmail:      req.ClientEmail,
		ClientType:       req.ClientType,
		VehicleClass:     req.VehicleClass,
		NumVehicles:      n,
		PickupLocation:   req.PickupLocation,
		DropLocation:     req.DropLocation,
		Date:             req.Date,
		Status:           models.BookingPending,
		BookingType:      models.BookingNormal,
		AssignedVehicles: claimed,
		Purpose:          req.Purpose,
		CalculatedFare:   perVehicle * float64(n),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.CreateBooking(ctx, booking); err != nil {
		e.releaseAll(ctx, booking)
		return nil, err
	}
	observability.BookingsCreated.WithLabelValues(string(models.BookingNormal)).Inc()
	e.logger.Info("group booking created", "booking_id", booking.ID, "vehicles", n, "fare", booking.CalculatedFare)
	return booking, nil
}

// claimOne walks the available pool in order and takes the first
// vehicle it wins the claim for. Losing a claim to a concurrent
// booking just moves on to the next candidate.
func (e *Engine) claimOne(ctx context.Context, class string) (*models.FleetVehicle, error) {
	avail := true
	pool, err := e.store.ListVehicles(ctx, storage.VehicleFilter{VehicleClass: class, Available: &avail})
	if err != nil {
		return nil, err
	}
	for _, v := range pool {
		if err := e.store.ClaimVehicle(ctx, v.ID); err != nil {
			if errors.Is(err, storage.ErrVehicleUnavailable) || errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		return v, nil
	}
	observability.ResourceUnavailable.Inc()
	return nil, ErrNoVehicleAvailable
}

// UpdateStatus transitions a booking. Cancellation releases held
// vehicles exactly once, keyed on the previous status.
func (e *Engine) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) (*models.FleetBooking, error) {
	switch status {
	case models.BookingPending, models.BookingConfirmed, models.BookingCancelled:
	default:
		return nil, &ValidationError{Field: "status", Msg: "unknown status"}
	}
	booking, prev, err := e.store.UpdateBookingStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if status == models.BookingCancelled && prev != models.BookingCancelled {
		e.releaseAll(ctx, booking)
		observability.BookingsCancelled.Inc()
		e.logger.Info("booking cancelled", "booking_id", booking.ID)
	}
	return booking, nil
}

// CancelBooking is the cancellation entry point.
func (e *Engine) CancelBooking(ctx context.Context, id string) (*models.FleetBooking, error) {
	return e.UpdateStatus(ctx, id, models.BookingCancelled)
}

func (e *Engine) releaseAll(ctx context.Context, b *models.FleetBooking) {
	if b.AssignedVehicleID != "" {
		e.release(ctx, b.AssignedVehicleID)
	}
	for _, id := range b.AssignedVehicles {
		e.release(ctx, id)
	}
}

func (e *Engine) release(ctx context.Context, vehicleID string) {
	if err := e.store.ReleaseVehicle(ctx, vehicleID); err != nil {
		e.logger.Error("vehicle release failed", "vehicle_id", vehicleID, "error", err)
	}
}
