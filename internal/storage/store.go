package storage

import (
	"context"
	"errors"

	"github.com/example/ride-marketplace/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrRideTaken is the expected negative outcome of losing the
	// single-accept race; it is not a system fault.
	ErrRideTaken = errors.New("ride already taken")
	// ErrInvalidState is returned when a guarded transition finds the
	// record in a state the transition is not valid from.
	ErrInvalidState = errors.New("invalid state for transition")
	// ErrVehicleUnavailable is returned when a vehicle claim loses to a
	// concurrent booking.
	ErrVehicleUnavailable = errors.New("vehicle not available")
	// ErrDuplicate is returned on unique-constraint violations (phone,
	// plate, email).
	ErrDuplicate = errors.New("duplicate record")
)

// RideStore persists rides. The accept, complete and cancel operations are
// atomic conditional updates: they apply fully or not at all, and two
// concurrent callers can never both observe success for the same guard.
type RideStore interface {
	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)

	// AcceptRide sets status=accepted and attaches the captain, but only
	// if the current status is requested. Exactly one concurrent caller
	// succeeds; the rest get ErrRideTaken.
	AcceptRide(ctx context.Context, rideID, captainID, handle string) (*models.Ride, error)

	// CompleteRide moves accepted -> completed for the given captain.
	// ErrInvalidState when the ride is not accepted or is held by a
	// different captain.
	CompleteRide(ctx context.Context, rideID, captainID string) (*models.Ride, error)

	// CancelRide moves requested|accepted -> cancelled, recording the fee
	// and the cancelling party.
	CancelRide(ctx context.Context, rideID, cancelledBy string, fee float64) (*models.Ride, error)
}

type CaptainStore interface {
	CreateCaptain(ctx context.Context, c *models.Captain) error
	GetCaptain(ctx context.Context, id string) (*models.Captain, error)
	GetCaptainByPhone(ctx context.Context, phone string) (*models.Captain, error)

	// SetCaptainPresence records the connection handle and online flag.
	SetCaptainPresence(ctx context.Context, id, handle string, online bool) (*models.Captain, error)
	// ClearCaptainByHandle finds whichever captain owns the handle and
	// marks it offline. ErrNotFound when no captain owns it.
	ClearCaptainByHandle(ctx context.Context, handle string) (*models.Captain, error)

	// CreditCaptain atomically adds fare to earnings and one to the ride
	// count. Called only on the guarded accepted->completed transition, so
	// repeated completions never double-credit.
	CreditCaptain(ctx context.Context, id string, fare float64) (*models.Captain, error)

	ListOnlineCaptains(ctx context.Context, limit int) ([]*models.Captain, error)
}

type RiderStore interface {
	CreateRider(ctx context.Context, r *models.Rider) error
	GetRiderByPhone(ctx context.Context, phone string) (*models.Rider, error)
}

type FleetStore interface {
	CreateOwner(ctx context.Context, o *models.FleetOwner) error
	GetOwner(ctx context.Context, id string) (*models.FleetOwner, error)
	GetOwnerByEmail(ctx context.Context, email string) (*models.FleetOwner, error)
	GetOwnerByPhone(ctx context.Context, phone string) (*models.FleetOwner, error)

	CreateVehicle(ctx context.Context, v *models.FleetVehicle) error
	GetVehicle(ctx context.Context, id string) (*models.FleetVehicle, error)
	GetVehicleByPlate(ctx context.Context, plate string) (*models.FleetVehicle, error)
	ListVehicles(ctx context.Context, f VehicleFilter) ([]*models.FleetVehicle, error)
	SetVehicleAvailability(ctx context.Context, id string, available bool) (*models.FleetVehicle, error)

	// ClaimVehicle flips available true -> false for one vehicle id.
	// Same compare-and-swap discipline as ride accept, applied to a
	// boolean flag: a vehicle can never be attached to two live bookings.
	ClaimVehicle(ctx context.Context, id string) error
	// ReleaseVehicle flips the flag back on booking cancellation.
	ReleaseVehicle(ctx context.Context, id string) error

	CreateBooking(ctx context.Context, b *models.FleetBooking) error
	GetBooking(ctx context.Context, id string) (*models.FleetBooking, error)
	ListBookings(ctx context.Context, status models.BookingStatus) ([]*models.FleetBooking, error)
	// UpdateBookingStatus transitions booking status; returns the updated
	// booking and its previous status so callers can release vehicles
	// exactly once.
	UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) (*models.FleetBooking, models.BookingStatus, error)
}

// VehicleFilter narrows ListVehicles. Zero values mean "any".
type VehicleFilter struct {
	OwnerID      string
	VehicleClass string
	Available    *bool
	Limit        int
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, receiverID string, limit int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, receiverID string) (int, error)
	MarkRead(ctx context.Context, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, receiverID string) (int, error)
}

// Store is the full persistence surface of the server.
type Store interface {
	RideStore
	CaptainStore
	RiderStore
	FleetStore
	NotificationStore
}
