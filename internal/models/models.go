package models

import "time"

// Location is a named point used for ride pickup/dropoff.
type Location struct {
	Lat     float64 `json:"lat" bson:"lat"`
	Lng     float64 `json:"lng" bson:"lng"`
	Address string  `json:"address" bson:"address"`
}

// RideStatus is the ride lifecycle state. Transitions are monotonic:
// requested -> accepted -> completed; cancellation is terminal from
// requested or accepted.
type RideStatus string

const (
	RideRequested RideStatus = "requested"
	RideAccepted  RideStatus = "accepted"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

type Ride struct {
	ID              string     `json:"id" bson:"_id"`
	Pickup          Location   `json:"pickup" bson:"pickup"`
	Dropoff         Location   `json:"dropoff" bson:"dropoff"`
	Fare            float64    `json:"fare" bson:"fare"`
	RideType        string     `json:"ride_type" bson:"ride_type"`
	PaymentMethod   string     `json:"payment_method" bson:"payment_method"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty" bson:"scheduled_at,omitempty"`
	Status          RideStatus `json:"status" bson:"status"`
	CaptainID       string     `json:"captain_id,omitempty" bson:"captain_id,omitempty"`
	CaptainHandle   string     `json:"captain_handle,omitempty" bson:"captain_handle,omitempty"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty" bson:"accepted_at,omitempty"`
	CancellationFee float64    `json:"cancellation_fee" bson:"cancellation_fee"`
	CancelledBy     string     `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
}

// Vehicle is the captain's registered vehicle. Class routes ride
// broadcasts to matching captains only.
type Vehicle struct {
	Class string `json:"class" bson:"class"`
	Plate string `json:"plate" bson:"plate"`
	Color string `json:"color" bson:"color"`
	Model string `json:"model" bson:"model"`
}

type Captain struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Phone        string    `json:"phone" bson:"phone"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Vehicle      Vehicle   `json:"vehicle" bson:"vehicle"`
	Rating       float64   `json:"rating" bson:"rating"`
	Earnings     float64   `json:"earnings" bson:"earnings"`
	TotalRides   int       `json:"total_rides" bson:"total_rides"`
	Online       bool      `json:"online" bson:"online"`
	Handle       string    `json:"-" bson:"handle,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Rider is a marketplace user identified by phone.
type Rider struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Phone     string    `json:"phone" bson:"phone"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// BookingType selects the fleet booking mode.
type BookingType string

const (
	BookingNormal      BookingType = "NORMAL"
	BookingDriverOnly  BookingType = "DRIVER_ONLY"
	BookingVehicleOnly BookingType = "VEHICLE_ONLY"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// CustomerVehicle describes the customer's own vehicle for DRIVER_ONLY
// bookings.
type CustomerVehicle struct {
	Make  string `json:"make" bson:"make"`
	Model string `json:"model" bson:"model"`
	Plate string `json:"plate" bson:"plate"`
}

type FleetBooking struct {
	ID                string           `json:"id" bson:"_id"`
	ClientName        string           `json:"client_name" bson:"client_name"`
	ClientPhone       string           `json:"client_phone" bson:"client_phone"`
	ClientEmail       string           `json:"client_email" bson:"client_email"`
	ClientType        string           `json:"client_type" bson:"client_type"`
	VehicleClass      string           `json:"vehicle_class" bson:"vehicle_class"`
	NumVehicles       int              `json:"num_vehicles" bson:"num_vehicles"`
	PickupLocation    string           `json:"pickup_location" bson:"pickup_location"`
	DropLocation      string           `json:"drop_location" bson:"drop_location"`
	Date              time.Time        `json:"date" bson:"date"`
	Status            BookingStatus    `json:"status" bson:"status"`
	BookingType       BookingType      `json:"booking_type" bson:"booking_type"`
	AssignedDriverID  string           `json:"assigned_driver_id,omitempty" bson:"assigned_driver_id,omitempty"`
	AssignedVehicleID string           `json:"assigned_vehicle_id,omitempty" bson:"assigned_vehicle_id,omitempty"`
	AssignedVehicles  []string         `json:"assigned_vehicles,omitempty" bson:"assigned_vehicles,omitempty"`
	CustomerVehicle   *CustomerVehicle `json:"customer_vehicle,omitempty" bson:"customer_vehicle,omitempty"`
	Purpose           string           `json:"purpose,omitempty" bson:"purpose,omitempty"`
	HourlyRate        float64          `json:"hourly_rate,omitempty" bson:"hourly_rate,omitempty"`
	DurationHours     float64          `json:"duration_hours,omitempty" bson:"duration_hours,omitempty"`
	DailyRate         float64          `json:"daily_rate,omitempty" bson:"daily_rate,omitempty"`
	DurationDays      float64          `json:"duration_days,omitempty" bson:"duration_days,omitempty"`
	CalculatedFare    float64          `json:"calculated_fare" bson:"calculated_fare"`
	CreatedAt         time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" bson:"updated_at"`
}

type FleetVehicle struct {
	ID              string    `json:"id" bson:"_id"`
	OwnerID         string    `json:"owner_id" bson:"owner_id"`
	VehicleClass    string    `json:"vehicle_class" bson:"vehicle_class"`
	Plate           string    `json:"plate" bson:"plate"`
	DriverName      string    `json:"driver_name" bson:"driver_name"`
	DriverPhone     string    `json:"driver_phone" bson:"driver_phone"`
	SeatingCapacity int       `json:"seating_capacity" bson:"seating_capacity"`
	Available       bool      `json:"available" bson:"available"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

type FleetOwner struct {
	ID            string    `json:"id" bson:"_id"`
	OwnerName     string    `json:"owner_name" bson:"owner_name"`
	CompanyName   string    `json:"company_name" bson:"company_name"`
	Phone         string    `json:"phone" bson:"phone"`
	Email         string    `json:"email" bson:"email"`
	Address       string    `json:"address" bson:"address"`
	TotalVehicles int       `json:"total_vehicles" bson:"total_vehicles"`
	PasswordHash  string    `json:"-" bson:"password_hash"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

type Notification struct {
	ID         string    `json:"id" bson:"_id"`
	SenderID   string    `json:"sender_id" bson:"sender_id"`
	ReceiverID string    `json:"receiver_id" bson:"receiver_id"`
	Type       string    `json:"type" bson:"type"`
	RideID     string    `json:"ride_id,omitempty" bson:"ride_id,omitempty"`
	Message    string    `json:"message" bson:"message"`
	Read       bool      `json:"read" bson:"read"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// CaptainProfile is the captain view pushed over the wire. Phone and
// Earnings are omitted when zeroed so the same struct serves both the
// captain's own ack and the narrowed acceptance broadcast.
type CaptainProfile struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone,omitempty"`
	Vehicle    Vehicle `json:"vehicle"`
	Rating     float64 `json:"rating"`
	Earnings   float64 `json:"earnings,omitempty"`
	TotalRides int     `json:"total_rides"`
}

// Profile returns the captain's full view, sent only to the captain
// themselves on connect.
func (c *Captain) Profile() CaptainProfile {
	return CaptainProfile{
		ID:         c.ID,
		Name:       c.Name,
		Phone:      c.Phone,
		Vehicle:    c.Vehicle,
		Rating:     c.Rating,
		Earnings:   c.Earnings,
		TotalRides: c.TotalRides,
	}
}

// BroadcastProfile returns the view announced to everyone when a ride
// is accepted: name, rating, ride count and vehicle. Phone and
// earnings stay private.
func (c *Captain) BroadcastProfile() CaptainProfile {
	return CaptainProfile{
		ID:         c.ID,
		Name:       c.Name,
		Vehicle:    c.Vehicle,
		Rating:     c.Rating,
		TotalRides: c.TotalRides,
	}
}
