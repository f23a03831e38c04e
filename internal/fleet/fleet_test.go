package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return NewEngine(store, store, testLogger()), store
}

func seedVehicle(t *testing.T, store *storage.MemoryStore, id, class string) {
	t.Helper()
	v := &models.FleetVehicle{ID: id, OwnerID: "o1", VehicleClass: class, Plate: "KA-" + id, Available: true}
	if err := store.CreateVehicle(context.Background(), v); err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}
}

func seedOnlineCaptain(t *testing.T, store *storage.MemoryStore, id string) {
	t.Helper()
	ctx := context.Background()
	c := &models.Captain{ID: id, Name: id, Phone: "phone-" + id, Vehicle: models.Vehicle{Class: "sedan"}}
	if err := store.CreateCaptain(ctx, c); err != nil {
		t.Fatalf("CreateCaptain: %v", err)
	}
	if _, err := store.SetCaptainPresence(ctx, id, "h-"+id, true); err != nil {
		t.Fatalf("SetCaptainPresence: %v", err)
	}
}

func TestCalculateFare(t *testing.T) {
	cases := []struct {
		name    string
		typ     models.BookingType
		params  FareParams
		want    float64
		wantErr bool
	}{
		{"driver only hourly", models.BookingDriverOnly, FareParams{DurationHours: 4}, 600, false},
		{"driver only missing duration", models.BookingDriverOnly, FareParams{}, 0, true},
		{"vehicle only daily", models.BookingVehicleOnly, FareParams{DurationDays: 3}, 3600, false},
		{"vehicle only missing duration", models.BookingVehicleOnly, FareParams{DurationDays: 0.5}, 0, true},
		{"normal per km", models.BookingNormal, FareParams{DistanceKm: 10}, 120, false},
		{"normal fallback distance", models.BookingNormal, FareParams{}, 240, false},
		{"unknown type", models.BookingType("WEEKLY"), FareParams{}, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CalculateFare(tc.typ, tc.params)
			if tc.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("got %v, want ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CalculateFare: %v", err)
			}
			if got != tc.want {
				t.Fatalf("fare = %v, want %v", got, tc.want)
			}
		})
	}
}

// A forged rate in the payload must never reach the fare. BookingRequest
// simply has no rate fields, so decoding drops them.
func TestCreateBooking_IgnoresForgedRates(t *testing.T) {
	e, store := newTestEngine(t)
	seedOnlineCaptain(t, store, "d1")

	payload := []byte(`{
		"client_name": "Acme",
		"client_phone": "999",
		"booking_type": "DRIVER_ONLY",
		"duration_hours": 4,
		"hourly_rate": 1,
		"calculated_fare": 4,
		"customer_vehicle": {"make": "Toyota", "model": "Etios", "plate": "KA-09"}
	}`)
	var req BookingRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	booking, err := e.CreateBooking(context.Background(), &req)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if booking.CalculatedFare != 4*HourlyRate {
		t.Fatalf("fare = %v, want %v", booking.CalculatedFare, 4*HourlyRate)
	}
	if booking.HourlyRate != HourlyRate {
		t.Fatalf("stored rate = %v, want server rate %v", booking.HourlyRate, HourlyRate)
	}
	if booking.AssignedDriverID != "d1" {
		t.Fatalf("assigned driver = %q, want d1", booking.AssignedDriverID)
	}
}

func TestCreateBooking_DriverOnlyValidation(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.CreateBooking(context.Background(), &BookingRequest{
		ClientName:    "Acme",
		ClientPhone:   "999",
		BookingType:   models.BookingDriverOnly,
		DurationHours: 4,
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "customer_vehicle" {
		t.Fatalf("got %v, want customer_vehicle validation error", err)
	}
}

func TestCreateBooking_NoDriverAvailable(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.CreateBooking(context.Background(), &BookingRequest{
		ClientName:      "Acme",
		ClientPhone:     "999",
		BookingType:     models.BookingDriverOnly,
		DurationHours:   2,
		CustomerVehicle: &models.CustomerVehicle{Make: "T", Model: "E", Plate: "KA-09"},
	})
	if !errors.Is(err, ErrNoDriverAvailable) {
		t.Fatalf("got %v, want ErrNoDriverAvailable", err)
	}
}

func TestCreateBooking_VehicleOnlyClaimsVehicle(t *testing.T) {
	e, store := newTestEngine(t)
	seedVehicle(t, store, "v1", "sedan")
	ctx := context.Background()

	booking, err := e.CreateBooking(ctx, &BookingRequest{
		ClientName:   "Acme",
		ClientPhone:  "999",
		BookingType:  models.BookingVehicleOnly,
		VehicleClass: "sedan",
		DurationDays: 3,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if booking.AssignedVehicleID != "v1" {
		t.Fatalf("assigned vehicle = %q, want v1", booking.AssignedVehicleID)
	}
	if booking.CalculatedFare != 3*DailyRate {
		t.Fatalf("fare = %v, want %v", booking.CalculatedFare, 3*DailyRate)
	}
	v, err := store.GetVehicle(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVehicle: %v", err)
	}
	if v.Available {
		t.Fatal("claimed vehicle still marked available")
	}
}

func TestCreateBooking_EmptyPoolLeavesNoBooking(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	// a vehicle of the wrong class must not satisfy the request
	seedVehicle(t, store, "v1", "bus")

	_, err := e.CreateBooking(ctx, &BookingRequest{
		ClientName:   "Acme",
		ClientPhone:  "999",
		BookingType:  models.BookingVehicleOnly,
		VehicleClass: "sedan",
		DurationDays: 1,
	})
	if !errors.Is(err, ErrNoVehicleAvailable) {
		t.Fatalf("got %v, want ErrNoVehicleAvailable", err)
	}
	bookings, err := store.ListBookings(ctx, "")
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(bookings) != 0 {
		t.Fatalf("dangling booking persisted: %+v", bookings[0])
	}
}

func TestCreateBooking_ConcurrentExclusivity(t *testing.T) {
	e, store := newTestEngine(t)
	seedVehicle(t, store, "v1", "sedan")
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	okCh := make(chan *models.FleetBooking, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := e.CreateBooking(ctx, &BookingRequest{
				ClientName:   "Acme",
				ClientPhone:  "999",
				BookingType:  models.BookingVehicleOnly,
				VehicleClass: "sedan",
				DurationDays: 1,
			})
			if err == nil {
				okCh <- b
			} else if !errors.Is(err, ErrNoVehicleAvailable) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(okCh)

	var winners []*models.FleetBooking
	for b := range okCh {
		winners = append(winners, b)
	}
	if len(winners) != 1 {
		t.Fatalf("%d bookings claimed the single vehicle, want 1", len(winners))
	}
	if winners[0].AssignedVehicleID != "v1" {
		t.Fatalf("winner holds %q, want v1", winners[0].AssignedVehicleID)
	}
}

func TestCancelBooking_ReleasesVehicleOnce(t *testing.T) {
	e, store := newTestEngine(t)
	seedVehicle(t, store, "v1", "sedan")
	ctx := context.Background()

	booking, err := e.CreateBooking(ctx, &BookingRequest{
		ClientName:   "Acme",
		ClientPhone:  "999",
		BookingType:  models.BookingVehicleOnly,
		VehicleClass: "sedan",
		DurationDays: 1,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if _, err := e.CancelBooking(ctx, booking.ID); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	v, _ := store.GetVehicle(ctx, "v1")
	if !v.Available {
		t.Fatal("vehicle not released on cancellation")
	}

	// a new booking claims the released vehicle; a repeated cancel of the
	// old booking must not free it again
	if _, err := e.CreateBooking(ctx, &BookingRequest{
		ClientName:   "Beta",
		ClientPhone:  "888",
		BookingType:  models.BookingVehicleOnly,
		VehicleClass: "sedan",
		DurationDays: 1,
	}); err != nil {
		t.Fatalf("second CreateBooking: %v", err)
	}
	if _, err := e.CancelBooking(ctx, booking.ID); err != nil {
		t.Fatalf("repeated CancelBooking: %v", err)
	}
	v, _ = store.GetVehicle(ctx, "v1")
	if v.Available {
		t.Fatal("repeated cancellation released a vehicle held by another booking")
	}
}

func TestCreateGroupBooking_AllOrNothing(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	seedVehicle(t, store, "v1", "sedan")
	seedVehicle(t, store, "v2", "sedan")

	// three requested, only two exist: nothing stays claimed
	_, err := e.CreateGroupBooking(ctx, &BookingRequest{
		ClientName:   "Acme",
		ClientPhone:  "999",
		VehicleClass: "sedan",
		NumVehicles:  3,
		DistanceKm:   10,
	})
	if !errors.Is(err, ErrNoVehicleAvailable) {
		t.Fatalf("got %v, want ErrNoVehicleAvailable", err)
	}
	for _, id := range []string{"v1", "v2"} {
		v, _ := store.GetVehicle(ctx, id)
		if !v.Available {
			t.Fatalf("vehicle %s left claimed after failed group booking", id)
		}
	}

	booking, err := e.CreateGroupBooking(ctx, &BookingRequest{
		ClientName:   "Acme",
		ClientPhone:  "999",
		VehicleClass: "sedan",
		NumVehicles:  2,
		DistanceKm:   10,
	})
	if err != nil {
		t.Fatalf("CreateGroupBooking: %v", err)
	}
	if len(booking.AssignedVehicles) != 2 {
		t.Fatalf("assigned %d vehicles, want 2", len(booking.AssignedVehicles))
	}
	if booking.CalculatedFare != 2*10*PerKmRate {
		t.Fatalf("fare = %v, want %v", booking.CalculatedFare, 2*10*PerKmRate)
	}

	// cancellation returns the whole group to the pool
	if _, err := e.CancelBooking(ctx, booking.ID); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	for _, id := range booking.AssignedVehicles {
		v, _ := store.GetVehicle(ctx, id)
		if !v.Available {
			t.Fatalf("vehicle %s not released", id)
		}
	}
}
