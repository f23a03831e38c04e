package matching

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/registry"
	"github.com/example/ride-marketplace/internal/storage"
)

// fakeBroadcaster records every fan-out for assertions.
type fakeBroadcaster struct {
	mu      sync.Mutex
	byClass map[string][]registry.Envelope
	global  []registry.Envelope
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{byClass: make(map[string][]registry.Envelope)}
}

func (f *fakeBroadcaster) BroadcastClass(class string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byClass[class] = append(f.byClass[class], v.(registry.Envelope))
}

func (f *fakeBroadcaster) BroadcastAll(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.global = append(f.global, v.(registry.Envelope))
}

func (f *fakeBroadcaster) classEvents(class string) []registry.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]registry.Envelope(nil), f.byClass[class]...)
}

func (f *fakeBroadcaster) globalEvents() []registry.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]registry.Envelope(nil), f.global...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStore, *fakeBroadcaster) {
	t.Helper()
	store := storage.NewMemoryStore()
	cast := newFakeBroadcaster()
	e := NewEngine(store, store, cast, nil, nil, testLogger())
	return e, store, cast
}

func seedCaptain(t *testing.T, store *storage.MemoryStore, id, class string) {
	t.Helper()
	c := &models.Captain{
		ID:      id,
		Name:    "Captain " + id,
		Phone:   "phone-" + id,
		Vehicle: models.Vehicle{Class: class, Plate: "KA-" + id},
		Rating:  4.8,
	}
	if err := store.CreateCaptain(context.Background(), c); err != nil {
		t.Fatalf("CreateCaptain: %v", err)
	}
}

func TestRequestRide_BroadcastsToClassOnly(t *testing.T) {
	e, _, cast := newTestEngine(t)

	ride, err := e.RequestRide(context.Background(), RideRequest{
		Pickup:   models.Location{Lat: 12.90, Lng: 77.60, Address: "A"},
		Dropoff:  models.Location{Lat: 12.95, Lng: 77.65, Address: "B"},
		Fare:     150,
		RideType: "go",
	})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}
	if ride.Status != models.RideRequested {
		t.Fatalf("status = %s, want requested", ride.Status)
	}

	events := cast.classEvents("go")
	if len(events) != 1 || events[0].Type != EventNewRide {
		t.Fatalf("go channel got %v, want one %s", events, EventNewRide)
	}
	if got := cast.classEvents("auto"); len(got) != 0 {
		t.Fatalf("auto channel received %d events, want 0", len(got))
	}
	if got := cast.classEvents("bike"); len(got) != 0 {
		t.Fatalf("bike channel received %d events, want 0", len(got))
	}
}

func TestRequestRide_ServerEstimatesMissingFare(t *testing.T) {
	e, _, _ := newTestEngine(t)

	// degenerate coordinates force the fixed fallback distance
	ride, err := e.RequestRide(context.Background(), RideRequest{
		Pickup:   models.Location{Address: "A"},
		Dropoff:  models.Location{Address: "B"},
		RideType: "go",
	})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}
	want := 20.0 * e.PerKmRate
	if ride.Fare != want {
		t.Fatalf("fare = %v, want %v", ride.Fare, want)
	}
}

func TestRequestRide_Validation(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.RequestRide(context.Background(), RideRequest{RideType: "go"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	_, err = e.RequestRide(context.Background(), RideRequest{
		Pickup:  models.Location{Address: "A"},
		Dropoff: models.Location{Address: "B"},
	})
	if !errors.As(err, &verr) || verr.Field != "ride_type" {
		t.Fatalf("got %v, want ride_type validation error", err)
	}
}

func TestAcceptRide_ConcurrentSingleWinner(t *testing.T) {
	e, store, cast := newTestEngine(t)
	ctx := context.Background()

	ride, err := e.RequestRide(ctx, RideRequest{
		Pickup:   models.Location{Address: "A"},
		Dropoff:  models.Location{Address: "B"},
		Fare:     150,
		RideType: "go",
	})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}

	captains := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range captains {
		seedCaptain(t, store, id, "go")
	}

	var wg sync.WaitGroup
	type result struct {
		captain string
		err     error
	}
	results := make(chan result, len(captains))
	for _, id := range captains {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.AcceptRide(ctx, ride.ID, id, "h-"+id)
			results <- result{captain: id, err: err}
		}(id)
	}
	wg.Wait()
	close(results)

	var winner string
	losses := 0
	for r := range results {
		if r.err == nil {
			if winner != "" {
				t.Fatalf("two winners: %s and %s", winner, r.captain)
			}
			winner = r.captain
			continue
		}
		if !errors.Is(r.err, storage.ErrRideTaken) {
			t.Fatalf("loser %s got %v, want ErrRideTaken", r.captain, r.err)
		}
		losses++
	}
	if winner == "" || losses != len(captains)-1 {
		t.Fatalf("winner=%q losses=%d", winner, losses)
	}

	stored, err := store.GetRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("GetRide: %v", err)
	}
	if stored.CaptainID != winner || stored.CaptainHandle != "h-"+winner {
		t.Fatalf("ride holds %s/%s, want %s", stored.CaptainID, stored.CaptainHandle, winner)
	}

	// the loser cannot complete the winner's ride
	for _, id := range captains {
		if id == winner {
			continue
		}
		if _, _, err := e.CompleteRide(ctx, ride.ID, id); !errors.Is(err, storage.ErrInvalidState) {
			t.Fatalf("loser complete = %v, want ErrInvalidState", err)
		}
		break
	}

	accepted := 0
	for _, ev := range cast.globalEvents() {
		if ev.Type == EventRideAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("ride_accepted broadcast %d times, want 1", accepted)
	}
}

func TestCompleteRide_CreditsOnce(t *testing.T) {
	e, store, cast := newTestEngine(t)
	ctx := context.Background()
	seedCaptain(t, store, "c1", "go")

	ride, err := e.RequestRide(ctx, RideRequest{
		Pickup:   models.Location{Address: "A"},
		Dropoff:  models.Location{Address: "B"},
		Fare:     200,
		RideType: "go",
	})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}
	if _, err := e.AcceptRide(ctx, ride.ID, "c1", "h1"); err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}

	_, stats, err := e.CompleteRide(ctx, ride.ID, "c1")
	if err != nil {
		t.Fatalf("CompleteRide: %v", err)
	}
	if stats == nil || stats.Earnings != 200 || stats.TotalRides != 1 {
		t.Fatalf("stats = %+v, want earnings 200 rides 1", stats)
	}

	if _, _, err := e.CompleteRide(ctx, ride.ID, "c1"); !errors.Is(err, storage.ErrInvalidState) {
		t.Fatalf("second complete = %v, want ErrInvalidState", err)
	}
	c, err := store.GetCaptain(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCaptain: %v", err)
	}
	if c.Earnings != 200 || c.TotalRides != 1 {
		t.Fatalf("captain credited twice: earnings=%v rides=%d", c.Earnings, c.TotalRides)
	}

	completed := 0
	for _, ev := range cast.globalEvents() {
		if ev.Type == EventRideCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("ride_completed broadcast %d times, want 1", completed)
	}
}

func TestCancelRide_FeePolicy(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()
	seedCaptain(t, store, "c1", "go")

	request := func() *models.Ride {
		r, err := e.RequestRide(ctx, RideRequest{
			Pickup:   models.Location{Address: "A"},
			Dropoff:  models.Location{Address: "B"},
			Fare:     100,
			RideType: "go",
		})
		if err != nil {
			t.Fatalf("RequestRide: %v", err)
		}
		return r
	}

	// requested rides cancel free
	r1 := request()
	cancelled, err := e.CancelRide(ctx, r1.ID, "rider", false)
	if err != nil {
		t.Fatalf("CancelRide: %v", err)
	}
	if cancelled.CancellationFee != 0 {
		t.Fatalf("fee = %v, want 0", cancelled.CancellationFee)
	}

	// within the grace period after acceptance: still free
	r2 := request()
	if _, err := e.AcceptRide(ctx, r2.ID, "c1", "h1"); err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}
	cancelled, err = e.CancelRide(ctx, r2.ID, "rider", false)
	if err != nil {
		t.Fatalf("CancelRide: %v", err)
	}
	if cancelled.CancellationFee != 0 {
		t.Fatalf("fee inside grace = %v, want 0", cancelled.CancellationFee)
	}

	// past the grace period: fee must be acknowledged
	r3 := request()
	if _, err := e.AcceptRide(ctx, r3.ID, "c1", "h1"); err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}
	e.now = func() time.Time { return time.Now().Add(3 * time.Minute) }
	if _, err := e.CancelRide(ctx, r3.ID, "rider", false); !errors.Is(err, ErrCancelWindowClosed) {
		t.Fatalf("unacknowledged late cancel = %v, want ErrCancelWindowClosed", err)
	}
	cancelled, err = e.CancelRide(ctx, r3.ID, "rider", true)
	if err != nil {
		t.Fatalf("CancelRide: %v", err)
	}
	if cancelled.CancellationFee != e.CancellationFee {
		t.Fatalf("fee = %v, want %v", cancelled.CancellationFee, e.CancellationFee)
	}

	// terminal states reject cancellation
	if _, err := e.CancelRide(ctx, r3.ID, "rider", true); !errors.Is(err, storage.ErrInvalidState) {
		t.Fatalf("cancel of cancelled = %v, want ErrInvalidState", err)
	}
}

func TestAcceptRide_BroadcastOmitsPrivateFields(t *testing.T) {
	e, store, cast := newTestEngine(t)
	ctx := context.Background()

	seedCaptain(t, store, "c1", "go")
	if _, err := store.CreditCaptain(ctx, "c1", 1234.5); err != nil {
		t.Fatalf("CreditCaptain: %v", err)
	}

	ride, err := e.RequestRide(ctx, RideRequest{
		Pickup:   models.Location{Address: "A"},
		Dropoff:  models.Location{Address: "B"},
		Fare:     150,
		RideType: "go",
	})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}
	if _, err := e.AcceptRide(ctx, ride.ID, "c1", "h1"); err != nil {
		t.Fatalf("AcceptRide: %v", err)
	}

	var accepted *registry.Envelope
	for _, ev := range cast.globalEvents() {
		if ev.Type == EventRideAccepted {
			ev := ev
			accepted = &ev
			break
		}
	}
	if accepted == nil {
		t.Fatal("no ride_accepted broadcast")
	}

	payload, ok := accepted.Data.(map[string]any)
	if !ok {
		t.Fatalf("broadcast payload has type %T", accepted.Data)
	}
	profile, ok := payload["captain"].(models.CaptainProfile)
	if !ok {
		t.Fatalf("captain payload has type %T", payload["captain"])
	}
	if profile.Phone != "" {
		t.Errorf("broadcast leaked phone %q", profile.Phone)
	}
	if profile.Earnings != 0 {
		t.Errorf("broadcast leaked earnings %v", profile.Earnings)
	}
	if profile.Name != "Captain c1" || profile.Rating != 4.8 || profile.TotalRides != 1 {
		t.Errorf("broadcast profile missing public fields: %+v", profile)
	}
	if profile.Vehicle.Class != "go" {
		t.Errorf("broadcast profile vehicle class = %q, want go", profile.Vehicle.Class)
	}

	raw, err := json.Marshal(accepted)
	if err != nil {
		t.Fatalf("marshal broadcast: %v", err)
	}
	if strings.Contains(string(raw), "phone") || strings.Contains(string(raw), "earnings") {
		t.Errorf("serialized broadcast still carries private keys: %s", raw)
	}
}
