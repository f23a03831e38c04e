package geo

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/ride-marketplace/internal/models"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// central Bengaluru, roughly 7.8 km apart by great circle
	d := Haversine(12.90, 77.60, 12.95, 77.65)
	km := d / 1000
	if km < 7 || km > 9 {
		t.Fatalf("distance = %.2f km, want ~7.8", km)
	}
	if Haversine(12.90, 77.60, 12.90, 77.60) != 0 {
		t.Fatal("zero distance expected for identical points")
	}
}

type stubEstimator struct {
	km  float64
	err error
}

func (s stubEstimator) DistanceKm(from, to models.Location) (float64, error) {
	return s.km, s.err
}

func TestEstimateKm(t *testing.T) {
	a := models.Location{Lat: 12.90, Lng: 77.60}
	b := models.Location{Lat: 12.95, Lng: 77.65}

	if got := EstimateKm(stubEstimator{km: 9.5}, a, b); got != 9.5 {
		t.Fatalf("routing distance = %v, want 9.5", got)
	}

	// routing failure falls back to great circle
	got := EstimateKm(stubEstimator{err: errors.New("down")}, a, b)
	want := Haversine(a.Lat, a.Lng, b.Lat, b.Lng) / 1000
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("fallback = %v, want %v", got, want)
	}

	// degenerate input uses the fixed estimate
	zero := models.Location{}
	if got := EstimateKm(nil, zero, zero); got != FallbackDistanceKm {
		t.Fatalf("degenerate estimate = %v, want %v", got, FallbackDistanceKm)
	}
}

func TestCache_ServesRepeatLookups(t *testing.T) {
	calls := 0
	inner := estimatorFunc(func(from, to models.Location) (float64, error) {
		calls++
		return 12.0, nil
	})
	c := NewCache(inner, time.Minute)

	a := models.Location{Lat: 1, Lng: 2}
	b := models.Location{Lat: 3, Lng: 4}
	for i := 0; i < 3; i++ {
		km, err := c.DistanceKm(a, b)
		if err != nil || km != 12.0 {
			t.Fatalf("DistanceKm = %v/%v", km, err)
		}
	}
	if calls != 1 {
		t.Fatalf("inner estimator called %d times, want 1", calls)
	}
}

type estimatorFunc func(from, to models.Location) (float64, error)

func (f estimatorFunc) DistanceKm(from, to models.Location) (float64, error) { return f(from, to) }
