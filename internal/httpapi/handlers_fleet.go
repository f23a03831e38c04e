package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/ride-marketplace/internal/fleet"
	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/storage"
)

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, fleet.RateTable())
}

func (s *Server) handleAddVehicle(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req struct {
		VehicleClass    string `json:"vehicle_class"`
		Plate           string `json:"plate"`
		DriverName      string `json:"driver_name"`
		DriverPhone     string `json:"driver_phone"`
		SeatingCapacity int    `json:"seating_capacity"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	// plates are stored uppercased so ka-55 and KA-55 hit the same
	// uniqueness constraint
	plate := strings.ToUpper(strings.TrimSpace(req.Plate))
	if req.VehicleClass == "" || plate == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "vehicle_class and plate are required"})
		return
	}
	now := time.Now().UTC()
	vehicle := &models.FleetVehicle{
		ID:              uuid.NewString(),
		OwnerID:         claims.ID,
		VehicleClass:    req.VehicleClass,
		Plate:           plate,
		DriverName:      req.DriverName,
		DriverPhone:     req.DriverPhone,
		SeatingCapacity: req.SeatingCapacity,
		Available:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Store.CreateVehicle(r.Context(), vehicle); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, vehicle)
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.VehicleFilter{
		OwnerID:      q.Get("owner_id"),
		VehicleClass: q.Get("class"),
	}
	if v := q.Get("available"); v != "" {
		avail, err := strconv.ParseBool(v)
		if err != nil {
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "available must be a boolean"})
			return
		}
		filter.Available = &avail
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	vehicles, err := s.Store.ListVehicles(r.Context(), filter)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, vehicles)
}

func (s *Server) handleVehicleAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Available bool `json:"available"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	vehicle, err := s.Store.SetVehicleAvailability(r.Context(), mux.Vars(r)["id"], req.Available)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, vehicle)
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req fleet.BookingRequest
	if !s.decode(w, r, &req) {
		return
	}
	booking, err := s.Fleet.CreateBooking(r.Context(), &req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, booking)
}

func (s *Server) handleCreateGroupBooking(w http.ResponseWriter, r *http.Request) {
	var req fleet.BookingRequest
	if !s.decode(w, r, &req) {
		return
	}
	booking, err := s.Fleet.CreateGroupBooking(r.Context(), &req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, booking)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	status := models.BookingStatus(r.URL.Query().Get("status"))
	bookings, err := s.Store.ListBookings(r.Context(), status)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, bookings)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.Store.GetBooking(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, booking)
}

func (s *Server) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.BookingStatus `json:"status"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	booking, err := s.Fleet.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, booking)
}
