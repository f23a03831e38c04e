package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-marketplace/internal/auth"
	"github.com/example/ride-marketplace/internal/fleet"
	"github.com/example/ride-marketplace/internal/geo"
	"github.com/example/ride-marketplace/internal/matching"
	"github.com/example/ride-marketplace/internal/notify"
	"github.com/example/ride-marketplace/internal/registry"
	"github.com/example/ride-marketplace/internal/storage"
)

// Server wires the HTTP and websocket surface over the domain engines.
type Server struct {
	Auth     *auth.Service
	Matching *matching.Engine
	Fleet    *fleet.Engine
	Relay    *notify.Relay
	Registry *registry.Registry
	Presence *registry.Presence
	Store    storage.Store
	Routes   geo.Estimator

	logger *slog.Logger
	mux    *mux.Router
}

// Deps carries everything the server needs. Presence may be nil.
type Deps struct {
	Auth     *auth.Service
	Matching *matching.Engine
	Fleet    *fleet.Engine
	Relay    *notify.Relay
	Registry *registry.Registry
	Presence *registry.Presence
	Store    storage.Store
	Routes   geo.Estimator
	Logger   *slog.Logger
}

func NewServer(d Deps) *Server {
	s := &Server{
		Auth:     d.Auth,
		Matching: d.Matching,
		Fleet:    d.Fleet,
		Relay:    d.Relay,
		Registry: d.Registry,
		Presence: d.Presence,
		Store:    d.Store,
		Routes:   d.Routes,
		logger:   d.Logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/riders/login", s.handleRiderLogin).Methods("POST")
	api.HandleFunc("/captains/register", s.handleCaptainRegister).Methods("POST")
	api.HandleFunc("/captains/login", s.handleCaptainLogin).Methods("POST")
	api.HandleFunc("/captains/{id}", s.handleCaptainProfile).Methods("GET")

	api.HandleFunc("/rides/estimate", s.handleFareEstimate).Methods("POST")
	api.HandleFunc("/rides/{id}", s.handleGetRide).Methods("GET")

	api.HandleFunc("/fleet/owners/register", s.handleOwnerRegister).Methods("POST")
	api.HandleFunc("/fleet/owners/login", s.handleOwnerLogin).Methods("POST")
	api.HandleFunc("/fleet/rates", s.handleRates).Methods("GET")
	api.Handle("/fleet/vehicles", s.requireAuth(s.handleAddVehicle, auth.RoleFleetOwner)).Methods("POST")
	api.HandleFunc("/fleet/vehicles", s.handleListVehicles).Methods("GET")
	api.Handle("/fleet/vehicles/{id}/availability", s.requireAuth(s.handleVehicleAvailability, auth.RoleFleetOwner)).Methods("PATCH")
	api.HandleFunc("/fleet/bookings", s.handleCreateBooking).Methods("POST")
	api.HandleFunc("/fleet/bookings/group", s.handleCreateGroupBooking).Methods("POST")
	api.HandleFunc("/fleet/bookings", s.handleListBookings).Methods("GET")
	api.HandleFunc("/fleet/bookings/{id}", s.handleGetBooking).Methods("GET")
	api.HandleFunc("/fleet/bookings/{id}/status", s.handleBookingStatus).Methods("PATCH")

	api.Handle("/notifications", s.requireAuth(s.handleCreateNotification)).Methods("POST")
	api.Handle("/notifications", s.requireAuth(s.handleListNotifications)).Methods("GET")
	api.Handle("/notifications/unread_count", s.requireAuth(s.handleUnreadCount)).Methods("GET")
	api.Handle("/notifications/{id}/read", s.requireAuth(s.handleMarkRead)).Methods("POST")
	api.Handle("/notifications/read_all", s.requireAuth(s.handleMarkAllRead)).Methods("POST")

	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			s.logger.Error("response encode failed", "error", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	s.respondJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the error taxonomy onto HTTP statuses. Lost races and
// exhausted pools are conflicts, not server faults.
func statusFor(err error) int {
	var fv *fleet.ValidationError
	var mv *matching.ValidationError
	switch {
	case errors.As(err, &fv), errors.As(err, &mv):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrRideTaken),
		errors.Is(err, storage.ErrInvalidState),
		errors.Is(err, storage.ErrVehicleUnavailable),
		errors.Is(err, storage.ErrDuplicate),
		errors.Is(err, fleet.ErrNoDriverAvailable),
		errors.Is(err, fleet.ErrNoVehicleAvailable),
		errors.Is(err, matching.ErrCancelWindowClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return false
	}
	return true
}
