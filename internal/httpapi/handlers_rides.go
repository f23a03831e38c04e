package httpapi

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/ride-marketplace/internal/geo"
	"github.com/example/ride-marketplace/internal/models"
)

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Matching.GetRide(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ride)
}

// handleFareEstimate prices a prospective ride without creating one.
func (s *Server) handleFareEstimate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pickup  models.Location `json:"pickup"`
		Dropoff models.Location `json:"dropoff"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	km := geo.EstimateKm(s.Routes, req.Pickup, req.Dropoff)
	fare := math.Round(km*s.Matching.PerKmRate*100) / 100
	s.respondJSON(w, http.StatusOK, map[string]any{
		"distance_km": math.Round(km*100) / 100,
		"fare":        fare,
	})
}

func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req struct {
		ReceiverID string `json:"receiver_id"`
		Type       string `json:"type"`
		RideID     string `json:"ride_id"`
		Message    string `json:"message"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.ReceiverID == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "receiver_id is required"})
		return
	}
	n := &models.Notification{
		SenderID:   claims.ID,
		ReceiverID: req.ReceiverID,
		Type:       req.Type,
		RideID:     req.RideID,
		Message:    req.Message,
	}
	created, err := s.Relay.Notify(r.Context(), n)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	list, err := s.Relay.List(r.Context(), claims.ID, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	count, err := s.Relay.CountUnread(r.Context(), claims.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.Relay.MarkRead(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, n)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	updated, err := s.Relay.MarkAllRead(r.Context(), claims.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}
