package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/ride-marketplace/internal/auth"
	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/storage"
)

type tokenResponse struct {
	Token string `json:"token"`
	ID    string `json:"id"`
	Role  string `json:"role"`
}

// Riders are phone-first: login finds or creates the account and
// issues a token. No password on rider accounts.
func (s *Server) handleRiderLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Phone == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "phone is required"})
		return
	}
	rider, err := s.Store.GetRiderByPhone(r.Context(), req.Phone)
	if errors.Is(err, storage.ErrNotFound) {
		rider = &models.Rider{ID: uuid.NewString(), Name: req.Name, Phone: req.Phone, CreatedAt: time.Now().UTC()}
		err = s.Store.CreateRider(r.Context(), rider)
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	token, err := s.Auth.Sign(rider.ID, auth.RoleRider)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, tokenResponse{Token: token, ID: rider.ID, Role: auth.RoleRider})
}

func (s *Server) handleCaptainRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string         `json:"name"`
		Phone    string         `json:"phone"`
		Password string         `json:"password"`
		Vehicle  models.Vehicle `json:"vehicle"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Phone == "" || req.Password == "" || req.Vehicle.Class == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "name, phone, password and vehicle.class are required"})
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(w, err)
		return
	}
	now := time.Now().UTC()
	captain := &models.Captain{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Phone:        req.Phone,
		PasswordHash: hash,
		Vehicle:      req.Vehicle,
		Rating:       5.0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.CreateCaptain(r.Context(), captain); err != nil {
		s.respondError(w, err)
		return
	}
	token, err := s.Auth.Sign(captain.ID, auth.RoleCaptain)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, tokenResponse{Token: token, ID: captain.ID, Role: auth.RoleCaptain})
}

func (s *Server) handleCaptainLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	captain, err := s.Store.GetCaptainByPhone(r.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = auth.ErrInvalidCredentials
		}
		s.respondError(w, err)
		return
	}
	if !auth.CheckPassword(req.Password, captain.PasswordHash) {
		s.respondError(w, auth.ErrInvalidCredentials)
		return
	}
	token, err := s.Auth.Sign(captain.ID, auth.RoleCaptain)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, tokenResponse{Token: token, ID: captain.ID, Role: auth.RoleCaptain})
}

func (s *Server) handleCaptainProfile(w http.ResponseWriter, r *http.Request) {
	captain, err := s.Store.GetCaptain(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, captain.BroadcastProfile())
}

func (s *Server) handleOwnerRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerName   string `json:"owner_name"`
		CompanyName string `json:"company_name"`
		Phone       string `json:"phone"`
		Email       string `json:"email"`
		Address     string `json:"address"`
		Password    string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.OwnerName == "" || req.Phone == "" || req.Email == "" || req.Password == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "owner_name, phone, email and password are required"})
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(w, err)
		return
	}
	owner := &models.FleetOwner{
		ID:           uuid.NewString(),
		OwnerName:    req.OwnerName,
		CompanyName:  req.CompanyName,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Store.CreateOwner(r.Context(), owner); err != nil {
		s.respondError(w, err)
		return
	}
	token, err := s.Auth.Sign(owner.ID, auth.RoleFleetOwner)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, tokenResponse{Token: token, ID: owner.ID, Role: auth.RoleFleetOwner})
}

func (s *Server) handleOwnerLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	owner, err := s.Store.GetOwnerByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = auth.ErrInvalidCredentials
		}
		s.respondError(w, err)
		return
	}
	if !auth.CheckPassword(req.Password, owner.PasswordHash) {
		s.respondError(w, auth.ErrInvalidCredentials)
		return
	}
	token, err := s.Auth.Sign(owner.ID, auth.RoleFleetOwner)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, tokenResponse{Token: token, ID: owner.ID, Role: auth.RoleFleetOwner})
}
