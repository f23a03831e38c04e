package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/ride-marketplace/internal/auth"
	"github.com/example/ride-marketplace/internal/matching"
	"github.com/example/ride-marketplace/internal/observability"
	"github.com/example/ride-marketplace/internal/registry"
	"github.com/example/ride-marketplace/internal/storage"
)

// Client-to-server websocket event types.
const (
	eventCaptainOnline  = "captain_online"
	eventCaptainOffline = "captain_offline"
	eventNewRideRequest = "new_ride_request"
	eventAcceptRide     = "accept_ride"
	eventCompleteRide   = "complete_ride"
	eventCancelRide     = "cancel_ride"
	eventShareOTP       = "share_otp"
	eventNotifyRegister = "notification_register"
)

// Server-to-client acks outside the matching vocabulary.
const (
	eventCaptainProfile = "captain_profile"
	eventRideRequested  = "ride_requested"
	eventOTPShared      = "otp_shared"
	eventError          = "error"
)

const wsOpTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wsConn is the per-connection state for the event loop.
type wsConn struct {
	handle  string
	sess    *registry.WSSession
	relayID string // set by notification_register, cleared on close
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsConn{handle: uuid.NewString(), sess: registry.NewWSSession(conn)}
	s.Registry.Add(c.handle, c.sess)
	s.logger.Info("connection opened", "handle", c.handle, "remote_addr", remoteIP(r))

	defer s.teardown(c)
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("connection read failed", "handle", c.handle, "error", err)
			}
			return
		}
		s.dispatch(c, frame)
	}
}

// teardown runs on every disconnect path, voluntary or not. A captain
// who drops without going offline is still marked offline here.
func (s *Server) teardown(c *wsConn) {
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	captainID, wasCaptain := s.Registry.Remove(c.handle)
	if wasCaptain {
		s.captainOffline(ctx, captainID)
	}
	if c.relayID != "" {
		s.Relay.Unregister(c.relayID, c.sess)
	}
	_ = c.sess.Close()
	s.logger.Info("connection closed", "handle", c.handle)
}

func (s *Server) captainOffline(ctx context.Context, captainID string) {
	if _, err := s.Store.SetCaptainPresence(ctx, captainID, "", false); err != nil {
		s.logger.Error("captain offline update failed", "captain_id", captainID, "error", err)
	}
	s.Presence.SetOffline(ctx, captainID)
	observability.CaptainsOnline.Dec()
	s.logger.Info("captain offline", "captain_id", captainID)
}

func (s *Server) dispatch(c *wsConn, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	switch frame.Type {
	case eventCaptainOnline:
		s.wsCaptainOnline(ctx, c, frame.Data)
	case eventCaptainOffline:
		if captainID, ok := s.Registry.Unbind(c.handle); ok {
			s.captainOffline(ctx, captainID)
		}
	case eventNewRideRequest:
		s.wsRequestRide(ctx, c, frame.Data)
	case eventAcceptRide:
		s.wsAcceptRide(ctx, c, frame.Data)
	case eventCompleteRide:
		s.wsCompleteRide(ctx, c, frame.Data)
	case eventCancelRide:
		s.wsCancelRide(ctx, c, frame.Data)
	case eventShareOTP:
		s.wsShareOTP(ctx, c, frame.Data)
	case eventNotifyRegister:
		s.wsNotifyRegister(c, frame.Data)
	default:
		s.sendError(c, frame.Type, errors.New("unknown event type"))
	}
}

func (s *Server) wsCaptainOnline(ctx context.Context, c *wsConn, data json.RawMessage) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(c, eventCaptainOnline, errors.New("invalid payload"))
		return
	}
	claims, err := s.Auth.Verify(req.Token)
	if err != nil {
		s.sendError(c, eventCaptainOnline, err)
		return
	}
	if claims.Role != auth.RoleCaptain {
		s.sendError(c, eventCaptainOnline, errors.New("captain token required"))
		return
	}
	captain, err := s.Store.SetCaptainPresence(ctx, claims.ID, c.handle, true)
	if err != nil {
		s.sendError(c, eventCaptainOnline, err)
		return
	}
	newlyBound := s.Registry.BindCaptain(c.handle, captain.ID, captain.Vehicle.Class)
	s.Presence.SetOnline(ctx, captain.ID, c.handle, captain.Vehicle.Class)
	if newlyBound {
		observability.CaptainsOnline.Inc()
	}
	s.logger.Info("captain online", "captain_id", captain.ID, "class", captain.Vehicle.Class)
	s.send(c, registry.Envelope{Type: eventCaptainProfile, Data: captain.Profile()})
}

func (s *Server) wsRequestRide(ctx context.Context, c *wsConn, data json.RawMessage) {
	var req matching.RideRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(c, eventNewRideRequest, errors.New("invalid payload"))
		return
	}
	ride, err := s.Matching.RequestRide(ctx, req)
	if err != nil {
		s.sendError(c, eventNewRideRequest, err)
		return
	}
	s.send(c, registry.Envelope{Type: eventRideRequested, Data: ride})
}

func (s *Server) wsAcceptRide(ctx context.Context, c *wsConn, data json.RawMessage) {
	var req struct {
		RideID string `json:"ride_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(c, eventAcceptRide, errors.New("invalid payload"))
		return
	}
	captainID, ok := s.Registry.CaptainByHandle(c.handle)
	if !ok {
		s.sendError(c, eventAcceptRide, errors.New("captain is not online"))
		return
	}
	_, err := s.Matching.AcceptRide(ctx, req.RideID, captainID, c.handle)
	if errors.Is(err, storage.ErrRideTaken) {
		s.send(c, registry.Envelope{Type: matching.EventRideTaken, Data: map[string]string{"ride_id": req.RideID}})
		return
	}
	if err != nil {
		s.sendError(c, eventAcceptRide, err)
		return
	}
	// success is announced by the engine's broadcast
}

func (s *Server) wsCompleteRide(ctx context.Context, c *wsConn, data json.RawMessage) {
	var req struct {
		RideID string `json:"ride_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(c, eventCompleteRide, errors.New("invalid payload"))
		return
	}
	captainID, ok := s.Registry.CaptainByHandle(c.handle)
	if !ok {
		s.sendError(c, eventCompleteRide, errors.New("captain is not online"))
		return
	}
	_, stats, err := s.Matching.CompleteRide(ctx, req.RideID, captainID)
	if err != nil {
		s.sendError(c, eventCompleteRide, err)
		return
	}
	if stats != nil {
		s.send(c, registry.Envelope{Type: matching.EventStatsUpdated, Data: stats})
	}
}

func (s *Server) wsCancelRide(ctx context.Context, c *wsConn, data json.RawMessage) {
	var req struct {
		RideID         string `json:"ride_id"`
		AcknowledgeFee bool   `json:"acknowledge_fee"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(c, eventCancelRide, errors.New("invalid payload"))
		return
	}
	cancelledBy := "rider"
	if _, ok := s.Registry.CaptainByHandle(c.handle); ok {
		cancelledBy = "captain"
	}
	if _, err := s.Matching.CancelRide(ctx, req.RideID, cancelledBy, req.AcknowledgeFee); err != nil {
		s.sendError(c, eventCancelRide, err)
	}
}

// wsShareOTP relays the rider's trip code to the accepting captain's
// connection. The target handle comes from the ride record, never from
// the client payload.
func (s *Server) wsShareOTP(ctx context.Context, c *wsConn, data json.RawMessage) {
	var req struct {
		RideID string `json:"ride_id"`
		OTP    string `json:"otp"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(c, eventShareOTP, errors.New("invalid payload"))
		return
	}
	ride, err := s.Matching.GetRide(ctx, req.RideID)
	if err != nil {
		s.sendError(c, eventShareOTP, err)
		return
	}
	if ride.CaptainHandle == "" {
		s.sendError(c, eventShareOTP, errors.New("ride has no captain attached"))
		return
	}
	payload := map[string]string{"ride_id": ride.ID, "otp": req.OTP}
	if err := s.Registry.SendTo(ride.CaptainHandle, registry.Envelope{Type: eventOTPShared, Data: payload}); err != nil {
		s.sendError(c, eventShareOTP, errors.New("captain is not reachable"))
	}
}

func (s *Server) wsNotifyRegister(c *wsConn, data json.RawMessage) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(c, eventNotifyRegister, errors.New("invalid payload"))
		return
	}
	claims, err := s.Auth.Verify(req.Token)
	if err != nil {
		s.sendError(c, eventNotifyRegister, err)
		return
	}
	c.relayID = claims.ID
	s.Relay.Register(claims.ID, c.sess)
}

func (s *Server) send(c *wsConn, env registry.Envelope) {
	if err := c.sess.Send(env); err != nil {
		s.logger.Debug("websocket send failed", "handle", c.handle, "type", env.Type, "error", err)
	}
}

func (s *Server) sendError(c *wsConn, ref string, err error) {
	s.send(c, registry.Envelope{Type: eventError, Data: map[string]string{"ref": ref, "message": err.Error()}})
}
