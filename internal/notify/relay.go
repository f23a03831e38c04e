package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/observability"
	"github.com/example/ride-marketplace/internal/registry"
	"github.com/example/ride-marketplace/internal/storage"
)

// EventNotification is the websocket frame type for a live push.
const EventNotification = "notification_new"

// Relay persists notifications and pushes them to the receiver's live
// connection when one exists. Delivery is at-most-once and best-effort:
// the durable record is the source of truth, the push is a courtesy.
type Relay struct {
	mu       sync.RWMutex
	sessions map[string]registry.Session // user id -> connection

	store  storage.NotificationStore
	logger *slog.Logger
	now    func() time.Time
}

func NewRelay(store storage.NotificationStore, logger *slog.Logger) *Relay {
	return &Relay{
		sessions: make(map[string]registry.Session),
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Register maps a logical user id to its live connection.
func (r *Relay) Register(userID string, s registry.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = s
}

// Unregister drops the mapping if it still points at the given session.
// A stale disconnect must not tear down a newer connection.
func (r *Relay) Unregister(userID string, s registry.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[userID]; ok && cur == s {
		delete(r.sessions, userID)
	}
}

// Notify writes the durable record, then attempts a live push. A failed
// push is not an error; a failed write is.
func (r *Relay) Notify(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now().UTC()
	}
	if err := r.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	observability.NotificationsStored.Inc()

	r.mu.RLock()
	sess, ok := r.sessions[n.ReceiverID]
	r.mu.RUnlock()
	if ok {
		if err := sess.Send(registry.Envelope{Type: EventNotification, Data: n}); err != nil {
			r.logger.Debug("live push failed", "receiver_id", n.ReceiverID, "error", err)
		} else {
			observability.NotificationsPushed.Inc()
		}
	}
	return n, nil
}

func (r *Relay) List(ctx context.Context, receiverID string, limit int) ([]*models.Notification, error) {
	return r.store.ListNotifications(ctx, receiverID, limit)
}

func (r *Relay) CountUnread(ctx context.Context, receiverID string) (int, error) {
	return r.store.CountUnread(ctx, receiverID)
}

func (r *Relay) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	return r.store.MarkRead(ctx, id)
}

func (r *Relay) MarkAllRead(ctx context.Context, receiverID string) (int, error) {
	return r.store.MarkAllRead(ctx, receiverID)
}
