package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceKeyPrefix = "presence:captain:"

// Presence mirrors captain online state into Redis so sidecars and
// dashboards can read it without touching the primary store. All
// operations are best-effort: a Redis outage must never break matching.
type Presence struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func NewPresence(client *redis.Client, logger *slog.Logger) *Presence {
	return &Presence{client: client, logger: logger, ttl: 24 * time.Hour}
}

func (p *Presence) SetOnline(ctx context.Context, captainID, handle, class string) {
	if p == nil || p.client == nil {
		return
	}
	key := presenceKeyPrefix + captainID
	fields := map[string]any{
		"handle": handle,
		"class":  class,
		"since":  time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.client.HSet(ctx, key, fields).Err(); err != nil {
		p.logger.Warn("presence mirror write failed", "captain_id", captainID, "error", err)
		return
	}
	if err := p.client.Expire(ctx, key, p.ttl).Err(); err != nil {
		p.logger.Warn("presence mirror expire failed", "captain_id", captainID, "error", err)
	}
}

func (p *Presence) SetOffline(ctx context.Context, captainID string) {
	if p == nil || p.client == nil {
		return
	}
	if err := p.client.Del(ctx, presenceKeyPrefix+captainID).Err(); err != nil {
		p.logger.Warn("presence mirror delete failed", "captain_id", captainID, "error", err)
	}
}
