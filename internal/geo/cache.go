package geo

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/ride-marketplace/internal/models"
)

// Cache is a tiny in-memory TTL cache wrapping an Estimator, keyed by
// coordinate pair. Route shapes barely change within the TTL, so repeated
// fare estimates for popular corridors skip the routing call.
type Cache struct {
	next  Estimator
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  float64
	ts time.Time
}

func NewCache(next Estimator, ttl time.Duration) *Cache {
	return &Cache{next: next, store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Location) string {
	return fmt.Sprintf("%.6f,%.6f->%.6f,%.6f", a.Lat, a.Lng, b.Lat, b.Lng)
}

func (c *Cache) DistanceKm(from, to models.Location) (float64, error) {
	k := keyFor(from, to)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if ok && time.Since(e.ts) <= c.ttl {
		return e.v, nil
	}
	v, err := c.next.DistanceKm(from, to)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
	return v, nil
}
