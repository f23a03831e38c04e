package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/ride-marketplace/internal/models"
)

// MemoryStore is the in-process Store used for tests and local runs.
// A single mutex serializes every conditional update, which is what makes
// the accept race and vehicle claim atomic here.
type MemoryStore struct {
	mu            sync.RWMutex
	rides         map[string]*models.Ride
	captains      map[string]*models.Captain
	riders        map[string]*models.Rider
	owners        map[string]*models.FleetOwner
	vehicles      map[string]*models.FleetVehicle
	bookings      map[string]*models.FleetBooking
	notifications map[string]*models.Notification
	notifOrder    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:         make(map[string]*models.Ride),
		captains:      make(map[string]*models.Captain),
		riders:        make(map[string]*models.Rider),
		owners:        make(map[string]*models.FleetOwner),
		vehicles:      make(map[string]*models.FleetVehicle),
		bookings:      make(map[string]*models.FleetBooking),
		notifications: make(map[string]*models.Notification),
	}
}

func cloneRide(r *models.Ride) *models.Ride {
	cp := *r
	return &cp
}

func cloneCaptain(c *models.Captain) *models.Captain {
	cp := *c
	return &cp
}

// ── rides ──

func (m *MemoryStore) CreateRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	m.rides[r.ID] = cloneRide(r)
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRide(r), nil
}

func (m *MemoryStore) AcceptRide(ctx context.Context, rideID, captainID, handle string) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != models.RideRequested {
		return nil, ErrRideTaken
	}
	now := time.Now()
	r.Status = models.RideAccepted
	r.CaptainID = captainID
	r.CaptainHandle = handle
	r.AcceptedAt = &now
	r.UpdatedAt = now
	return cloneRide(r), nil
}

func (m *MemoryStore) CompleteRide(ctx context.Context, rideID, captainID string) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != models.RideAccepted || r.CaptainID != captainID {
		return nil, ErrInvalidState
	}
	r.Status = models.RideCompleted
	r.UpdatedAt = time.Now()
	return cloneRide(r), nil
}

func (m *MemoryStore) CancelRide(ctx context.Context, rideID, cancelledBy string, fee float64) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != models.RideRequested && r.Status != models.RideAccepted {
		return nil, ErrInvalidState
	}
	r.Status = models.RideCancelled
	r.CancelledBy = cancelledBy
	r.CancellationFee = fee
	r.UpdatedAt = time.Now()
	return cloneRide(r), nil
}

// ── captains ──

func (m *MemoryStore) CreateCaptain(ctx context.Context, c *models.Captain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.captains {
		if existing.Phone == c.Phone {
			return ErrDuplicate
		}
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.captains[c.ID] = cloneCaptain(c)
	return nil
}

func (m *MemoryStore) GetCaptain(ctx context.Context, id string) (*models.Captain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.captains[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCaptain(c), nil
}

func (m *MemoryStore) GetCaptainByPhone(ctx context.Context, phone string) (*models.Captain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.captains {
		if c.Phone == phone {
			return cloneCaptain(c), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SetCaptainPresence(ctx context.Context, id, handle string, online bool) (*models.Captain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captains[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Handle = handle
	c.Online = online
	c.UpdatedAt = time.Now()
	return cloneCaptain(c), nil
}

func (m *MemoryStore) ClearCaptainByHandle(ctx context.Context, handle string) (*models.Captain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.captains {
		if c.Handle == handle {
			c.Handle = ""
			c.Online = false
			c.UpdatedAt = time.Now()
			return cloneCaptain(c), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreditCaptain(ctx context.Context, id string, fare float64) (*models.Captain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captains[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Earnings += fare
	c.TotalRides++
	c.UpdatedAt = time.Now()
	return cloneCaptain(c), nil
}

func (m *MemoryStore) ListOnlineCaptains(ctx context.Context, limit int) ([]*models.Captain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Captain, 0, limit)
	ids := make([]string, 0, len(m.captains))
	for id := range m.captains {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic pool order
	for _, id := range ids {
		c := m.captains[id]
		if !c.Online {
			continue
		}
		out = append(out, cloneCaptain(c))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ── riders ──

func (m *MemoryStore) CreateRider(ctx context.Context, r *models.Rider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.riders {
		if existing.Phone == r.Phone {
			return ErrDuplicate
		}
	}
	r.CreatedAt = time.Now()
	cp := *r
	m.riders[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRiderByPhone(ctx context.Context, phone string) (*models.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.riders {
		if r.Phone == phone {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ── fleet owners ──

func (m *MemoryStore) CreateOwner(ctx context.Context, o *models.FleetOwner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.owners {
		if existing.Phone == o.Phone || strings.EqualFold(existing.Email, o.Email) {
			return ErrDuplicate
		}
	}
	o.CreatedAt = time.Now()
	cp := *o
	m.owners[o.ID] = &cp
	return nil
}

func (m *MemoryStore) GetOwner(ctx context.Context, id string) (*models.FleetOwner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) GetOwnerByEmail(ctx context.Context, email string) (*models.FleetOwner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.owners {
		if strings.EqualFold(o.Email, email) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetOwnerByPhone(ctx context.Context, phone string) (*models.FleetOwner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.owners {
		if o.Phone == phone {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ── fleet vehicles ──

func (m *MemoryStore) CreateVehicle(ctx context.Context, v *models.FleetVehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.vehicles {
		if existing.Plate == v.Plate {
			return ErrDuplicate
		}
	}
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now
	cp := *v
	m.vehicles[v.ID] = &cp
	return nil
}

func (m *MemoryStore) GetVehicle(ctx context.Context, id string) (*models.FleetVehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) GetVehicleByPlate(ctx context.Context, plate string) (*models.FleetVehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.vehicles {
		if v.Plate == plate {
			cp := *v
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListVehicles(ctx context.Context, f VehicleFilter) ([]*models.FleetVehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.vehicles))
	for id := range m.vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []*models.FleetVehicle
	for _, id := range ids {
		v := m.vehicles[id]
		if f.OwnerID != "" && v.OwnerID != f.OwnerID {
			continue
		}
		if f.VehicleClass != "" && v.VehicleClass != f.VehicleClass {
			continue
		}
		if f.Available != nil && v.Available != *f.Available {
			continue
		}
		cp := *v
		out = append(out, &cp)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) SetVehicleAvailability(ctx context.Context, id string, available bool) (*models.FleetVehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	v.Available = available
	v.UpdatedAt = time.Now()
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) ClaimVehicle(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return ErrNotFound
	}
	if !v.Available {
		return ErrVehicleUnavailable
	}
	v.Available = false
	v.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ReleaseVehicle(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return ErrNotFound
	}
	v.Available = true
	v.UpdatedAt = time.Now()
	return nil
}

// ── fleet bookings ──

func (m *MemoryStore) CreateBooking(ctx context.Context, b *models.FleetBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, id string) (*models.FleetBooking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) ListBookings(ctx context.Context, status models.BookingStatus) ([]*models.FleetBooking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.FleetBooking
	for _, b := range m.bookings {
		if status != "" && b.Status != status {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) (*models.FleetBooking, models.BookingStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	prev := b.Status
	b.Status = status
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, prev, nil
}

// ── notifications ──

func (m *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.CreatedAt = time.Now()
	cp := *n
	m.notifications[n.ID] = &cp
	m.notifOrder = append(m.notifOrder, n.ID)
	return nil
}

func (m *MemoryStore) ListNotifications(ctx context.Context, receiverID string, limit int) ([]*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Notification
	// newest first
	for i := len(m.notifOrder) - 1; i >= 0; i-- {
		n := m.notifications[m.notifOrder[i]]
		if n.ReceiverID != receiverID {
			continue
		}
		cp := *n
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) CountUnread(ctx context.Context, receiverID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, n := range m.notifications {
		if n.ReceiverID == receiverID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	n.Read = true
	cp := *n
	return &cp, nil
}

func (m *MemoryStore) MarkAllRead(ctx context.Context, receiverID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if n.ReceiverID == receiverID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}
