package registry

import (
	"errors"
	"sync"
)

// ErrNoSession is returned when a unicast target has no live connection.
var ErrNoSession = errors.New("no session for handle")

// Session is one live connection. Implementations must be safe for
// concurrent Send calls.
type Session interface {
	Send(v any) error
	Close() error
}

type entry struct {
	sess      Session
	captainID string
	class     string
}

// Registry is the process-wide connection registry: it maps connection
// handles to sessions, binds online captains to their vehicle-class
// channel, and routes unicast/class/global broadcasts. All lookups are
// O(1); Remove is called on every disconnect, explicit or not.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry              // handle -> connection
	byClass  map[string]map[string]struct{} // vehicle class -> handles
	captains map[string]string              // captain id -> handle
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		byClass:  make(map[string]map[string]struct{}),
		captains: make(map[string]string),
	}
}

// Add tracks a newly connected session under its handle.
func (r *Registry) Add(handle string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[handle] = &entry{sess: s}
}

// BindCaptain marks the connection as an online captain and joins it to
// the broadcast channel for its vehicle class. Every ride broadcast for
// that class reaches this captain until the connection goes away. The
// return value reports whether the captain was not bound anywhere
// before, so callers can keep online accounting exact across
// reconnects and repeated frames.
func (r *Registry) BindCaptain(handle, captainID, class string) (newlyBound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[handle]
	if !ok {
		return false
	}
	prev, rebound := r.captains[captainID]
	// a reconnecting captain may still have a stale binding
	if rebound && prev != handle {
		r.unbindLocked(prev)
	}
	e.captainID = captainID
	e.class = class
	r.captains[captainID] = handle
	set, ok := r.byClass[class]
	if !ok {
		set = make(map[string]struct{})
		r.byClass[class] = set
	}
	set[handle] = struct{}{}
	return !rebound
}

// Remove tears down the connection's state. It returns the captain id
// bound to the handle, if any, so callers can persist the offline flag.
func (r *Registry) Remove(handle string) (captainID string, wasCaptain bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[handle]
	if !ok {
		return "", false
	}
	captainID = e.captainID
	r.unbindLocked(handle)
	delete(r.sessions, handle)
	return captainID, captainID != ""
}

// Unbind takes a captain offline without dropping the connection. The
// session stays tracked for unicast and global broadcast.
func (r *Registry) Unbind(handle string) (captainID string, wasCaptain bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[handle]
	if !ok || e.captainID == "" {
		return "", false
	}
	captainID = e.captainID
	r.unbindLocked(handle)
	return captainID, true
}

func (r *Registry) unbindLocked(handle string) {
	e, ok := r.sessions[handle]
	if !ok {
		return
	}
	if e.class != "" {
		if set, ok := r.byClass[e.class]; ok {
			delete(set, handle)
			if len(set) == 0 {
				delete(r.byClass, e.class)
			}
		}
	}
	if e.captainID != "" {
		if h, ok := r.captains[e.captainID]; ok && h == handle {
			delete(r.captains, e.captainID)
		}
	}
	e.captainID = ""
	e.class = ""
}

// CaptainByHandle resolves the captain bound to a connection.
func (r *Registry) CaptainByHandle(handle string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[handle]
	if !ok || e.captainID == "" {
		return "", false
	}
	return e.captainID, true
}

// HandleByCaptain resolves a captain's current connection handle.
func (r *Registry) HandleByCaptain(captainID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.captains[captainID]
	return h, ok
}

// SendTo unicasts to one connection.
func (r *Registry) SendTo(handle string, v any) error {
	r.mu.RLock()
	e, ok := r.sessions[handle]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return e.sess.Send(v)
}

// BroadcastClass sends to every captain subscribed under the vehicle
// class. Connections outside the class are never touched.
func (r *Registry) BroadcastClass(class string, v any) {
	r.mu.RLock()
	handles := make([]Session, 0, len(r.byClass[class]))
	for h := range r.byClass[class] {
		if e, ok := r.sessions[h]; ok {
			handles = append(handles, e.sess)
		}
	}
	r.mu.RUnlock()
	for _, s := range handles {
		_ = s.Send(v) // best-effort fan-out
	}
}

// BroadcastAll sends to every live connection.
func (r *Registry) BroadcastAll(v any) {
	r.mu.RLock()
	all := make([]Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		all = append(all, e.sess)
	}
	r.mu.RUnlock()
	for _, s := range all {
		_ = s.Send(v)
	}
}

// OnlineCaptains reports the number of bound captains.
func (r *Registry) OnlineCaptains() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.captains)
}
