package registry

import (
	"sync"
	"testing"
)

// fakeSession records sends for assertions.
type fakeSession struct {
	mu     sync.Mutex
	frames []Envelope
	closed bool
}

func (f *fakeSession) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, v.(Envelope))
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestBroadcastClass_Isolation(t *testing.T) {
	r := New()
	bike := &fakeSession{}
	auto := &fakeSession{}
	rider := &fakeSession{}
	r.Add("h-bike", bike)
	r.Add("h-auto", auto)
	r.Add("h-rider", rider)
	r.BindCaptain("h-bike", "c-bike", "bike")
	r.BindCaptain("h-auto", "c-auto", "auto")

	r.BroadcastClass("auto", Envelope{Type: "new_ride"})

	if auto.count() != 1 {
		t.Fatalf("auto captain got %d frames, want 1", auto.count())
	}
	if bike.count() != 0 {
		t.Fatalf("bike captain got %d frames, want 0", bike.count())
	}
	if rider.count() != 0 {
		t.Fatalf("unbound connection got %d frames, want 0", rider.count())
	}
}

func TestBroadcastAll(t *testing.T) {
	r := New()
	a := &fakeSession{}
	b := &fakeSession{}
	r.Add("h1", a)
	r.Add("h2", b)
	r.BindCaptain("h1", "c1", "go")

	r.BroadcastAll(Envelope{Type: "ride_accepted"})
	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("got %d/%d frames, want 1/1", a.count(), b.count())
	}
}

func TestSendTo(t *testing.T) {
	r := New()
	a := &fakeSession{}
	r.Add("h1", a)

	if err := r.SendTo("h1", Envelope{Type: "otp_shared"}); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
	if a.count() != 1 {
		t.Fatalf("got %d frames, want 1", a.count())
	}
	if err := r.SendTo("missing", Envelope{}); err != ErrNoSession {
		t.Fatalf("got %v, want ErrNoSession", err)
	}
}

func TestRemove_TearsDownCaptainState(t *testing.T) {
	r := New()
	s := &fakeSession{}
	r.Add("h1", s)
	r.BindCaptain("h1", "c1", "go")

	if id, ok := r.CaptainByHandle("h1"); !ok || id != "c1" {
		t.Fatalf("CaptainByHandle = %q/%v", id, ok)
	}
	if h, ok := r.HandleByCaptain("c1"); !ok || h != "h1" {
		t.Fatalf("HandleByCaptain = %q/%v", h, ok)
	}
	if r.OnlineCaptains() != 1 {
		t.Fatalf("online = %d, want 1", r.OnlineCaptains())
	}

	captainID, wasCaptain := r.Remove("h1")
	if !wasCaptain || captainID != "c1" {
		t.Fatalf("Remove = %q/%v, want c1/true", captainID, wasCaptain)
	}
	if _, ok := r.HandleByCaptain("c1"); ok {
		t.Fatal("captain mapping survived removal")
	}
	if r.OnlineCaptains() != 0 {
		t.Fatalf("online = %d, want 0", r.OnlineCaptains())
	}
	r.BroadcastClass("go", Envelope{Type: "new_ride"})
	if s.count() != 0 {
		t.Fatal("removed session still receives class broadcasts")
	}
}

func TestUnbind_KeepsConnection(t *testing.T) {
	r := New()
	s := &fakeSession{}
	r.Add("h1", s)
	r.BindCaptain("h1", "c1", "go")

	captainID, ok := r.Unbind("h1")
	if !ok || captainID != "c1" {
		t.Fatalf("Unbind = %q/%v, want c1/true", captainID, ok)
	}
	r.BroadcastClass("go", Envelope{Type: "new_ride"})
	if s.count() != 0 {
		t.Fatal("unbound captain still receives class broadcasts")
	}
	if err := r.SendTo("h1", Envelope{Type: "ping"}); err != nil {
		t.Fatalf("unicast after unbind: %v", err)
	}
}

func TestBindCaptain_Reconnect(t *testing.T) {
	r := New()
	old := &fakeSession{}
	fresh := &fakeSession{}
	r.Add("h-old", old)
	r.BindCaptain("h-old", "c1", "go")
	r.Add("h-new", fresh)
	r.BindCaptain("h-new", "c1", "go")

	if h, _ := r.HandleByCaptain("c1"); h != "h-new" {
		t.Fatalf("captain maps to %q, want h-new", h)
	}
	r.BroadcastClass("go", Envelope{Type: "new_ride"})
	if old.count() != 0 {
		t.Fatal("stale binding still receives class broadcasts")
	}
	if fresh.count() != 1 {
		t.Fatalf("fresh binding got %d frames, want 1", fresh.count())
	}
	if r.OnlineCaptains() != 1 {
		t.Fatalf("online = %d, want 1", r.OnlineCaptains())
	}
}

func TestBindCaptain_ReportsNewBindingsOnly(t *testing.T) {
	r := New()
	r.Add("h1", &fakeSession{})

	if r.BindCaptain("missing", "c1", "go") {
		t.Fatal("bind on unknown handle must not count as new")
	}
	if !r.BindCaptain("h1", "c1", "go") {
		t.Fatal("first bind must count as new")
	}
	if r.BindCaptain("h1", "c1", "go") {
		t.Fatal("repeated frame on the same handle must not count again")
	}

	r.Add("h2", &fakeSession{})
	if r.BindCaptain("h2", "c1", "go") {
		t.Fatal("reconnect must not count as new while the captain is still bound")
	}

	if _, ok := r.Unbind("h2"); !ok {
		t.Fatal("Unbind: captain not bound")
	}
	if !r.BindCaptain("h2", "c1", "go") {
		t.Fatal("bind after explicit offline must count as new")
	}
}
