package animator

import "time"

// Event identifies a kind of animator notification
type Event int

const (
	EventStart Event = iota
	EventStop
	EventTick
)

// String returns the event name
func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventTick:
		return "tick"
	default:
		return "unknown"
	}
}

// OwnerID scopes listeners to the element that registered them
type OwnerID uint64

// Key identifies one listener slot
type Key struct {
	Event Event
	Owner OwnerID
}

// Listener receives notifications. For start and stop, dt is zero and now is
// the instant at the transition.
type Listener func(dt time.Duration, now int64)

type entry struct {
	key Key
	fn  Listener
}

// registry keeps listeners in registration order. Not safe for concurrent
// use; the Animator guards it.
type registry struct {
	entries []entry
}

// set registers fn under key, replacing any listener already there in place.
// A nil fn removes the key.
func (r *registry) set(key Key, fn Listener) {
	for i := range r.entries {
		if r.entries[i].key != key {
			continue
		}
		if fn == nil {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
		r.entries[i].fn = fn
		return
	}

	if fn != nil {
		r.entries = append(r.entries, entry{key: key, fn: fn})
	}
}

// removeOwner drops every listener registered by owner
func (r *registry) removeOwner(owner OwnerID) int {
	kept := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.key.Owner != owner {
			kept = append(kept, e)
		}
	}
	removed := len(r.entries) - len(kept)
	r.entries = kept
	return removed
}

// snapshot copies the listeners for one event so dispatch is unaffected by
// registrations made while it runs
func (r *registry) snapshot(ev Event) []Listener {
	var out []Listener
	for _, e := range r.entries {
		if e.key.Event == ev {
			out = append(out, e.fn)
		}
	}
	return out
}

func (r *registry) count(ev Event) int {
	n := 0
	for _, e := range r.entries {
		if e.key.Event == ev {
			n++
		}
	}
	return n
}
