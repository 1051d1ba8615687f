// Package session holds the authenticated identity and loaded profile for a
// caller. A Context moves through Absent -> Loading -> Ready and back to Absent
// on sign-out; observers are notified on every transition.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/enum"
)

// State is the lifecycle position of a Context.
type State int

const (
	StateAbsent State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "absent"
	}
}

// Profile is the part of a profile row the routing and page logic needs.
type Profile struct {
	ID             uuid.UUID     `json:"id"`
	Email          string        `json:"email"`
	FullName       string        `json:"full_name"`
	Role           enum.Role     `json:"role"`
	RestaurantID   uuid.NullUUID `json:"restaurant_id"`
	OrganizationID uuid.NullUUID `json:"organization_id"`
	Activated      bool          `json:"account_activated"`
}

// ProfileFromRow converts a stored profile.
func ProfileFromRow(p database.Profile) Profile {
	return Profile{
		ID:             p.ID,
		Email:          p.Email,
		FullName:       p.FullName,
		Role:           enum.Role(p.Role),
		RestaurantID:   uuid.NullUUID{UUID: p.RestaurantID.Bytes, Valid: p.RestaurantID.Valid},
		OrganizationID: uuid.NullUUID{UUID: p.OrganizationID.Bytes, Valid: p.OrganizationID.Valid},
		Activated:      p.AccountActivated,
	}
}

// Snapshot is an immutable view of a Context. Generation increases every time
// a profile is loaded, so observers can tell two loads of the same profile apart.
type Snapshot struct {
	State      State
	UserID     uuid.UUID
	Profile    *Profile
	Generation uint64
}

// Context is the observable session state.
type Context struct {
	mu        sync.Mutex
	snap      Snapshot
	observers map[int]func(Snapshot)
	nextID    int
}

func New() *Context {
	return &Context{observers: make(map[int]func(Snapshot))}
}

// Establish records the authenticated identity and moves to Loading until
// SetProfile is called.
func (c *Context) Establish(userID uuid.UUID) {
	c.update(func(s *Snapshot) {
		s.State = StateLoading
		s.UserID = userID
		s.Profile = nil
	})
}

// SetProfile completes the load started by Establish.
func (c *Context) SetProfile(p Profile) {
	c.update(func(s *Snapshot) {
		s.State = StateReady
		s.UserID = p.ID
		s.Profile = &p
		s.Generation++
	})
}

// Clear signs the session out.
func (c *Context) Clear() {
	c.update(func(s *Snapshot) {
		s.State = StateAbsent
		s.UserID = uuid.Nil
		s.Profile = nil
	})
}

// Snapshot returns the current state.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Profile returns the loaded profile, or false while absent or loading.
func (c *Context) Profile() (Profile, bool) {
	s := c.Snapshot()
	if s.State != StateReady || s.Profile == nil {
		return Profile{}, false
	}
	return *s.Profile, true
}

// Subscribe registers fn for every subsequent transition and calls it once
// with the current state. The returned func removes the observer.
func (c *Context) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	current := c.snap
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Context) update(mutate func(*Snapshot)) {
	c.mu.Lock()
	mutate(&c.snap)
	snap := c.snap
	observers := make([]func(Snapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

type ctxKey struct{}

// WithContext attaches sc to ctx.
func WithContext(ctx context.Context, sc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, sc)
}

// FromContext returns the session attached by WithContext, or nil.
func FromContext(ctx context.Context) *Context {
	sc, _ := ctx.Value(ctxKey{}).(*Context)
	return sc
}
