package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/saborportugues/api/internal/projection"
)

// ErrNotObject is returned when the initial order state is not a JSON object.
var ErrNotObject = errors.New("order state must be a JSON object")

// StatusChange is the one-off notification for an order entering a new status.
type StatusChange struct {
	From       string                `json:"from"`
	To         string                `json:"to"`
	Message    string                `json:"message"`
	Projection projection.Projection `json:"projection"`
}

// Update is the result of applying one change to a tracked order.
type Update struct {
	Order        json.RawMessage
	StatusChange *StatusChange
}

// Tracker holds the latest state of one order as seen by one viewer. Changes
// are shallow-merged over the previous state so fields missing from a change
// keep their value.
type Tracker struct {
	mu      sync.Mutex
	state   map[string]json.RawMessage
	status  string
	stopped bool
}

// NewTracker starts tracking from initial, which must marshal to a JSON object
// with a "status" field.
func NewTracker(initial any) (*Tracker, error) {
	raw, err := json.Marshal(initial)
	if err != nil {
		return nil, fmt.Errorf("marshal order state: %w", err)
	}
	state := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &state); err != nil || state == nil {
		return nil, ErrNotObject
	}
	t := &Tracker{state: state}
	t.status = t.currentStatus()
	return t, nil
}

// Apply merges changes into the state. It reports false once the tracker is
// stopped; late changes are dropped.
func (t *Tracker) Apply(changes map[string]json.RawMessage) (Update, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return Update{}, false
	}

	for k, v := range changes {
		t.state[k] = v
	}

	var change *StatusChange
	if next := t.currentStatus(); next != t.status {
		change = &StatusChange{
			From:       t.status,
			To:         next,
			Message:    projection.NotificationText(next),
			Projection: projection.Project(next),
		}
		t.status = next
	}
	if p, err := json.Marshal(projection.Project(t.status)); err == nil {
		t.state["projection"] = p
	}

	out, err := json.Marshal(t.state)
	if err != nil {
		return Update{}, false
	}
	return Update{Order: out, StatusChange: change}, true
}

// State returns the merged state.
func (t *Tracker) State() json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out, _ := json.Marshal(t.state)
	return out
}

// Status is the last status seen.
func (t *Tracker) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Stop makes every later Apply a no-op.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *Tracker) currentStatus() string {
	var s string
	if raw, ok := t.state["status"]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}
