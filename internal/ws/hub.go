package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event represents a WebSocket message sent to a viewer
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Change is one set of changed order columns.
type Change map[string]json.RawMessage

// orderChange is an internal struct for routing changes to one order's room
type orderChange struct {
	OrderID uuid.UUID
	Changes Change
}

// Subscription is one viewer's interest in one order. Updates is closed by the
// hub after Unsubscribe or when the viewer falls too far behind.
type Subscription struct {
	hub     *Hub
	orderID uuid.UUID
	updates chan Change
	once    sync.Once
}

// OrderID is the order this subscription follows.
func (s *Subscription) OrderID() uuid.UUID { return s.orderID }

// Updates delivers changes for the order until the subscription ends.
func (s *Subscription) Updates() <-chan Change { return s.updates }

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
	})
}

// Hub maintains the active subscriptions and fans order changes out to them
type Hub struct {
	// Subscriptions by order ID
	rooms map[uuid.UUID]map[*Subscription]bool

	register   chan *Subscription
	unregister chan *Subscription
	broadcast  chan *orderChange

	// Closed when Run returns
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Subscription]bool),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		broadcast:  make(chan *orderChange, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for orderID, subs := range h.rooms {
			for sub := range subs {
				close(sub.updates)
			}
			delete(h.rooms, orderID)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case sub := <-h.register:
			h.mu.Lock()
			if h.rooms[sub.orderID] == nil {
				h.rooms[sub.orderID] = make(map[*Subscription]bool)
			}
			h.rooms[sub.orderID][sub] = true
			h.mu.Unlock()

		case sub := <-h.unregister:
			h.mu.Lock()
			h.remove(sub)
			h.mu.Unlock()

		case change := <-h.broadcast:
			h.mu.Lock()
			for sub := range h.rooms[change.OrderID] {
				select {
				case sub.updates <- change.Changes:
				default:
					// Viewer's buffer is full, drop it
					h.remove(sub)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(sub *Subscription) {
	subs, ok := h.rooms[sub.orderID]
	if !ok {
		return
	}
	if _, exists := subs[sub]; !exists {
		return
	}
	delete(subs, sub)
	close(sub.updates)
	// Clean up empty rooms
	if len(subs) == 0 {
		delete(h.rooms, sub.orderID)
	}
}

// Subscribe starts following orderID.
func (h *Hub) Subscribe(orderID uuid.UUID) *Subscription {
	sub := &Subscription{
		hub:     h,
		orderID: orderID,
		updates: make(chan Change, 64),
	}
	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.updates)
	}
	return sub
}

// PublishOrderChange sends changes to every subscription of orderID.
func (h *Hub) PublishOrderChange(orderID uuid.UUID, changes map[string]json.RawMessage) {
	select {
	case h.broadcast <- &orderChange{OrderID: orderID, Changes: changes}:
	case <-h.done:
	}
}

// RoomSize is the number of subscriptions following orderID.
func (h *Hub) RoomSize(orderID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[orderID])
}

// Rooms is the number of orders with at least one subscription.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
