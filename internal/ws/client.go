package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"

	"github.com/saborportugues/api/internal/auth"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/realtime"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// EventOrderSnapshot carries the full order state sent on connect.
const EventOrderSnapshot = "order.snapshot"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (we validate via JWT)
	},
}

// OrderLoader returns the caller's view of an order. It returns pgx.ErrNoRows
// when the order does not exist or belongs to someone else.
type OrderLoader func(ctx context.Context, orderID, userID uuid.UUID) (any, error)

// ViewGuard decides whether the token's holder may open a tracking view.
// When ok is false the caller is sent to redirect instead.
type ViewGuard func(ctx context.Context, claims *auth.Claims) (redirect string, ok bool)

// Client is one tracking view of one order over a WebSocket connection
type Client struct {
	conn    *websocket.Conn
	sub     *Subscription
	tracker *realtime.Tracker
}

// ReadPump only detects disconnects; viewers never send messages. Leaving
// ends the subscription and stops the tracker.
func (c *Client) ReadPump() {
	defer func() {
		c.tracker.Stop()
		c.sub.Unsubscribe()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}
	}
}

// WritePump sends the snapshot, then one order.updated per change and an
// order.status_changed whenever the status moves.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if err := c.write(Event{Type: EventOrderSnapshot, Payload: c.tracker.State()}); err != nil {
		return
	}

	for {
		select {
		case change, ok := <-c.sub.Updates():
			if !ok {
				// The hub ended the subscription
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			for _, ev := range Events(c.tracker, change) {
				if err := c.write(ev); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(ev Event) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev)
}

// Events merges change into tracker and returns the messages for the viewer.
// Nothing is returned once the tracker has stopped.
func Events(tracker *realtime.Tracker, change Change) []Event {
	u, ok := tracker.Apply(change)
	if !ok {
		return nil
	}
	events := []Event{{Type: enum.EventOrderUpdated, Payload: u.Order}}
	if u.StatusChange != nil {
		payload, err := json.Marshal(u.StatusChange)
		if err == nil {
			events = append(events, Event{Type: enum.EventOrderStatusChanged, Payload: payload})
		}
	}
	return events
}

// ServeOrderWS handles WebSocket requests for tracking one order
// Endpoint: WS /ws/orders/{id}?token=JWT
func ServeOrderWS(hub *Hub, jwtSecret string, guard ViewGuard, load OrderLoader, w http.ResponseWriter, r *http.Request) {
	// 1. Extract token from query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	// 2. Validate JWT
	claims, err := auth.ValidateToken(jwtSecret, tokenStr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	// 3. Only roles that track orders get a view
	if guard != nil {
		if redirect, ok := guard(r.Context(), claims); !ok {
			w.Header().Set("Location", redirect)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusSeeOther)
			json.NewEncoder(w).Encode(map[string]string{"redirect": redirect})
			return
		}
	}

	// 4. Extract order ID from URL
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	// 5. Subscribe before loading so changes committed while the view is
	// read are buffered instead of lost
	sub := hub.Subscribe(orderID)

	// 6. The order must belong to the caller
	view, err := load(r.Context(), orderID, claims.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		sub.Unsubscribe()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "order not found", "recovery": "/customer"})
		return
	}
	if err != nil {
		sub.Unsubscribe()
		log.Printf("ERROR: load order %s for tracking: %v", orderID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	tracker, err := realtime.NewTracker(view)
	if err != nil {
		sub.Unsubscribe()
		log.Printf("ERROR: track order %s: %v", orderID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	catchUp(tracker, sub)

	// 7. Upgrade to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Unsubscribe()
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	// 8. Start pumps in separate goroutines
	client := &Client{
		conn:    conn,
		sub:     sub,
		tracker: tracker,
	}
	go client.WritePump()
	go client.ReadPump()
}

// catchUp merges changes already buffered on sub into the tracker so the
// snapshot includes them. Changes still in flight reach the WritePump.
func catchUp(tracker *realtime.Tracker, sub *Subscription) {
	for {
		select {
		case change, ok := <-sub.Updates():
			if !ok {
				return
			}
			tracker.Apply(change)
		default:
			return
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
