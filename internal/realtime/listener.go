// Package realtime turns database change notifications into per-order
// updates for connected viewers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel is the NOTIFY channel the orders trigger publishes on.
const Channel = "order_changes"

// OrderChange is one NOTIFY payload: the order id and only the columns that changed.
type OrderChange struct {
	ID      uuid.UUID                  `json:"id"`
	Changes map[string]json.RawMessage `json:"changes"`
}

// ParseNotification decodes a NOTIFY payload.
func ParseNotification(payload string) (OrderChange, error) {
	var c OrderChange
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return OrderChange{}, fmt.Errorf("decode order change: %w", err)
	}
	if c.ID == uuid.Nil {
		return OrderChange{}, errors.New("order change without id")
	}
	if c.Changes == nil {
		c.Changes = map[string]json.RawMessage{}
	}
	return c, nil
}

// Sink receives order changes. Satisfied by *ws.Hub.
type Sink interface {
	PublishOrderChange(orderID uuid.UUID, changes map[string]json.RawMessage)
}

// NotificationConn is a connection that can LISTEN. Close discards it; a
// connection that has run LISTEN never goes back to a pool.
type NotificationConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close()
}

// Listener holds one connection on LISTEN and forwards every change to Sink.
type Listener struct {
	acquire    func(ctx context.Context) (NotificationConn, error)
	sink       Sink
	minBackoff time.Duration
	maxBackoff time.Duration
	after      func(d time.Duration) <-chan time.Time
}

func NewListener(pool *pgxpool.Pool, sink Sink) *Listener {
	return &Listener{
		acquire: func(ctx context.Context) (NotificationConn, error) {
			c, err := pool.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return poolConn{c}, nil
		},
		sink:       sink,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		after:      time.After,
	}
}

// Run listens until ctx is cancelled, reconnecting with exponential backoff.
// The backoff starts over once a connection gets as far as LISTEN.
func (l *Listener) Run(ctx context.Context) {
	backoff := l.minBackoff
	for {
		listening, err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		if listening {
			backoff = l.minBackoff
		}
		log.Printf("WARN: order change listener: %v (retrying in %s)", err, backoff)

		select {
		case <-ctx.Done():
			return
		case <-l.after(backoff):
		}
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

// listen reports whether LISTEN succeeded before the connection failed.
func (l *Listener) listen(ctx context.Context) (bool, error) {
	conn, err := l.acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return false, fmt.Errorf("listen: %w", err)
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return true, fmt.Errorf("wait: %w", err)
		}
		if n.Channel != Channel {
			continue
		}
		change, err := ParseNotification(n.Payload)
		if err != nil {
			log.Printf("WARN: %v", err)
			continue
		}
		l.sink.PublishOrderChange(change.ID, change.Changes)
	}
}

type poolConn struct {
	*pgxpool.Conn
}

func (c poolConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return c.Conn.Conn().WaitForNotification(ctx)
}

// Close takes the connection out of the pool and closes it so its LISTEN
// state cannot leak to other users of the pool.
func (c poolConn) Close() {
	conn := c.Conn.Hijack()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		log.Printf("WARN: close listener connection: %v", err)
	}
}
