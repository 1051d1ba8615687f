package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	changes []OrderChange
	got     chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{got: make(chan struct{}, 16)}
}

func (s *recordingSink) PublishOrderChange(orderID uuid.UUID, changes map[string]json.RawMessage) {
	s.mu.Lock()
	s.changes = append(s.changes, OrderChange{ID: orderID, Changes: changes})
	s.mu.Unlock()
	s.got <- struct{}{}
}

// fakeConn replays notifications, then fails so the listener reconnects.
type fakeConn struct {
	notifications []*pgconn.Notification
	listened      []string
	closed        bool
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.listened = append(c.listened, sql)
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	if len(c.notifications) == 0 {
		return nil, errors.New("connection reset")
	}
	n := c.notifications[0]
	c.notifications = c.notifications[1:]
	return n, nil
}

func (c *fakeConn) Close() { c.closed = true }

func TestParseNotification(t *testing.T) {
	id := uuid.New()
	c, err := ParseNotification(`{"id":"` + id.String() + `","changes":{"status":"delivered"}}`)
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.JSONEq(t, `"delivered"`, string(c.Changes["status"]))

	_, err = ParseNotification(`{"changes":{}}`)
	assert.Error(t, err)

	_, err = ParseNotification(`not json`)
	assert.Error(t, err)

	c, err = ParseNotification(`{"id":"` + id.String() + `"}`)
	require.NoError(t, err)
	assert.NotNil(t, c.Changes)
}

func TestListener_ForwardsAndReconnects(t *testing.T) {
	id := uuid.New()
	first := &fakeConn{notifications: []*pgconn.Notification{
		{Channel: Channel, Payload: `{"id":"` + id.String() + `","changes":{"status":"accepted"}}`},
		{Channel: "other", Payload: `{}`},
		{Channel: Channel, Payload: `garbage`},
	}}
	second := &fakeConn{notifications: []*pgconn.Notification{
		{Channel: Channel, Payload: `{"id":"` + id.String() + `","changes":{"status":"preparing"}}`},
	}}

	var mu sync.Mutex
	conns := []*fakeConn{first, second}
	sink := newRecordingSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := &Listener{
		acquire: func(ctx context.Context) (NotificationConn, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(conns) == 0 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			c := conns[0]
			conns = conns[1:]
			return c, nil
		},
		sink:       sink,
		minBackoff: time.Millisecond,
		maxBackoff: 2 * time.Millisecond,
		after:      time.After,
	}

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-sink.got:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for change")
		}
	}
	cancel()
	<-done

	require.Len(t, sink.changes, 2)
	assert.JSONEq(t, `"accepted"`, string(sink.changes[0].Changes["status"]))
	assert.JSONEq(t, `"preparing"`, string(sink.changes[1].Changes["status"]))
	assert.Equal(t, []string{"LISTEN order_changes"}, first.listened)
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestListener_BackoffResetsAfterListen(t *testing.T) {
	refused := errors.New("connection refused")
	attempts := []*fakeConn{nil, nil, {}, nil}

	var mu sync.Mutex
	var waits []time.Duration
	waited := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := &Listener{
		acquire: func(ctx context.Context) (NotificationConn, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(attempts) == 0 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			c := attempts[0]
			attempts = attempts[1:]
			if c == nil {
				return nil, refused
			}
			return c, nil
		},
		sink:       newRecordingSink(),
		minBackoff: time.Millisecond,
		maxBackoff: time.Second,
		after: func(d time.Duration) <-chan time.Time {
			mu.Lock()
			waits = append(waits, d)
			mu.Unlock()
			waited <- struct{}{}
			ch := make(chan time.Time, 1)
			ch <- time.Now()
			return ch
		},
	}

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	for i := 0; i < 4; i++ {
		select {
		case <-waited:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for retry")
		}
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		time.Millisecond, // reset: the third attempt reached LISTEN
		2 * time.Millisecond,
	}, waits)
}
