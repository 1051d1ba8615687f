package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/events"
	"github.com/saborportugues/api/internal/orderflow"
)

// Errors returned by the driver service.
var (
	ErrDriverNotFound   = errors.New("driver not found")
	ErrDriverOffline    = errors.New("driver is offline")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderUnavailable = errors.New("order is no longer available")
	ErrNotDeliverable   = errors.New("order cannot be completed")
)

// DriverStore defines the DB methods needed for driver dispatch.
// Satisfied by *database.Queries.
type DriverStore interface {
	GetDriver(ctx context.Context, id uuid.UUID) (database.Driver, error)
	SetDriverAvailability(ctx context.Context, arg database.SetDriverAvailabilityParams) (database.Driver, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListAvailableDeliveries(ctx context.Context) ([]database.OrderSummary, error)
	ListDriverDeliveries(ctx context.Context, arg database.ListDriverDeliveriesParams) ([]database.OrderSummary, error)
	ClaimOrder(ctx context.Context, arg database.ClaimOrderParams) (database.Order, error)
	CompleteDelivery(ctx context.Context, arg database.CompleteDeliveryParams) (database.Order, error)
	GetDriverDeliveryStats(ctx context.Context, arg database.GetDriverDeliveryStatsParams) (database.GetDriverDeliveryStatsRow, error)
}

// DriverStats summarises today's completed deliveries (UTC).
type DriverStats struct {
	Deliveries int64
	Earnings   decimal.Decimal
}

// DriverDashboard is everything the driver dashboard renders. Each section
// carries its own error so one failed fetch leaves the others intact.
type DriverDashboard struct {
	Driver       database.Driver
	Available    []database.OrderSummary
	AvailableErr error
	Active       []database.OrderSummary
	ActiveErr    error
	Today        DriverStats
	TodayErr     error
}

// DriverService assigns deliveries to drivers. The database decides who wins
// a claim; the service never assumes a write succeeded without a returned row.
type DriverService struct {
	store  DriverStore
	events events.Publisher
	flight singleflight.Group
	now    func() time.Time
}

func NewDriverService(store DriverStore, publisher events.Publisher) *DriverService {
	return &DriverService{store: store, events: publisher, now: time.Now}
}

// ListAvailable returns unclaimed deliveries, oldest first.
func (s *DriverService) ListAvailable(ctx context.Context) ([]database.OrderSummary, error) {
	return s.store.ListAvailableDeliveries(ctx)
}

// Dashboard loads the driver's availability, open and active deliveries and
// today's totals. Only a missing or unreadable driver row fails the whole call.
func (s *DriverService) Dashboard(ctx context.Context, driverID uuid.UUID) (*DriverDashboard, error) {
	var dash DriverDashboard

	driver, err := s.store.GetDriver(ctx, driverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver: %w", err)
	}
	dash.Driver = driver

	var g errgroup.Group
	g.Go(func() error {
		dash.Available, dash.AvailableErr = s.store.ListAvailableDeliveries(ctx)
		return nil
	})
	g.Go(func() error {
		dash.Active, dash.ActiveErr = s.store.ListDriverDeliveries(ctx, database.ListDriverDeliveriesParams{
			DriverID: driverID,
			Status:   string(enum.OrderStatusOutForDelivery),
		})
		return nil
	})
	g.Go(func() error {
		dash.Today, dash.TodayErr = s.todayStats(ctx, driverID)
		return nil
	})
	_ = g.Wait()

	return &dash, nil
}

func (s *DriverService) todayStats(ctx context.Context, driverID uuid.UUID) (DriverStats, error) {
	row, err := s.store.GetDriverDeliveryStats(ctx, database.GetDriverDeliveryStatsParams{
		DriverID: driverID,
		Since:    startOfDayUTC(s.now()),
	})
	if err != nil {
		return DriverStats{}, fmt.Errorf("delivery stats: %w", err)
	}
	return DriverStats{Deliveries: row.Deliveries, Earnings: numericToDecimal(row.Earnings)}, nil
}

// SetAvailability writes the flag and returns the row as re-read afterwards.
func (s *DriverService) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) (database.Driver, error) {
	_, err := s.store.SetDriverAvailability(ctx, database.SetDriverAvailabilityParams{
		ID:          driverID,
		IsAvailable: available,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Driver{}, ErrDriverNotFound
	}
	if err != nil {
		return database.Driver{}, fmt.Errorf("set availability: %w", err)
	}

	driver, err := s.store.GetDriver(ctx, driverID)
	if err != nil {
		return database.Driver{}, fmt.Errorf("re-read driver: %w", err)
	}
	return driver, nil
}

// Claim assigns an unclaimed delivery to driverID. ErrOrderUnavailable means
// another driver got there first or the order left out_for_delivery.
// Concurrent identical claims by the same driver share one database call.
func (s *DriverService) Claim(ctx context.Context, driverID, orderID uuid.UUID) (database.Order, error) {
	v, err, _ := s.flight.Do("claim:"+driverID.String()+":"+orderID.String(), func() (any, error) {
		return s.claim(ctx, driverID, orderID)
	})
	if err != nil {
		return database.Order{}, err
	}
	return v.(database.Order), nil
}

func (s *DriverService) claim(ctx context.Context, driverID, orderID uuid.UUID) (database.Order, error) {
	driver, err := s.store.GetDriver(ctx, driverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, ErrDriverNotFound
	}
	if err != nil {
		return database.Order{}, fmt.Errorf("get driver: %w", err)
	}
	if !driver.IsAvailable {
		return database.Order{}, ErrDriverOffline
	}

	order, err := s.store.ClaimOrder(ctx, database.ClaimOrderParams{ID: orderID, DriverID: driverID})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, ErrOrderUnavailable
	}
	if err != nil {
		return database.Order{}, fmt.Errorf("claim order: %w", err)
	}

	events.Publish(ctx, s.events, orderEvent(enum.EventOrderClaimed, order, driverID))
	return order, nil
}

// Complete marks a delivery owned by driverID as delivered. Orders that do
// not exist or belong to another driver report ErrOrderNotFound.
func (s *DriverService) Complete(ctx context.Context, driverID, orderID uuid.UUID) (database.Order, error) {
	v, err, _ := s.flight.Do("complete:"+driverID.String()+":"+orderID.String(), func() (any, error) {
		return s.complete(ctx, driverID, orderID)
	})
	if err != nil {
		return database.Order{}, err
	}
	return v.(database.Order), nil
}

func (s *DriverService) complete(ctx context.Context, driverID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.CompleteDelivery(ctx, database.CompleteDeliveryParams{ID: orderID, DriverID: driverID})
	if err == nil {
		events.Publish(ctx, s.events, orderEvent(enum.EventOrderStatusChanged, order, driverID))
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, fmt.Errorf("complete delivery: %w", err)
	}

	// Nothing updated: find out why.
	current, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return database.Order{}, fmt.Errorf("re-read order: %w", err)
	}
	if !current.DriverID.Valid || uuid.UUID(current.DriverID.Bytes) != driverID {
		return database.Order{}, ErrOrderNotFound
	}
	if err := orderflow.CanTransition(enum.OrderStatus(current.Status), enum.OrderStatusDelivered, enum.ActorDriver); err != nil {
		return database.Order{}, fmt.Errorf("%w: %v", ErrNotDeliverable, err)
	}
	return database.Order{}, ErrNotDeliverable
}

func orderEvent(eventType string, o database.Order, actorID uuid.UUID) events.OrderEvent {
	e := events.OrderEvent{
		Type:         eventType,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		Status:       o.Status,
		ActorID:      actorID,
		OccurredAt:   time.Now().UTC(),
	}
	if o.DriverID.Valid {
		id := uuid.UUID(o.DriverID.Bytes)
		e.DriverID = &id
	}
	return e
}

func startOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}
