package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/events"
	"github.com/saborportugues/api/internal/orderflow"
)

// Errors returned by the restaurant order service.
var (
	ErrInvalidStatus = errors.New("invalid status")
	ErrOrderChanged  = errors.New("order was changed by someone else")
)

// RestaurantOrderStore defines the DB methods needed by restaurant staff.
// Satisfied by *database.Queries.
type RestaurantOrderStore interface {
	ListRestaurantOrders(ctx context.Context, arg database.ListRestaurantOrdersParams) ([]database.OrderSummary, error)
	GetRestaurantOrder(ctx context.Context, arg database.GetRestaurantOrderParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

type RestaurantOrderService struct {
	store  RestaurantOrderStore
	events events.Publisher
}

func NewRestaurantOrderService(store RestaurantOrderStore, publisher events.Publisher) *RestaurantOrderService {
	return &RestaurantOrderService{store: store, events: publisher}
}

// List returns the restaurant's orders, newest first, optionally filtered by status.
func (s *RestaurantOrderService) List(ctx context.Context, restaurantID uuid.UUID, status string, limit, offset int32) ([]database.OrderSummary, error) {
	filter := pgtype.Text{}
	if status != "" {
		if !enum.OrderStatus(status).Known() {
			return nil, ErrInvalidStatus
		}
		filter = pgtype.Text{String: status, Valid: true}
	}
	return s.store.ListRestaurantOrders(ctx, database.ListRestaurantOrdersParams{
		RestaurantID: restaurantID,
		Status:       filter,
		Limit:        limit,
		Offset:       offset,
	})
}

// UpdateStatus moves an order along the restaurant's side of the flow. The
// write only applies if the status is still the one that was validated.
func (s *RestaurantOrderService) UpdateStatus(ctx context.Context, restaurantID, orderID, actorID uuid.UUID, to string) (database.Order, error) {
	next := enum.OrderStatus(to)
	if !next.Known() {
		return database.Order{}, ErrInvalidStatus
	}

	current, err := s.store.GetRestaurantOrder(ctx, database.GetRestaurantOrderParams{ID: orderID, RestaurantID: restaurantID})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if err := orderflow.CanTransition(enum.OrderStatus(current.Status), next, enum.ActorRestaurant); err != nil {
		return database.Order{}, err
	}

	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             orderID,
		RestaurantID:   restaurantID,
		Status:         to,
		ExpectedStatus: current.Status,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, ErrOrderChanged
	}
	if err != nil {
		return database.Order{}, fmt.Errorf("update status: %w", err)
	}

	events.Publish(ctx, s.events, orderEvent(enum.EventOrderStatusChanged, updated, actorID))
	return updated, nil
}
