package service

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/saborportugues/api/internal/database"
)

const (
	customerRecentOrders = 10
	topRestaurants       = 6
)

// DashboardStore defines the DB methods needed by the dashboards.
// Satisfied by *database.Queries.
type DashboardStore interface {
	ListOrdersByUser(ctx context.Context, arg database.ListOrdersByUserParams) ([]database.OrderSummary, error)
	ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]database.SubscriptionWithPlan, error)
	ListTopRestaurants(ctx context.Context, limit int32) ([]database.Restaurant, error)
	ListRestaurantsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]database.Restaurant, error)
}

// CustomerDashboard holds three independently loaded sections. A failed
// section carries its own error and leaves the others intact.
type CustomerDashboard struct {
	Orders           []database.OrderSummary
	OrdersErr        error
	Subscriptions    []database.SubscriptionWithPlan
	SubscriptionsErr error
	Restaurants      []database.Restaurant
	RestaurantsErr   error
}

type DashboardService struct {
	store DashboardStore
}

func NewDashboardService(store DashboardStore) *DashboardService {
	return &DashboardService{store: store}
}

// Customer loads the customer dashboard sections concurrently.
func (s *DashboardService) Customer(ctx context.Context, userID uuid.UUID) CustomerDashboard {
	var dash CustomerDashboard
	var g errgroup.Group

	g.Go(func() error {
		dash.Orders, dash.OrdersErr = s.store.ListOrdersByUser(ctx, database.ListOrdersByUserParams{
			UserID: userID,
			Limit:  customerRecentOrders,
		})
		return nil
	})
	g.Go(func() error {
		dash.Subscriptions, dash.SubscriptionsErr = s.store.ListSubscriptionsByUser(ctx, userID)
		return nil
	})
	g.Go(func() error {
		dash.Restaurants, dash.RestaurantsErr = s.store.ListTopRestaurants(ctx, topRestaurants)
		return nil
	})
	_ = g.Wait()

	return dash
}

// Organization lists the restaurants of an organization.
func (s *DashboardService) Organization(ctx context.Context, organizationID uuid.UUID) ([]database.Restaurant, error) {
	return s.store.ListRestaurantsByOrganization(ctx, organizationID)
}
