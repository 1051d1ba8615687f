package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/saborportugues/api/internal/database"
)

type mockDashboardStore struct {
	ordersFn      func(ctx context.Context, arg database.ListOrdersByUserParams) ([]database.OrderSummary, error)
	subsFn        func(ctx context.Context, userID uuid.UUID) ([]database.SubscriptionWithPlan, error)
	restaurantsFn func(ctx context.Context, limit int32) ([]database.Restaurant, error)
	orgFn         func(ctx context.Context, organizationID uuid.UUID) ([]database.Restaurant, error)
}

func (m *mockDashboardStore) ListOrdersByUser(ctx context.Context, arg database.ListOrdersByUserParams) ([]database.OrderSummary, error) {
	return m.ordersFn(ctx, arg)
}
func (m *mockDashboardStore) ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]database.SubscriptionWithPlan, error) {
	return m.subsFn(ctx, userID)
}
func (m *mockDashboardStore) ListTopRestaurants(ctx context.Context, limit int32) ([]database.Restaurant, error) {
	return m.restaurantsFn(ctx, limit)
}
func (m *mockDashboardStore) ListRestaurantsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]database.Restaurant, error) {
	return m.orgFn(ctx, organizationID)
}

func TestCustomerDashboard_SectionsAreIndependent(t *testing.T) {
	userID := uuid.New()
	release := make(chan struct{})

	store := &mockDashboardStore{
		ordersFn: func(ctx context.Context, arg database.ListOrdersByUserParams) ([]database.OrderSummary, error) {
			if arg.Limit != 10 || arg.UserID != userID {
				t.Errorf("unexpected params %+v", arg)
			}
			close(release)
			return []database.OrderSummary{{}}, nil
		},
		subsFn: func(ctx context.Context, id uuid.UUID) ([]database.SubscriptionWithPlan, error) {
			return nil, errors.New("subscriptions unavailable")
		},
		restaurantsFn: func(ctx context.Context, limit int32) ([]database.Restaurant, error) {
			// Only finishes once orders have loaded: the sections run concurrently.
			select {
			case <-release:
			case <-time.After(time.Second):
				t.Error("restaurants waited on a section that never started")
			}
			if limit != 6 {
				t.Errorf("expected limit 6, got %d", limit)
			}
			return []database.Restaurant{{}, {}}, nil
		},
	}

	dash := NewDashboardService(store).Customer(context.Background(), userID)
	if dash.OrdersErr != nil || len(dash.Orders) != 1 {
		t.Errorf("orders: %v %d", dash.OrdersErr, len(dash.Orders))
	}
	if dash.SubscriptionsErr == nil {
		t.Error("expected subscriptions error")
	}
	if dash.RestaurantsErr != nil || len(dash.Restaurants) != 2 {
		t.Errorf("restaurants: %v %d", dash.RestaurantsErr, len(dash.Restaurants))
	}
}
