package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saborportugues/api/internal/auth"
	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/handler"
)

type mockTrackingStore struct {
	orders map[uuid.UUID]database.OrderSummary
	items  map[uuid.UUID][]database.OrderItemRow
	err    error
}

func (m *mockTrackingStore) GetOrderForUser(_ context.Context, arg database.GetOrderForUserParams) (database.OrderSummary, error) {
	if m.err != nil {
		return database.OrderSummary{}, m.err
	}
	o, ok := m.orders[arg.ID]
	if !ok || o.UserID != arg.UserID {
		return database.OrderSummary{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockTrackingStore) ListOrderItemsByOrder(_ context.Context, orderID uuid.UUID) ([]database.OrderItemRow, error) {
	return m.items[orderID], nil
}

func newTrackingRouter(store handler.TrackingStore) http.Handler {
	r := chi.NewRouter()
	handler.NewTrackingHandler(store, staticSlugs{}).RegisterRoutes(r)
	return r
}

func TestTrackOrder(t *testing.T) {
	p := profileWithRole(enum.RoleCustomer)
	order := openOrder(uuid.New())
	order.UserID = p.ID

	store := &mockTrackingStore{
		orders: map[uuid.UUID]database.OrderSummary{order.ID: order},
		items: map[uuid.UUID][]database.OrderItemRow{order.ID: {{
			ID:        uuid.New(),
			OrderID:   order.ID,
			MealID:    uuid.New(),
			MealName:  "Bacalhau à Brás",
			Quantity:  2,
			UnitPrice: makeNumeric("9.00"),
		}}},
	}

	rr := get(t, newTrackingRouter(store), "/orders/"+order.ID.String(), p)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	proj := resp["projection"].(map[string]interface{})
	if proj["label"] != "Out for delivery" || proj["is_terminal"] != false {
		t.Errorf("projection: got %v", proj)
	}
	if resp["restaurant_name"] != "Tasca do Bairro" {
		t.Errorf("restaurant_name: got %v", resp["restaurant_name"])
	}

	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items: got %d, want 1", len(items))
	}
	item := items[0].(map[string]interface{})
	if item["unit_price"] != "9.00" || item["subtotal"] != "18.00" {
		t.Errorf("item prices: got %v / %v", item["unit_price"], item["subtotal"])
	}
}

func TestTrackOrder_NotFoundOffersRecovery(t *testing.T) {
	owner := profileWithRole(enum.RoleCustomer)
	other := profileWithRole(enum.RoleCustomer)
	order := openOrder(uuid.New())
	order.UserID = owner.ID
	store := &mockTrackingStore{orders: map[uuid.UUID]database.OrderSummary{order.ID: order}}

	tests := []struct {
		name string
		path string
	}{
		{"unknown order", "/orders/" + uuid.NewString()},
		{"someone else's order", "/orders/" + order.ID.String()},
		{"malformed id", "/orders/abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, newTrackingRouter(store), tt.path, other)
			if rr.Code != http.StatusNotFound {
				t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
			}
			resp := decodeResponse(t, rr)
			if resp["error"] != "order not found" || resp["recovery"] != "/customer" {
				t.Errorf("body: got %v", resp)
			}
		})
	}
}

func TestTrackOrder_StoreError(t *testing.T) {
	store := &mockTrackingStore{err: errors.New("db down")}
	rr := get(t, newTrackingRouter(store), "/orders/"+uuid.NewString(), profileWithRole(enum.RoleCustomer))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestTrackOrder_OtherRolesRedirected(t *testing.T) {
	order := openOrder(uuid.New())
	store := &mockTrackingStore{orders: map[uuid.UUID]database.OrderSummary{order.ID: order}}

	tests := []struct {
		role enum.Role
		want string
	}{
		{enum.RoleDriver, "/driver-dashboard"},
		{enum.RolePlatformOwner, "/platform-owner"},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			rr := get(t, newTrackingRouter(store), "/orders/"+order.ID.String(), profileWithRole(tt.role))
			if rr.Code != http.StatusSeeOther {
				t.Fatalf("status: got %d, want %d", rr.Code, http.StatusSeeOther)
			}
			if loc := rr.Header().Get("Location"); loc != tt.want {
				t.Errorf("Location: got %q, want %q", loc, tt.want)
			}
		})
	}
}

func TestTrackingGuardClaims(t *testing.T) {
	h := handler.NewTrackingHandler(&mockTrackingStore{}, staticSlugs{})
	ctx := context.Background()

	if _, ok := h.GuardClaims(ctx, &auth.Claims{UserID: uuid.New(), Role: string(enum.RoleCustomer)}); !ok {
		t.Error("customer should be allowed to track orders")
	}

	rid := uuid.New()
	redirect, ok := h.GuardClaims(ctx, &auth.Claims{UserID: uuid.New(), Role: string(enum.RoleKitchen), RestaurantID: rid})
	if ok {
		t.Fatal("kitchen should be redirected")
	}
	if redirect != "/restaurant/"+rid.String()+"/dashboard" {
		t.Errorf("redirect: got %q", redirect)
	}
}
