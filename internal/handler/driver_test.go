package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/handler"
	"github.com/saborportugues/api/internal/service"
)

type mockDriverService struct {
	dashboardFn       func(ctx context.Context, driverID uuid.UUID) (*service.DriverDashboard, error)
	listAvailableFn   func(ctx context.Context) ([]database.OrderSummary, error)
	setAvailabilityFn func(ctx context.Context, driverID uuid.UUID, available bool) (database.Driver, error)
	claimFn           func(ctx context.Context, driverID, orderID uuid.UUID) (database.Order, error)
	completeFn        func(ctx context.Context, driverID, orderID uuid.UUID) (database.Order, error)
	calls             int
}

func (m *mockDriverService) Dashboard(ctx context.Context, driverID uuid.UUID) (*service.DriverDashboard, error) {
	m.calls++
	return m.dashboardFn(ctx, driverID)
}

func (m *mockDriverService) ListAvailable(ctx context.Context) ([]database.OrderSummary, error) {
	m.calls++
	return m.listAvailableFn(ctx)
}

func (m *mockDriverService) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) (database.Driver, error) {
	m.calls++
	return m.setAvailabilityFn(ctx, driverID, available)
}

func (m *mockDriverService) Claim(ctx context.Context, driverID, orderID uuid.UUID) (database.Order, error) {
	m.calls++
	return m.claimFn(ctx, driverID, orderID)
}

func (m *mockDriverService) Complete(ctx context.Context, driverID, orderID uuid.UUID) (database.Order, error) {
	m.calls++
	return m.completeFn(ctx, driverID, orderID)
}

func newDriverRouter(svc handler.DriverServicer) http.Handler {
	r := chi.NewRouter()
	handler.NewDriverHandler(svc, staticSlugs{}).RegisterRoutes(r)
	return r
}

func openOrder(id uuid.UUID) database.OrderSummary {
	return database.OrderSummary{
		Order: database.Order{
			ID:              id,
			UserID:          uuid.New(),
			RestaurantID:    uuid.New(),
			Status:          "out_for_delivery",
			Subtotal:        makeNumeric("18.00"),
			DeliveryFee:     makeNumeric("2.00"),
			TotalAmount:     makeNumeric("20.00"),
			DeliveryAddress: "Rua Augusta 1",
		},
		RestaurantName: "Tasca do Bairro",
		CustomerName:   "Ana",
	}
}

func TestDriverDashboard(t *testing.T) {
	p := profileWithRole(enum.RoleDriver)
	svc := &mockDriverService{
		dashboardFn: func(_ context.Context, driverID uuid.UUID) (*service.DriverDashboard, error) {
			if driverID != p.ID {
				t.Errorf("driverID: got %s, want %s", driverID, p.ID)
			}
			return &service.DriverDashboard{
				Driver:    database.Driver{ID: driverID, IsAvailable: true},
				Available: []database.OrderSummary{openOrder(uuid.New())},
				Today:     service.DriverStats{Deliveries: 3, Earnings: decimal.RequireFromString("7.5")},
			}, nil
		},
	}

	rr := get(t, newDriverRouter(svc), "/driver/dashboard", p)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	today := resp["today"].(map[string]interface{})
	if today["earnings"] != "7.50" {
		t.Errorf("earnings: got %v, want 7.50", today["earnings"])
	}
	if len(resp["available"].([]interface{})) != 1 {
		t.Error("expected one available order")
	}
	if len(resp["active"].([]interface{})) != 0 {
		t.Error("expected no active orders")
	}
}

func TestDriverDashboard_SectionsFailIndependently(t *testing.T) {
	p := profileWithRole(enum.RoleDriver)
	svc := &mockDriverService{
		dashboardFn: func(_ context.Context, driverID uuid.UUID) (*service.DriverDashboard, error) {
			return &service.DriverDashboard{
				Driver:    database.Driver{ID: driverID, IsAvailable: true},
				Available: []database.OrderSummary{openOrder(uuid.New())},
				ActiveErr: errors.New("db down"),
				TodayErr:  errors.New("db down"),
			}, nil
		},
	}

	rr := get(t, newDriverRouter(svc), "/driver/dashboard", p)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if len(resp["available"].([]interface{})) != 1 {
		t.Error("available section should still render")
	}
	if _, ok := resp["available_error"]; ok {
		t.Error("available section should carry no error")
	}
	if resp["active_error"] == nil || resp["today_error"] == nil {
		t.Errorf("failed sections should carry errors: %v", resp)
	}
	if len(resp["active"].([]interface{})) != 0 || resp["today"] != nil {
		t.Errorf("failed sections should be empty: %v / %v", resp["active"], resp["today"])
	}
}

func TestDriverRoutes_NonDriverRedirected(t *testing.T) {
	svc := &mockDriverService{}
	router := newDriverRouter(svc)
	customer := profileWithRole(enum.RoleCustomer)

	paths := []struct{ method, path string }{
		{"GET", "/driver/dashboard"},
		{"PUT", "/driver/availability"},
		{"POST", "/driver/orders/" + uuid.NewString() + "/claim"},
		{"POST", "/driver/orders/" + uuid.NewString() + "/complete"},
	}
	for _, tt := range paths {
		rr := doJSON(t, router, tt.method, tt.path, map[string]bool{"is_available": true}, customer)
		if rr.Code != http.StatusSeeOther {
			t.Errorf("%s %s: status got %d, want %d", tt.method, tt.path, rr.Code, http.StatusSeeOther)
		}
		if loc := rr.Header().Get("Location"); loc != "/" {
			t.Errorf("%s %s: Location got %q, want /", tt.method, tt.path, loc)
		}
	}
	if svc.calls != 0 {
		t.Errorf("service called %d times for a non-driver", svc.calls)
	}
}

func TestSetAvailability(t *testing.T) {
	p := profileWithRole(enum.RoleDriver)

	t.Run("missing flag", func(t *testing.T) {
		svc := &mockDriverService{}
		rr := doJSON(t, newDriverRouter(svc), "PUT", "/driver/availability", map[string]string{}, p)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
		}
		if svc.calls != 0 {
			t.Error("service should not be called")
		}
	})

	t.Run("returns stored flag", func(t *testing.T) {
		svc := &mockDriverService{
			setAvailabilityFn: func(_ context.Context, driverID uuid.UUID, available bool) (database.Driver, error) {
				if !available {
					t.Error("expected available=true")
				}
				return database.Driver{ID: driverID, IsAvailable: true, VehicleType: pgtype.Text{String: "scooter", Valid: true}}, nil
			},
		}
		rr := doJSON(t, newDriverRouter(svc), "PUT", "/driver/availability", map[string]bool{"is_available": true}, p)
		if rr.Code != http.StatusOK {
			t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
		}
		resp := decodeResponse(t, rr)
		if resp["is_available"] != true || resp["vehicle_type"] != "scooter" {
			t.Errorf("unexpected driver: %v", resp)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		svc := &mockDriverService{
			setAvailabilityFn: func(context.Context, uuid.UUID, bool) (database.Driver, error) {
				return database.Driver{}, service.ErrDriverNotFound
			},
		}
		rr := doJSON(t, newDriverRouter(svc), "PUT", "/driver/availability", map[string]bool{"is_available": false}, p)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
		}
	})
}

func TestClaim_LostRaceReturnsRemainingOrders(t *testing.T) {
	p := profileWithRole(enum.RoleDriver)
	taken := uuid.New()
	stillOpen := uuid.New()

	svc := &mockDriverService{
		claimFn: func(_ context.Context, driverID, orderID uuid.UUID) (database.Order, error) {
			if orderID != taken {
				t.Errorf("orderID: got %s, want %s", orderID, taken)
			}
			return database.Order{}, service.ErrOrderUnavailable
		},
		listAvailableFn: func(context.Context) ([]database.OrderSummary, error) {
			return []database.OrderSummary{openOrder(stillOpen)}, nil
		},
	}

	rr := doJSON(t, newDriverRouter(svc), "POST", "/driver/orders/"+taken.String()+"/claim", nil, p)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != service.ErrOrderUnavailable.Error() {
		t.Errorf("error: got %v", resp["error"])
	}
	available := resp["available"].([]interface{})
	if len(available) != 1 || available[0].(map[string]interface{})["id"] != stillOpen.String() {
		t.Errorf("available: got %v", available)
	}
}

func TestClaim_Errors(t *testing.T) {
	p := profileWithRole(enum.RoleDriver)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"offline", service.ErrDriverOffline, http.StatusConflict},
		{"no driver row", service.ErrDriverNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDriverService{
				claimFn: func(context.Context, uuid.UUID, uuid.UUID) (database.Order, error) {
					return database.Order{}, tt.err
				},
			}
			rr := doJSON(t, newDriverRouter(svc), "POST", "/driver/orders/"+uuid.NewString()+"/claim", nil, p)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}

	rr := doJSON(t, newDriverRouter(&mockDriverService{}), "POST", "/driver/orders/not-a-uuid/claim", nil, p)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid id: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestClaim_Success(t *testing.T) {
	p := profileWithRole(enum.RoleDriver)
	orderID := uuid.New()
	svc := &mockDriverService{
		claimFn: func(_ context.Context, driverID, id uuid.UUID) (database.Order, error) {
			o := openOrder(id).Order
			o.Status = "out_for_delivery"
			o.DriverID = pgtype.UUID{Bytes: driverID, Valid: true}
			return o, nil
		},
	}
	rr := doJSON(t, newDriverRouter(svc), "POST", "/driver/orders/"+orderID.String()+"/claim", nil, p)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["driver_id"] != p.ID.String() || resp["status"] != "out_for_delivery" {
		t.Errorf("unexpected order: %v", resp)
	}
}

func TestComplete_Errors(t *testing.T) {
	p := profileWithRole(enum.RoleDriver)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", service.ErrOrderNotFound, http.StatusNotFound},
		{"not deliverable", service.ErrNotDeliverable, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDriverService{
				completeFn: func(context.Context, uuid.UUID, uuid.UUID) (database.Order, error) {
					return database.Order{}, tt.err
				},
			}
			rr := doJSON(t, newDriverRouter(svc), "POST", "/driver/orders/"+uuid.NewString()+"/complete", nil, p)
			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusNotFound {
				if rec := decodeResponse(t, rr)["recovery"]; rec != "/driver-dashboard" {
					t.Errorf("recovery: got %v", rec)
				}
			}
		})
	}
}
