package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/middleware"
	"github.com/saborportugues/api/internal/orderflow"
	"github.com/saborportugues/api/internal/projection"
	"github.com/saborportugues/api/internal/service"
)

// RestaurantOrderServicer defines the service methods needed by restaurant order handlers.
// Satisfied by *service.RestaurantOrderService; narrow interface for testability.
type RestaurantOrderServicer interface {
	List(ctx context.Context, restaurantID uuid.UUID, status string, limit, offset int32) ([]database.OrderSummary, error)
	UpdateStatus(ctx context.Context, restaurantID, orderID, actorID uuid.UUID, to string) (database.Order, error)
}

// RestaurantOrderHandler handles the order board of a restaurant.
type RestaurantOrderHandler struct {
	svc RestaurantOrderServicer
}

// NewRestaurantOrderHandler creates a new RestaurantOrderHandler.
func NewRestaurantOrderHandler(svc RestaurantOrderServicer) *RestaurantOrderHandler {
	return &RestaurantOrderHandler{svc: svc}
}

// RegisterRoutes registers restaurant order endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter: /restaurants/{rid}/orders
func (h *RestaurantOrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID                    uuid.UUID             `json:"id"`
	UserID                uuid.UUID             `json:"user_id"`
	RestaurantID          uuid.UUID             `json:"restaurant_id"`
	DriverID              *uuid.UUID            `json:"driver_id"`
	Status                string                `json:"status"`
	Subtotal              string                `json:"subtotal"`
	DeliveryFee           string                `json:"delivery_fee"`
	TotalAmount           string                `json:"total_amount"`
	DeliveryAddress       string                `json:"delivery_address"`
	EstimatedDeliveryTime *time.Time            `json:"estimated_delivery_time"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
	RestaurantName        string                `json:"restaurant_name,omitempty"`
	RestaurantAddress     *string               `json:"restaurant_address,omitempty"`
	RestaurantPhone       *string               `json:"restaurant_phone,omitempty"`
	CustomerName          string                `json:"customer_name,omitempty"`
	CustomerPhone         *string               `json:"customer_phone,omitempty"`
	DriverName            *string               `json:"driver_name,omitempty"`
	DriverPhone           *string               `json:"driver_phone,omitempty"`
	Projection            projection.Projection `json:"projection"`
	Items                 []orderItemResponse   `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID           uuid.UUID `json:"id"`
	MealID       uuid.UUID `json:"meal_id"`
	MealName     string    `json:"meal_name"`
	MealImageURL *string   `json:"meal_image_url"`
	Quantity     int32     `json:"quantity"`
	UnitPrice    string    `json:"unit_price"`
	Subtotal     string    `json:"subtotal"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// List handles GET /restaurants/{rid}/orders.
func (h *RestaurantOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.svc.List(r.Context(), restaurantID, r.URL.Query().Get("status"), int32(limit), int32(offset))
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		log.Printf("ERROR: list restaurant orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: summariesToResponse(orders),
		Limit:  limit,
		Offset: offset,
	})
}

// UpdateStatus handles PATCH /restaurants/{rid}/orders/{id}/status.
func (h *RestaurantOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), restaurantID, orderID, claims.UserID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		case errors.Is(err, orderflow.ErrInvalidTransition):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderChanged):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order was updated by someone else, refresh and try again"})
		default:
			log.Printf("ERROR: update order status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// --- Helpers ---

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

// dbOrderToResponse converts a bare order row. Every order carries the
// projection of its current status.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		RestaurantID:    o.RestaurantID,
		DriverID:        uuidPtr(o.DriverID),
		Status:          o.Status,
		Subtotal:        numericToString(o.Subtotal),
		DeliveryFee:     numericToString(o.DeliveryFee),
		TotalAmount:     numericToString(o.TotalAmount),
		DeliveryAddress: o.DeliveryAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Projection:      projection.Project(o.Status),
	}
	if o.EstimatedDeliveryTime.Valid {
		t := o.EstimatedDeliveryTime.Time
		resp.EstimatedDeliveryTime = &t
	}
	return resp
}

func summaryToResponse(s database.OrderSummary) orderResponse {
	resp := dbOrderToResponse(s.Order)
	resp.RestaurantName = s.RestaurantName
	resp.RestaurantAddress = textPtr(s.RestaurantAddress)
	resp.RestaurantPhone = textPtr(s.RestaurantPhone)
	resp.CustomerName = s.CustomerName
	resp.CustomerPhone = textPtr(s.CustomerPhone)
	resp.DriverName = textPtr(s.DriverName)
	resp.DriverPhone = textPtr(s.DriverPhone)
	return resp
}

func summariesToResponse(orders []database.OrderSummary) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = summaryToResponse(o)
	}
	return resp
}

func dbOrderItemToResponse(item database.OrderItemRow) orderItemResponse {
	unit := decimal.Zero
	if d, err := decimal.NewFromString(numericToString(item.UnitPrice)); err == nil {
		unit = d
	}
	return orderItemResponse{
		ID:           item.ID,
		MealID:       item.MealID,
		MealName:     item.MealName,
		MealImageURL: textPtr(item.MealImageUrl),
		Quantity:     item.Quantity,
		UnitPrice:    unit.StringFixed(2),
		Subtotal:     unit.Mul(decimal.NewFromInt32(item.Quantity)).StringFixed(2),
	}
}
