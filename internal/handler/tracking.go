package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saborportugues/api/internal/auth"
	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/routing"
	"github.com/saborportugues/api/internal/session"
)

// TrackingStore defines the database methods needed by the order tracking page.
// Satisfied by *database.Queries; narrow interface for testability.
type TrackingStore interface {
	GetOrderForUser(ctx context.Context, arg database.GetOrderForUserParams) (database.OrderSummary, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemRow, error)
}

// TrackingHandler serves a customer's view of one order. Live updates for
// the same view are served by the ws package using LoadView.
type TrackingHandler struct {
	store TrackingStore
	slugs routing.SlugLookup
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(store TrackingStore, slugs routing.SlugLookup) *TrackingHandler {
	return &TrackingHandler{store: store, slugs: slugs}
}

// RegisterRoutes registers order tracking endpoints on the given Chi router.
// Expected to be mounted behind Authenticate and LoadSession.
func (h *TrackingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders/{id}", h.Get)
}

// orderNotFound is the body for an order that does not exist or belongs to
// someone else. The two cases are not told apart.
var orderNotFound = map[string]string{
	"error":    "order not found",
	"recovery": routing.PathCustomerDashboard,
}

// Get handles GET /orders/{id}.
func (h *TrackingHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := currentProfile(w, r)
	if !ok {
		return
	}
	if redirect, ok := routing.Guard(r.Context(), routing.OrderTracking, p, h.slugs); !ok {
		writeRedirect(w, redirect)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, orderNotFound)
		return
	}

	view, err := h.LoadView(r.Context(), orderID, p.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, orderNotFound)
			return
		}
		log.Printf("ERROR: load order %s: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if r.Context().Err() != nil {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// LoadView returns the tracking view of an order owned by userID, items
// included. pgx.ErrNoRows means there is no such order for this user.
func (h *TrackingHandler) LoadView(ctx context.Context, orderID, userID uuid.UUID) (any, error) {
	order, err := h.store.GetOrderForUser(ctx, database.GetOrderForUserParams{ID: orderID, UserID: userID})
	if err != nil {
		return nil, err
	}

	items, err := h.store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	resp := summaryToResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}
	return resp, nil
}

// GuardClaims applies the order tracking page guard to a token's identity.
// The WebSocket endpoint has no loaded session, only claims.
func (h *TrackingHandler) GuardClaims(ctx context.Context, claims *auth.Claims) (redirect string, ok bool) {
	p := session.Profile{
		ID:             claims.UserID,
		Role:           enum.Role(claims.Role),
		RestaurantID:   uuid.NullUUID{UUID: claims.RestaurantID, Valid: claims.RestaurantID != uuid.Nil},
		OrganizationID: uuid.NullUUID{UUID: claims.OrganizationID, Valid: claims.OrganizationID != uuid.Nil},
	}
	return routing.Guard(ctx, routing.OrderTracking, p, h.slugs)
}
