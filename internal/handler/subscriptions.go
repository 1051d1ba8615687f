package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/payment"
	"github.com/saborportugues/api/internal/routing"
	"github.com/saborportugues/api/internal/service"
)

// SubscriptionServicer defines the service methods needed by subscription handlers.
// Satisfied by *service.SubscriptionService; narrow interface for testability.
type SubscriptionServicer interface {
	Plans(ctx context.Context) ([]database.SubscriptionPlan, error)
	List(ctx context.Context, userID uuid.UUID) ([]database.SubscriptionWithPlan, error)
	Checkout(ctx context.Context, in service.CheckoutInput) (payment.CheckoutSession, error)
	Confirmation(ctx context.Context, userID uuid.UUID, sessionID string) (database.SubscriptionWithPlan, error)
	Pause(ctx context.Context, userID, subID uuid.UUID) (database.Subscription, error)
	Reactivate(ctx context.Context, userID, subID uuid.UUID) (database.Subscription, error)
	Cancel(ctx context.Context, userID, subID uuid.UUID) (database.Subscription, error)
}

// SubscriptionHandler handles the meal plan catalog and subscription management.
type SubscriptionHandler struct {
	svc   SubscriptionServicer
	slugs routing.SlugLookup
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(svc SubscriptionServicer, slugs routing.SlugLookup) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, slugs: slugs}
}

// RegisterPublicRoutes registers the plan catalog, which needs no session.
func (h *SubscriptionHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/subscription-plans", h.Plans)
}

// RegisterRoutes registers subscription endpoints on the given Chi router.
// Expected to be mounted behind Authenticate and LoadSession.
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/subscriptions", h.List)
	r.Post("/subscriptions/checkout", h.Checkout)
	r.Get("/subscriptions/confirmation", h.Confirmation)
	r.Post("/subscriptions/{id}/pause", h.Pause)
	r.Post("/subscriptions/{id}/reactivate", h.Reactivate)
	r.Post("/subscriptions/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type checkoutRequest struct {
	PlanID   string `json:"plan_id"`
	Interval string `json:"interval"`
}

type checkoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type planResponse struct {
	ID            uuid.UUID  `json:"id"`
	RestaurantID  *uuid.UUID `json:"restaurant_id"`
	Name          string     `json:"name"`
	MealsPerDay   int32      `json:"meals_per_day"`
	DeliveryDays  []string   `json:"delivery_days"`
	PricePerWeek  string     `json:"price_per_week"`
	PricePerMonth string     `json:"price_per_month"`
}

type subscriptionResponse struct {
	ID              uuid.UUID  `json:"id"`
	PlanID          uuid.UUID  `json:"plan_id"`
	Status          string     `json:"status"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	NextBillingDate *time.Time `json:"next_billing_date"`
	PlanName        string     `json:"plan_name,omitempty"`
	MealsPerDay     int32      `json:"meals_per_day,omitempty"`
	DeliveryDays    []string   `json:"delivery_days,omitempty"`
	PricePerWeek    string     `json:"price_per_week,omitempty"`
	PricePerMonth   string     `json:"price_per_month,omitempty"`
	RestaurantName  *string    `json:"restaurant_name,omitempty"`
}

// --- Handlers ---

// Plans handles GET /subscription-plans.
func (h *SubscriptionHandler) Plans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.Plans(r.Context())
	if err != nil {
		log.Printf("ERROR: list plans: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]planResponse, len(plans))
	for i, p := range plans {
		resp[i] = planResponse{
			ID:            p.ID,
			RestaurantID:  uuidPtr(p.RestaurantID),
			Name:          p.Name,
			MealsPerDay:   p.MealsPerDay,
			DeliveryDays:  p.DeliveryDays,
			PricePerWeek:  numericToString(p.PricePerWeek),
			PricePerMonth: numericToString(p.PricePerMonth),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /subscriptions.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := currentProfile(w, r)
	if !ok {
		return
	}
	if redirect, ok := routing.Guard(r.Context(), routing.Subscriptions, p, h.slugs); !ok {
		writeRedirect(w, redirect)
		return
	}

	subs, err := h.svc.List(r.Context(), p.ID)
	if err != nil {
		log.Printf("ERROR: list subscriptions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, subscriptionsToResponse(subs))
}

// Checkout handles POST /subscriptions/checkout and returns the hosted
// payment page to redirect to.
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	p, ok := currentProfile(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid plan_id"})
		return
	}

	sess, err := h.svc.Checkout(r.Context(), service.CheckoutInput{
		UserID:   p.ID,
		Email:    p.Email,
		PlanID:   planID,
		Interval: req.Interval,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInterval):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrPlanNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "plan not found"})
		case errors.Is(err, service.ErrPriceNotConfigured):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, payment.ErrPaymentsDisabled):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "payments are not available right now"})
		default:
			log.Printf("ERROR: checkout: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{SessionID: sess.ID, CheckoutURL: sess.URL})
}

// Confirmation handles GET /subscriptions/confirmation?session_id=.
func (h *SubscriptionHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	p, ok := currentProfile(w, r)
	if !ok {
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	sub, err := h.svc.Confirmation(r.Context(), p.ID, sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found", "recovery": "/subscriptions"})
			return
		}
		log.Printf("ERROR: subscription confirmation: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, subscriptionWithPlanToResponse(sub))
}

// Pause handles POST /subscriptions/{id}/pause.
func (h *SubscriptionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.svc.Pause)
}

// Reactivate handles POST /subscriptions/{id}/reactivate.
func (h *SubscriptionHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.svc.Reactivate)
}

// Cancel handles POST /subscriptions/{id}/cancel.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.svc.Cancel)
}

func (h *SubscriptionHandler) change(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID, subID uuid.UUID) (database.Subscription, error)) {
	p, ok := currentProfile(w, r)
	if !ok {
		return
	}

	subID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid subscription ID"})
		return
	}

	sub, err := apply(r.Context(), p.ID, subID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubscriptionNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found", "recovery": "/subscriptions"})
		case errors.Is(err, service.ErrSubscriptionState):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: change subscription %s: %v", subID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, subscriptionToResponse(sub))
}

// --- Helpers ---

func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func subscriptionToResponse(s database.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:              s.ID,
		PlanID:          s.PlanID,
		Status:          s.Status,
		StartDate:       datePtr(s.StartDate),
		EndDate:         datePtr(s.EndDate),
		NextBillingDate: datePtr(s.NextBillingDate),
	}
}

func subscriptionWithPlanToResponse(s database.SubscriptionWithPlan) subscriptionResponse {
	resp := subscriptionToResponse(s.Subscription)
	resp.PlanName = s.PlanName
	resp.MealsPerDay = s.MealsPerDay
	resp.DeliveryDays = s.DeliveryDays
	resp.PricePerWeek = numericToString(s.PricePerWeek)
	resp.PricePerMonth = numericToString(s.PricePerMonth)
	resp.RestaurantName = textPtr(s.RestaurantName)
	return resp
}

func subscriptionsToResponse(subs []database.SubscriptionWithPlan) []subscriptionResponse {
	resp := make([]subscriptionResponse, len(subs))
	for i, s := range subs {
		resp[i] = subscriptionWithPlanToResponse(s)
	}
	return resp
}
