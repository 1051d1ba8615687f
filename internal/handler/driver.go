package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/routing"
	"github.com/saborportugues/api/internal/service"
)

// DriverServicer defines the service methods needed by driver handlers.
// Satisfied by *service.DriverService; narrow interface for testability.
type DriverServicer interface {
	Dashboard(ctx context.Context, driverID uuid.UUID) (*service.DriverDashboard, error)
	ListAvailable(ctx context.Context) ([]database.OrderSummary, error)
	SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) (database.Driver, error)
	Claim(ctx context.Context, driverID, orderID uuid.UUID) (database.Order, error)
	Complete(ctx context.Context, driverID, orderID uuid.UUID) (database.Order, error)
}

// DriverHandler serves the driver dashboard and its delivery actions.
type DriverHandler struct {
	svc   DriverServicer
	slugs routing.SlugLookup
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(svc DriverServicer, slugs routing.SlugLookup) *DriverHandler {
	return &DriverHandler{svc: svc, slugs: slugs}
}

// RegisterRoutes registers driver endpoints on the given Chi router.
// Expected to be mounted behind Authenticate and LoadSession.
func (h *DriverHandler) RegisterRoutes(r chi.Router) {
	r.Get("/driver/dashboard", h.Dashboard)
	r.Put("/driver/availability", h.SetAvailability)
	r.Post("/driver/orders/{id}/claim", h.Claim)
	r.Post("/driver/orders/{id}/complete", h.Complete)
}

// --- Request / Response types ---

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available"`
}

type driverResponse struct {
	ID               uuid.UUID `json:"id"`
	IsAvailable      bool      `json:"is_available"`
	VehicleType      *string   `json:"vehicle_type"`
	LicensePlate     *string   `json:"license_plate"`
	ProfileCompleted bool      `json:"profile_completed"`
}

type driverStatsResponse struct {
	Deliveries int64  `json:"deliveries"`
	Earnings   string `json:"earnings"`
}

// driverDashboardResponse keeps each section separate, like the customer
// dashboard. A section that failed to load carries its own error message.
type driverDashboardResponse struct {
	Driver         driverResponse       `json:"driver"`
	Available      []orderResponse      `json:"available"`
	AvailableError string               `json:"available_error,omitempty"`
	Active         []orderResponse      `json:"active"`
	ActiveError    string               `json:"active_error,omitempty"`
	Today          *driverStatsResponse `json:"today"`
	TodayError     string               `json:"today_error,omitempty"`
}

// claimConflictResponse tells a driver who lost a claim what is still open.
type claimConflictResponse struct {
	Error     string          `json:"error"`
	Available []orderResponse `json:"available"`
}

// --- Handlers ---

// Dashboard handles GET /driver/dashboard.
func (h *DriverHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.driver(w, r)
	if !ok {
		return
	}

	dash, err := h.svc.Dashboard(r.Context(), driverID)
	if err != nil {
		if errors.Is(err, service.ErrDriverNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "driver profile not found", "recovery": routing.PathHome})
			return
		}
		log.Printf("ERROR: driver dashboard %s: %v", driverID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if r.Context().Err() != nil {
		return
	}

	resp := driverDashboardResponse{
		Driver:    toDriverResponse(dash.Driver),
		Available: []orderResponse{},
		Active:    []orderResponse{},
	}
	if dash.AvailableErr != nil {
		log.Printf("ERROR: driver dashboard available for %s: %v", driverID, dash.AvailableErr)
		resp.AvailableError = "could not load available deliveries"
	} else {
		resp.Available = summariesToResponse(dash.Available)
	}
	if dash.ActiveErr != nil {
		log.Printf("ERROR: driver dashboard active for %s: %v", driverID, dash.ActiveErr)
		resp.ActiveError = "could not load your deliveries"
	} else {
		resp.Active = summariesToResponse(dash.Active)
	}
	if dash.TodayErr != nil {
		log.Printf("ERROR: driver dashboard stats for %s: %v", driverID, dash.TodayErr)
		resp.TodayError = "could not load today's totals"
	} else {
		resp.Today = &driverStatsResponse{
			Deliveries: dash.Today.Deliveries,
			Earnings:   dash.Today.Earnings.StringFixed(2),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// SetAvailability handles PUT /driver/availability. The response is the
// stored flag, which may differ from the one requested.
func (h *DriverHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.driver(w, r)
	if !ok {
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.IsAvailable == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is_available is required"})
		return
	}

	driver, err := h.svc.SetAvailability(r.Context(), driverID, *req.IsAvailable)
	if err != nil {
		if errors.Is(err, service.ErrDriverNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "driver profile not found"})
			return
		}
		log.Printf("ERROR: set availability %s: %v", driverID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toDriverResponse(driver))
}

// Claim handles POST /driver/orders/{id}/claim. A lost race answers 409
// with the open deliveries re-read after the failed claim.
func (h *DriverHandler) Claim(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.driver(w, r)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.Claim(r.Context(), driverID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderUnavailable):
			available, lerr := h.svc.ListAvailable(r.Context())
			if lerr != nil {
				log.Printf("ERROR: re-list available after lost claim: %v", lerr)
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusConflict, claimConflictResponse{
				Error:     err.Error(),
				Available: summariesToResponse(available),
			})
		case errors.Is(err, service.ErrDriverOffline):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "go online before accepting deliveries"})
		case errors.Is(err, service.ErrDriverNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "driver profile not found"})
		default:
			log.Printf("ERROR: claim order %s: %v", orderID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// Complete handles POST /driver/orders/{id}/complete.
func (h *DriverHandler) Complete(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.driver(w, r)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.Complete(r.Context(), driverID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found", "recovery": routing.PathDriverDashboard})
		case errors.Is(err, service.ErrNotDeliverable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order cannot be marked as delivered"})
		default:
			log.Printf("ERROR: complete order %s: %v", orderID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// --- Helpers ---

// driver returns the caller's id when they are a driver and redirects
// everyone else to their own landing page.
func (h *DriverHandler) driver(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	p, ok := currentProfile(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if redirect, ok := routing.Guard(r.Context(), routing.DriverDashboard, p, h.slugs); !ok {
		writeRedirect(w, redirect)
		return uuid.Nil, false
	}
	return p.ID, true
}

func toDriverResponse(d database.Driver) driverResponse {
	return driverResponse{
		ID:               d.ID,
		IsAvailable:      d.IsAvailable,
		VehicleType:      textPtr(d.VehicleType),
		LicensePlate:     textPtr(d.LicensePlate),
		ProfileCompleted: d.ProfileCompleted,
	}
}
