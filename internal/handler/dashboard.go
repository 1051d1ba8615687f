package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/routing"
	"github.com/saborportugues/api/internal/service"
)

// DashboardServicer defines the service methods needed by dashboard handlers.
// Satisfied by *service.DashboardService; narrow interface for testability.
type DashboardServicer interface {
	Customer(ctx context.Context, userID uuid.UUID) service.CustomerDashboard
	Organization(ctx context.Context, organizationID uuid.UUID) ([]database.Restaurant, error)
}

// DashboardHandler serves the customer and organization dashboards.
type DashboardHandler struct {
	svc   DashboardServicer
	slugs routing.SlugLookup
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(svc DashboardServicer, slugs routing.SlugLookup) *DashboardHandler {
	return &DashboardHandler{svc: svc, slugs: slugs}
}

// RegisterRoutes registers dashboard endpoints on the given Chi router.
// Expected to be mounted behind Authenticate and LoadSession.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/customer/dashboard", h.Customer)
	r.Get("/organization/dashboard", h.Organization)
}

// --- Response types ---

type restaurantResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Slug     *string   `json:"slug"`
	Phone    *string   `json:"phone"`
	Address  *string   `json:"address"`
	ImageURL *string   `json:"image_url"`
	Rating   string    `json:"rating"`
	IsActive bool      `json:"is_active"`
	Path     string    `json:"path"`
}

// customerDashboardResponse keeps each section separate. A section that
// failed to load is empty and carries its own error message.
type customerDashboardResponse struct {
	Orders             []orderResponse        `json:"orders"`
	OrdersError        string                 `json:"orders_error,omitempty"`
	Subscriptions      []subscriptionResponse `json:"subscriptions"`
	SubscriptionsError string                 `json:"subscriptions_error,omitempty"`
	Restaurants        []restaurantResponse   `json:"restaurants"`
	RestaurantsError   string                 `json:"restaurants_error,omitempty"`
}

type organizationDashboardResponse struct {
	OrganizationID *uuid.UUID           `json:"organization_id"`
	Restaurants    []restaurantResponse `json:"restaurants"`
}

// --- Handlers ---

// Customer handles GET /customer/dashboard. Other roles are redirected
// before anything is fetched.
func (h *DashboardHandler) Customer(w http.ResponseWriter, r *http.Request) {
	p, ok := currentProfile(w, r)
	if !ok {
		return
	}
	if redirect, ok := routing.Guard(r.Context(), routing.CustomerDashboard, p, h.slugs); !ok {
		writeRedirect(w, redirect)
		return
	}

	dash := h.svc.Customer(r.Context(), p.ID)
	if r.Context().Err() != nil {
		return
	}

	resp := customerDashboardResponse{
		Orders:        []orderResponse{},
		Subscriptions: []subscriptionResponse{},
		Restaurants:   []restaurantResponse{},
	}
	if dash.OrdersErr != nil {
		log.Printf("ERROR: customer dashboard orders for %s: %v", p.ID, dash.OrdersErr)
		resp.OrdersError = "could not load your orders"
	} else {
		resp.Orders = summariesToResponse(dash.Orders)
	}
	if dash.SubscriptionsErr != nil {
		log.Printf("ERROR: customer dashboard subscriptions for %s: %v", p.ID, dash.SubscriptionsErr)
		resp.SubscriptionsError = "could not load your subscriptions"
	} else {
		resp.Subscriptions = subscriptionsToResponse(dash.Subscriptions)
	}
	if dash.RestaurantsErr != nil {
		log.Printf("ERROR: customer dashboard restaurants: %v", dash.RestaurantsErr)
		resp.RestaurantsError = "could not load restaurants"
	} else {
		resp.Restaurants = restaurantsToResponse(dash.Restaurants)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Organization handles GET /organization/dashboard.
func (h *DashboardHandler) Organization(w http.ResponseWriter, r *http.Request) {
	p, ok := currentProfile(w, r)
	if !ok {
		return
	}
	if redirect, ok := routing.Guard(r.Context(), routing.OrgDashboard, p, h.slugs); !ok {
		writeRedirect(w, redirect)
		return
	}

	resp := organizationDashboardResponse{Restaurants: []restaurantResponse{}}
	if !p.OrganizationID.Valid {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	orgID := p.OrganizationID.UUID
	resp.OrganizationID = &orgID

	restaurants, err := h.svc.Organization(r.Context(), orgID)
	if err != nil {
		log.Printf("ERROR: organization dashboard %s: %v", orgID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp.Restaurants = restaurantsToResponse(restaurants)

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func restaurantsToResponse(rs []database.Restaurant) []restaurantResponse {
	resp := make([]restaurantResponse, len(rs))
	for i, rest := range rs {
		identifier := rest.ID.String()
		if rest.Slug.Valid && rest.Slug.String != "" {
			identifier = rest.Slug.String
		}
		resp[i] = restaurantResponse{
			ID:       rest.ID,
			Name:     rest.Name,
			Slug:     textPtr(rest.Slug),
			Phone:    textPtr(rest.Phone),
			Address:  textPtr(rest.Address),
			ImageURL: textPtr(rest.ImageUrl),
			Rating:   numericToString(rest.Rating),
			IsActive: rest.IsActive,
			Path:     "/restaurant/" + identifier,
		}
	}
	return resp
}
