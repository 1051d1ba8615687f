package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/saborportugues/api/internal/routing"
	"github.com/saborportugues/api/internal/session"
)

// MeHandler reports who the caller is and where they belong.
type MeHandler struct {
	slugs routing.SlugLookup
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(slugs routing.SlugLookup) *MeHandler {
	return &MeHandler{slugs: slugs}
}

// RegisterRoutes registers profile endpoints on the given Chi router.
// Expected to be mounted behind Authenticate and LoadSession.
func (h *MeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.Get)
	r.Get("/me/destination", h.Destination)

	// Short paths kept for old links.
	r.Get("/driver", h.Redirect)
	r.Get("/restaurant-admin", h.Redirect)
}

type meResponse struct {
	Profile     session.Profile `json:"profile"`
	Destination string          `json:"destination"`
}

// Get handles GET /me.
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := currentProfile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Profile:     p,
		Destination: routing.Resolve(r.Context(), p, h.slugs),
	})
}

// Destination handles GET /me/destination.
func (h *MeHandler) Destination(w http.ResponseWriter, r *http.Request) {
	p, ok := currentProfile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"destination": routing.Resolve(r.Context(), p, h.slugs)})
}

// Redirect sends the caller to their canonical landing page.
func (h *MeHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	p, ok := currentProfile(w, r)
	if !ok {
		return
	}
	writeRedirect(w, routing.Resolve(r.Context(), p, h.slugs))
}
