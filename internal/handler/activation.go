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
	"github.com/saborportugues/api/internal/service"
)

// InvalidActivationMessage is the only answer given for a link that cannot
// be used, whatever the reason.
const InvalidActivationMessage = "The activation link is invalid or has expired."

// ActivationServicer defines the service methods needed by activation handlers.
// Satisfied by *service.ActivationService; narrow interface for testability.
type ActivationServicer interface {
	Check(ctx context.Context, userID uuid.UUID, token string) (database.Profile, error)
	Activate(ctx context.Context, req service.ActivationRequest) (database.Profile, error)
}

// ActivationHandler serves the driver account activation page.
type ActivationHandler struct {
	svc ActivationServicer
}

// NewActivationHandler creates a new ActivationHandler.
func NewActivationHandler(svc ActivationServicer) *ActivationHandler {
	return &ActivationHandler{svc: svc}
}

// RegisterRoutes registers activation endpoints on the given Chi router.
// The link itself is the credential, so these are public.
func (h *ActivationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/driver-activation", h.Check)
	r.Post("/driver-activation", h.Activate)
}

// --- Request / Response types ---

type activationRequest struct {
	UserID          string `json:"user_id"`
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	VehicleType     string `json:"vehicle_type"`
	LicensePlate    string `json:"license_plate"`
}

type pendingDriverResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

// --- Handlers ---

// Check handles GET /driver-activation?user_id=&token=.
func (h *ActivationHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		writeInvalidActivation(w)
		return
	}

	p, err := h.svc.Check(r.Context(), userID, r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidActivation) {
			writeInvalidActivation(w)
			return
		}
		log.Printf("ERROR: check activation link: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, pendingDriverResponse{UserID: p.ID, Email: p.Email, FullName: p.FullName})
}

// Activate handles POST /driver-activation.
func (h *ActivationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req activationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := service.ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeInvalidActivation(w)
		return
	}

	_, err = h.svc.Activate(r.Context(), service.ActivationRequest{
		UserID:          userID,
		Token:           req.Token,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Phone:           req.Phone,
		Address:         req.Address,
		VehicleType:     req.VehicleType,
		LicensePlate:    req.LicensePlate,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidActivation) {
			writeInvalidActivation(w)
			return
		}
		log.Printf("ERROR: activate driver %s: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Your account is active. You can now sign in.",
		"redirect": "/auth",
	})
}

func writeInvalidActivation(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": InvalidActivationMessage, "recovery": "/auth"})
}
