package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/saborportugues/api/internal/auth"
	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/routing"
	"github.com/saborportugues/api/internal/service"
	"github.com/saborportugues/api/internal/session"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetProfileByEmail(ctx context.Context, email string) (database.Profile, error)
	GetProfileByID(ctx context.Context, id uuid.UUID) (database.Profile, error)
	CreateProfile(ctx context.Context, arg database.CreateProfileParams) (database.Profile, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
	slugs     routing.SlugLookup
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store AuthStore, jwtSecret string, slugs routing.SlugLookup) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret, slugs: slugs}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/sign-up", h.SignUp)
	r.Post("/auth/sign-in", h.SignIn)
	r.Post("/auth/refresh", h.Refresh)
	r.Get("/sign-up/confirmation", h.SignUpConfirmation)
}

// --- Request / Response types ---

type signUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FullName        string `json:"full_name"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Profile      session.Profile `json:"profile"`
	Destination  string          `json:"destination"`
}

// --- Handlers ---

// SignUp creates a customer account. Every other role is assigned by an admin.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := service.ValidateSignUp(service.SignUpRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FullName:        req.FullName,
	}); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: sign up: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	_, err = h.store.CreateProfile(r.Context(), database.CreateProfileParams{
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		HashedPassword:   string(hashed),
		FullName:         strings.TrimSpace(req.FullName),
		Role:             string(enum.RoleCustomer),
		AccountActivated: true,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		log.Printf("ERROR: sign up: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"redirect": "/sign-up/confirmation"})
}

// SignUpConfirmation handles GET /sign-up/confirmation.
func (h *AuthHandler) SignUpConfirmation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Your account was created. You can now sign in.",
		"next":    "/auth",
	})
}

// SignIn handles email + password authentication.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	p, err := h.store.GetProfileByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		log.Printf("ERROR: sign in: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.HashedPassword), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	if !p.AccountActivated {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "account is not activated yet"})
		return
	}

	h.respondWithTokens(r.Context(), w, p)
}

// Refresh exchanges a valid refresh token for a new access + refresh token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token is required"})
		return
	}

	userID, err := auth.ValidateRefreshToken(h.jwtSecret, req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}

	p, err := h.store.GetProfileByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: refresh: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if !p.AccountActivated {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "account is not activated yet"})
		return
	}

	h.respondWithTokens(r.Context(), w, p)
}

// --- Helpers ---

func (h *AuthHandler) respondWithTokens(ctx context.Context, w http.ResponseWriter, p database.Profile) {
	profile := session.ProfileFromRow(p)

	accessToken, err := auth.GenerateToken(h.jwtSecret, auth.Identity{
		UserID:         p.ID,
		Role:           p.Role,
		RestaurantID:   profile.RestaurantID.UUID,
		OrganizationID: profile.OrganizationID.UUID,
	})
	if err != nil {
		log.Printf("ERROR: sign access token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	refreshToken, err := auth.GenerateRefreshToken(h.jwtSecret, p.ID)
	if err != nil {
		log.Printf("ERROR: sign refresh token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Profile:      profile,
		Destination:  landing(ctx, profile, h.slugs),
	})
}

// landing loads profile into a fresh session and returns the path the
// redirector navigates to, the same way a page load resolves it.
func landing(ctx context.Context, profile session.Profile, slugs routing.SlugLookup) string {
	dest := routing.PathHome
	sc := session.New()
	stop := routing.NewRedirector(slugs, func(path string) { dest = path }).Observe(ctx, sc)
	defer stop()

	sc.Establish(profile.ID)
	sc.SetProfile(profile)
	return dest
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// writeRedirect answers a page request made by the wrong role.
func writeRedirect(w http.ResponseWriter, path string) {
	w.Header().Set("Location", path)
	writeJSON(w, http.StatusSeeOther, map[string]string{"redirect": path})
}

// currentProfile returns the caller's loaded profile. Routes using it are
// mounted behind middleware.LoadSession.
func currentProfile(w http.ResponseWriter, r *http.Request) (session.Profile, bool) {
	sc := session.FromContext(r.Context())
	if sc == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return session.Profile{}, false
	}
	p, ok := sc.Profile()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return session.Profile{}, false
	}
	return p, true
}
