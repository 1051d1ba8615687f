package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"github.com/saborportugues/api/internal/auth"
	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/service"
)

// UserStore defines the database methods needed by admin user handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	CreateProfile(ctx context.Context, arg database.CreateProfileParams) (database.Profile, error)
	CreateDriver(ctx context.Context, id uuid.UUID) (database.Driver, error)
	ListDriverProfiles(ctx context.Context) ([]database.Profile, error)
	MarkActivationEmailSent(ctx context.Context, id uuid.UUID) (database.Profile, error)
	UpdateProfileRole(ctx context.Context, arg database.UpdateProfileRoleParams) (database.Profile, error)
}

// NewUserStore creates a UserStore from a DBTX (pool or tx).
type NewUserStore func(db database.DBTX) UserStore

// UserHandler handles staff and driver administration.
type UserHandler struct {
	pool      service.TxBeginner
	store     UserStore
	newStore  NewUserStore
	jwtSecret string
	publicURL string
	qr        service.QRGenerator
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(pool service.TxBeginner, store UserStore, newStore NewUserStore, jwtSecret, publicURL string, qr service.QRGenerator) *UserHandler {
	return &UserHandler{
		pool:      pool,
		store:     store,
		newStore:  newStore,
		jwtSecret: jwtSecret,
		publicURL: publicURL,
		qr:        qr,
	}
}

// RegisterRoutes registers admin endpoints on the given Chi router.
// Expected to be mounted behind RequireRole(platform_owner, super_admin): /admin
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/drivers", h.ListDrivers)
	r.Post("/drivers", h.CreateDriver)
	r.Post("/drivers/{id}/activation-link", h.ActivationLink)
	r.Put("/users/{id}/role", h.UpdateRole)
}

// --- Request / Response types ---

type createDriverRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type updateRoleRequest struct {
	Role           string `json:"role"`
	RestaurantID   string `json:"restaurant_id"`
	OrganizationID string `json:"organization_id"`
}

type userDetailResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	FullName            string     `json:"full_name"`
	Role                string     `json:"role"`
	RestaurantID        *uuid.UUID `json:"restaurant_id"`
	OrganizationID      *uuid.UUID `json:"organization_id"`
	Phone               *string    `json:"phone"`
	AccountActivated    bool       `json:"account_activated"`
	ActivationEmailSent bool       `json:"activation_email_sent"`
	CreatedAt           time.Time  `json:"created_at"`
}

type activationLinkResponse struct {
	URL       string    `json:"activation_url"`
	QRCodePNG string    `json:"qr_code_png"`
	ExpiresAt time.Time `json:"expires_at"`
}

// --- Handlers ---

// ListDrivers handles GET /admin/drivers.
func (h *UserHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.ListDriverProfiles(r.Context())
	if err != nil {
		log.Printf("ERROR: list drivers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userDetailResponse, len(profiles))
	for i, p := range profiles {
		resp[i] = toUserDetailResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateDriver handles POST /admin/drivers. The driver cannot sign in until
// they activate the account through an activation link.
func (h *UserHandler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req createDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and full_name are required"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email format"})
		return
	}

	// Placeholder until activation sets the real password.
	hashed, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: create driver: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	phone := pgtype.Text{}
	if p := strings.TrimSpace(req.Phone); p != "" {
		phone = pgtype.Text{String: p, Valid: true}
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: create driver: begin tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	store := h.newStore(tx)

	profile, err := store.CreateProfile(r.Context(), database.CreateProfileParams{
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           string(enum.RoleDriver),
		Phone:          phone,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already exists"})
			return
		}
		log.Printf("ERROR: create driver profile: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := store.CreateDriver(r.Context(), profile.ID); err != nil {
		log.Printf("ERROR: create driver row: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: create driver: commit: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toUserDetailResponse(profile))
}

// ActivationLink handles POST /admin/drivers/{id}/activation-link. It flags
// the driver as invited and returns the link with a QR code to hand over.
func (h *UserHandler) ActivationLink(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	if _, err := h.store.MarkActivationEmailSent(r.Context(), userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending driver with this ID"})
			return
		}
		log.Printf("ERROR: mark activation sent: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	token, err := auth.GenerateActivationToken(h.jwtSecret, userID)
	if err != nil {
		log.Printf("ERROR: sign activation token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	link := service.ActivationURL(h.publicURL, userID.String(), token)
	png, err := h.qr.Generate(link)
	if err != nil {
		log.Printf("ERROR: render activation QR: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, activationLinkResponse{
		URL:       link,
		QRCodePNG: base64.StdEncoding.EncodeToString(png),
		ExpiresAt: time.Now().Add(auth.ActivationTokenTTL).UTC(),
	})
}

// UpdateRole handles PUT /admin/users/{id}/role.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	restaurantID, err := parseOptionalUUID(req.RestaurantID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant_id"})
		return
	}
	organizationID, err := parseOptionalUUID(req.OrganizationID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid organization_id"})
		return
	}

	role := enum.Role(req.Role)
	if err := service.ValidateRoleScope(role, restaurantID, organizationID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	profile, err := h.store.UpdateProfileRole(r.Context(), database.UpdateProfileRoleParams{
		ID:             userID,
		Role:           string(role),
		RestaurantID:   pgtype.UUID{Bytes: restaurantID.UUID, Valid: restaurantID.Valid},
		OrganizationID: pgtype.UUID{Bytes: organizationID.UUID, Valid: organizationID.Valid},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "restaurant or organization does not exist"})
			return
		}
		log.Printf("ERROR: update role: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUserDetailResponse(profile))
}

// --- Helpers ---

func parseOptionalUUID(s string) (uuid.NullUUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func toUserDetailResponse(p database.Profile) userDetailResponse {
	return userDetailResponse{
		ID:                  p.ID,
		Email:               p.Email,
		FullName:            p.FullName,
		Role:                p.Role,
		RestaurantID:        uuidPtr(p.RestaurantID),
		OrganizationID:      uuidPtr(p.OrganizationID),
		Phone:               textPtr(p.Phone),
		AccountActivated:    p.AccountActivated,
		ActivationEmailSent: p.ActivationEmailSent,
		CreatedAt:           p.CreatedAt,
	}
}
