package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"github.com/saborportugues/api/internal/auth"
	"github.com/saborportugues/api/internal/database"
)

// ErrInvalidActivation covers every reason an activation link is refused.
// Callers must not distinguish between them.
var ErrInvalidActivation = errors.New("invalid or expired activation link")

// ActivationStore defines the DB methods needed to activate a driver.
// Satisfied by *database.Queries (and its WithTx variant).
type ActivationStore interface {
	GetPendingDriverProfile(ctx context.Context, id uuid.UUID) (database.Profile, error)
	ActivateDriverProfile(ctx context.Context, arg database.ActivateDriverProfileParams) (database.Profile, error)
	UpdateDriverVehicle(ctx context.Context, arg database.UpdateDriverVehicleParams) (database.Driver, error)
}

// NewActivationStore creates an ActivationStore from a DBTX (pool or tx).
type NewActivationStore func(db database.DBTX) ActivationStore

// ActivationRequest is the activation form.
type ActivationRequest struct {
	UserID          uuid.UUID
	Token           string
	Password        string
	ConfirmPassword string
	Phone           string
	Address         string
	VehicleType     string
	LicensePlate    string
}

type ActivationService struct {
	pool      TxBeginner
	store     ActivationStore
	newStore  NewActivationStore
	jwtSecret string
}

func NewActivationService(pool TxBeginner, store ActivationStore, newStore NewActivationStore, jwtSecret string) *ActivationService {
	return &ActivationService{pool: pool, store: store, newStore: newStore, jwtSecret: jwtSecret}
}

// Check returns the pending driver profile a link points at.
func (s *ActivationService) Check(ctx context.Context, userID uuid.UUID, token string) (database.Profile, error) {
	if err := auth.ValidateActivationToken(s.jwtSecret, token, userID); err != nil {
		return database.Profile{}, ErrInvalidActivation
	}
	p, err := s.store.GetPendingDriverProfile(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Profile{}, ErrInvalidActivation
	}
	if err != nil {
		return database.Profile{}, fmt.Errorf("get pending driver: %w", err)
	}
	return p, nil
}

// Activate sets the driver's password and contact details and marks the
// account active. Form validation runs before the link is checked.
func (s *ActivationService) Activate(ctx context.Context, req ActivationRequest) (database.Profile, error) {
	if err := ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		return database.Profile{}, err
	}
	if err := auth.ValidateActivationToken(s.jwtSecret, req.Token, req.UserID); err != nil {
		return database.Profile{}, ErrInvalidActivation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return database.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Profile{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	profile, err := store.ActivateDriverProfile(ctx, database.ActivateDriverProfileParams{
		ID:             req.UserID,
		HashedPassword: string(hash),
		Phone:          optionalText(req.Phone),
		Address:        optionalText(req.Address),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Profile{}, ErrInvalidActivation
	}
	if err != nil {
		return database.Profile{}, fmt.Errorf("activate profile: %w", err)
	}

	_, err = store.UpdateDriverVehicle(ctx, database.UpdateDriverVehicleParams{
		ID:           req.UserID,
		VehicleType:  optionalText(req.VehicleType),
		LicensePlate: optionalText(req.LicensePlate),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		log.Printf("WARN: activated driver %s has no drivers row", req.UserID)
	} else if err != nil {
		return database.Profile{}, fmt.Errorf("update vehicle: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Profile{}, fmt.Errorf("commit tx: %w", err)
	}
	return profile, nil
}

func optionalText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	return pgtype.Text{String: s, Valid: s != ""}
}
