package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/payment"
)

// Errors returned by the subscription service.
var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrInvalidInterval      = errors.New("interval must be week or month")
	ErrPriceNotConfigured   = errors.New("plan has no price for this interval")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionState    = errors.New("subscription cannot make this change")
)

// SubscriptionStore defines the DB methods needed for meal plan subscriptions.
// Satisfied by *database.Queries.
type SubscriptionStore interface {
	ListActivePlans(ctx context.Context) ([]database.SubscriptionPlan, error)
	GetActivePlan(ctx context.Context, id uuid.UUID) (database.SubscriptionPlan, error)
	ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]database.SubscriptionWithPlan, error)
	GetSubscriptionForUser(ctx context.Context, arg database.GetSubscriptionForUserParams) (database.Subscription, error)
	GetSubscriptionByCheckoutSession(ctx context.Context, arg database.GetSubscriptionByCheckoutSessionParams) (database.SubscriptionWithPlan, error)
	CreatePendingSubscription(ctx context.Context, arg database.CreatePendingSubscriptionParams) (database.Subscription, error)
	TransitionSubscription(ctx context.Context, arg database.TransitionSubscriptionParams) (database.Subscription, error)
}

// CheckoutInput starts a subscription purchase.
type CheckoutInput struct {
	UserID   uuid.UUID
	Email    string
	PlanID   uuid.UUID
	Interval string
}

type SubscriptionService struct {
	store     SubscriptionStore
	checkout  payment.Checkout
	publicURL string
}

func NewSubscriptionService(store SubscriptionStore, checkout payment.Checkout, publicURL string) *SubscriptionService {
	return &SubscriptionService{store: store, checkout: checkout, publicURL: publicURL}
}

func (s *SubscriptionService) Plans(ctx context.Context) ([]database.SubscriptionPlan, error) {
	return s.store.ListActivePlans(ctx)
}

// List returns the user's subscriptions, cancelled ones excluded.
func (s *SubscriptionService) List(ctx context.Context, userID uuid.UUID) ([]database.SubscriptionWithPlan, error) {
	return s.store.ListSubscriptionsByUser(ctx, userID)
}

// Checkout creates a hosted checkout session and records a pending
// subscription tied to it.
func (s *SubscriptionService) Checkout(ctx context.Context, in CheckoutInput) (payment.CheckoutSession, error) {
	if in.Interval != enum.BillingIntervalWeek && in.Interval != enum.BillingIntervalMonth {
		return payment.CheckoutSession{}, ErrInvalidInterval
	}

	plan, err := s.store.GetActivePlan(ctx, in.PlanID)
	if errors.Is(err, pgx.ErrNoRows) {
		return payment.CheckoutSession{}, ErrPlanNotFound
	}
	if err != nil {
		return payment.CheckoutSession{}, fmt.Errorf("get plan: %w", err)
	}

	price := plan.StripePriceWeek
	if in.Interval == enum.BillingIntervalMonth {
		price = plan.StripePriceMonth
	}
	if !price.Valid || price.String == "" {
		return payment.CheckoutSession{}, ErrPriceNotConfigured
	}

	sess, err := s.checkout.CreateSubscriptionCheckout(ctx, payment.CheckoutRequest{
		UserID:        in.UserID,
		PlanID:        plan.ID,
		PriceID:       price.String,
		Interval:      in.Interval,
		CustomerEmail: in.Email,
		SuccessURL:    s.publicURL + "/subscriptions/confirmation?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.publicURL + "/subscriptions",
	})
	if err != nil {
		return payment.CheckoutSession{}, err
	}

	_, err = s.store.CreatePendingSubscription(ctx, database.CreatePendingSubscriptionParams{
		UserID:            in.UserID,
		PlanID:            plan.ID,
		CheckoutSessionID: pgtype.Text{String: sess.ID, Valid: true},
	})
	if err != nil {
		return payment.CheckoutSession{}, fmt.Errorf("record pending subscription: %w", err)
	}
	return sess, nil
}

// Confirmation returns the subscription created by a checkout session.
func (s *SubscriptionService) Confirmation(ctx context.Context, userID uuid.UUID, sessionID string) (database.SubscriptionWithPlan, error) {
	sub, err := s.store.GetSubscriptionByCheckoutSession(ctx, database.GetSubscriptionByCheckoutSessionParams{
		CheckoutSessionID: sessionID,
		UserID:            userID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.SubscriptionWithPlan{}, ErrSubscriptionNotFound
	}
	if err != nil {
		return database.SubscriptionWithPlan{}, fmt.Errorf("get subscription by session: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionService) Pause(ctx context.Context, userID, subID uuid.UUID) (database.Subscription, error) {
	return s.transition(ctx, userID, subID, enum.SubscriptionStatusPaused, enum.SubscriptionStatusActive)
}

func (s *SubscriptionService) Reactivate(ctx context.Context, userID, subID uuid.UUID) (database.Subscription, error) {
	return s.transition(ctx, userID, subID, enum.SubscriptionStatusActive, enum.SubscriptionStatusPaused)
}

func (s *SubscriptionService) Cancel(ctx context.Context, userID, subID uuid.UUID) (database.Subscription, error) {
	return s.transition(ctx, userID, subID, enum.SubscriptionStatusCancelled,
		enum.SubscriptionStatusPending, enum.SubscriptionStatusActive, enum.SubscriptionStatusPaused)
}

func (s *SubscriptionService) transition(ctx context.Context, userID, subID uuid.UUID, to enum.SubscriptionStatus, from ...enum.SubscriptionStatus) (database.Subscription, error) {
	fromStrs := make([]string, len(from))
	for i, f := range from {
		fromStrs[i] = string(f)
	}

	sub, err := s.store.TransitionSubscription(ctx, database.TransitionSubscriptionParams{
		ID:           subID,
		UserID:       userID,
		Status:       string(to),
		FromStatuses: fromStrs,
	})
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}

	// Nothing updated: missing or in the wrong state.
	_, err = s.store.GetSubscriptionForUser(ctx, database.GetSubscriptionForUserParams{ID: subID, UserID: userID})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Subscription{}, ErrSubscriptionNotFound
	}
	if err != nil {
		return database.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return database.Subscription{}, ErrSubscriptionState
}
