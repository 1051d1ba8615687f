package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const planColumns = `p.id, p.restaurant_id, p.name, p.meals_per_day, p.delivery_days, p.price_per_week,
    p.price_per_month, p.stripe_price_week, p.stripe_price_month, p.is_active`

const subscriptionColumns = `s.id, s.user_id, s.plan_id, s.status, s.start_date, s.end_date,
    s.next_billing_date, s.checkout_session_id, s.created_at, s.updated_at`

const subscriptionWithPlanSelect = `SELECT ` + subscriptionColumns + `,
    p.name, p.meals_per_day, p.delivery_days, p.price_per_week, p.price_per_month, r.name
FROM subscriptions s
JOIN subscription_plans p ON p.id = s.plan_id
LEFT JOIN restaurants r ON r.id = p.restaurant_id
`

func scanPlan(row interface{ Scan(...any) error }) (SubscriptionPlan, error) {
	var i SubscriptionPlan
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.MealsPerDay,
		&i.DeliveryDays,
		&i.PricePerWeek,
		&i.PricePerMonth,
		&i.StripePriceWeek,
		&i.StripePriceMonth,
		&i.IsActive,
	)
	return i, err
}

func subscriptionFields(i *Subscription) []any {
	return []any{
		&i.ID,
		&i.UserID,
		&i.PlanID,
		&i.Status,
		&i.StartDate,
		&i.EndDate,
		&i.NextBillingDate,
		&i.CheckoutSessionID,
		&i.CreatedAt,
		&i.UpdatedAt,
	}
}

func scanSubscription(row interface{ Scan(...any) error }) (Subscription, error) {
	var i Subscription
	err := row.Scan(subscriptionFields(&i)...)
	return i, err
}

func scanSubscriptionWithPlan(row interface{ Scan(...any) error }) (SubscriptionWithPlan, error) {
	var i SubscriptionWithPlan
	dest := append(subscriptionFields(&i.Subscription),
		&i.PlanName,
		&i.MealsPerDay,
		&i.DeliveryDays,
		&i.PricePerWeek,
		&i.PricePerMonth,
		&i.RestaurantName,
	)
	err := row.Scan(dest...)
	return i, err
}

const listActivePlans = `-- name: ListActivePlans :many
SELECT ` + planColumns + ` FROM subscription_plans p
WHERE p.is_active = true
ORDER BY p.price_per_week
`

func (q *Queries) ListActivePlans(ctx context.Context) ([]SubscriptionPlan, error) {
	rows, err := q.db.Query(ctx, listActivePlans)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SubscriptionPlan{}
	for rows.Next() {
		i, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getActivePlan = `-- name: GetActivePlan :one
SELECT ` + planColumns + ` FROM subscription_plans p WHERE p.id = $1 AND p.is_active = true
`

func (q *Queries) GetActivePlan(ctx context.Context, id uuid.UUID) (SubscriptionPlan, error) {
	return scanPlan(q.db.QueryRow(ctx, getActivePlan, id))
}

const listSubscriptionsByUser = `-- name: ListSubscriptionsByUser :many
` + subscriptionWithPlanSelect + `WHERE s.user_id = $1 AND s.status <> 'cancelled'
ORDER BY s.created_at DESC
`

// ListSubscriptionsByUser excludes cancelled subscriptions.
func (q *Queries) ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]SubscriptionWithPlan, error) {
	rows, err := q.db.Query(ctx, listSubscriptionsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SubscriptionWithPlan{}
	for rows.Next() {
		i, err := scanSubscriptionWithPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getSubscriptionForUser = `-- name: GetSubscriptionForUser :one
SELECT ` + subscriptionColumns + ` FROM subscriptions s WHERE s.id = $1 AND s.user_id = $2
`

type GetSubscriptionForUserParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

func (q *Queries) GetSubscriptionForUser(ctx context.Context, arg GetSubscriptionForUserParams) (Subscription, error) {
	return scanSubscription(q.db.QueryRow(ctx, getSubscriptionForUser, arg.ID, arg.UserID))
}

const getSubscriptionByCheckoutSession = `-- name: GetSubscriptionByCheckoutSession :one
` + subscriptionWithPlanSelect + `WHERE s.checkout_session_id = $1 AND s.user_id = $2
`

type GetSubscriptionByCheckoutSessionParams struct {
	CheckoutSessionID string    `json:"checkout_session_id"`
	UserID            uuid.UUID `json:"user_id"`
}

func (q *Queries) GetSubscriptionByCheckoutSession(ctx context.Context, arg GetSubscriptionByCheckoutSessionParams) (SubscriptionWithPlan, error) {
	row := q.db.QueryRow(ctx, getSubscriptionByCheckoutSession, arg.CheckoutSessionID, arg.UserID)
	return scanSubscriptionWithPlan(row)
}

const createPendingSubscription = `-- name: CreatePendingSubscription :one
INSERT INTO subscriptions AS s (user_id, plan_id, status, checkout_session_id)
VALUES ($1, $2, 'pending', $3)
RETURNING ` + subscriptionColumns + `
`

type CreatePendingSubscriptionParams struct {
	UserID            uuid.UUID   `json:"user_id"`
	PlanID            uuid.UUID   `json:"plan_id"`
	CheckoutSessionID pgtype.Text `json:"checkout_session_id"`
}

func (q *Queries) CreatePendingSubscription(ctx context.Context, arg CreatePendingSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRow(ctx, createPendingSubscription, arg.UserID, arg.PlanID, arg.CheckoutSessionID)
	return scanSubscription(row)
}

const transitionSubscription = `-- name: TransitionSubscription :one
UPDATE subscriptions s SET status = $3::text, updated_at = now(),
    end_date = CASE WHEN $3::text = 'cancelled' THEN current_date ELSE s.end_date END
WHERE s.id = $1 AND s.user_id = $2 AND s.status = ANY($4::text[])
RETURNING ` + subscriptionColumns + `
`

type TransitionSubscriptionParams struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Status       string    `json:"status"`
	FromStatuses []string  `json:"from_statuses"`
}

// TransitionSubscription returns pgx.ErrNoRows when the subscription is not
// in one of FromStatuses.
func (q *Queries) TransitionSubscription(ctx context.Context, arg TransitionSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRow(ctx, transitionSubscription, arg.ID, arg.UserID, arg.Status, arg.FromStatuses)
	return scanSubscription(row)
}
