// Package payment creates hosted checkout sessions for meal plan subscriptions.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// ErrPaymentsDisabled is returned when no payment provider is configured.
var ErrPaymentsDisabled = errors.New("payments are not configured")

// CheckoutRequest describes one subscription purchase.
type CheckoutRequest struct {
	UserID        uuid.UUID
	PlanID        uuid.UUID
	PriceID       string
	Interval      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is where the customer is sent to pay.
type CheckoutSession struct {
	ID  string
	URL string
}

// Checkout creates hosted checkout sessions.
type Checkout interface {
	CreateSubscriptionCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// StripeCheckout creates Stripe Checkout sessions in subscription mode.
type StripeCheckout struct {
	api *client.API
}

func NewStripeCheckout(secretKey string) *StripeCheckout {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeCheckout{api: sc}
}

func (s *StripeCheckout) CreateSubscriptionCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	params := sessionParams(req)
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func sessionParams(req CheckoutRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID.String()),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("user_id", req.UserID.String())
	params.AddMetadata("plan_id", req.PlanID.String())
	params.AddMetadata("interval", req.Interval)
	return params
}

// Disabled is used when no Stripe key is configured.
type Disabled struct{}

func (Disabled) CreateSubscriptionCheckout(context.Context, CheckoutRequest) (CheckoutSession, error) {
	return CheckoutSession{}, ErrPaymentsDisabled
}
