package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Profile struct {
	ID                  uuid.UUID          `json:"id"`
	Email               string             `json:"email"`
	HashedPassword      string             `json:"-"`
	FullName            string             `json:"full_name"`
	Role                string             `json:"role"`
	RestaurantID        pgtype.UUID        `json:"restaurant_id"`
	OrganizationID      pgtype.UUID        `json:"organization_id"`
	Phone               pgtype.Text        `json:"phone"`
	Address             pgtype.Text        `json:"address"`
	AccountActivated    bool               `json:"account_activated"`
	ActivationEmailSent bool               `json:"activation_email_sent"`
	AccountActivatedAt  pgtype.Timestamptz `json:"account_activated_at"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

type Restaurant struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID pgtype.UUID    `json:"organization_id"`
	Name           string         `json:"name"`
	Slug           pgtype.Text    `json:"slug"`
	Phone          pgtype.Text    `json:"phone"`
	Address        pgtype.Text    `json:"address"`
	ImageUrl       pgtype.Text    `json:"image_url"`
	Rating         pgtype.Numeric `json:"rating"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
}

type Driver struct {
	ID               uuid.UUID   `json:"id"`
	IsAvailable      bool        `json:"is_available"`
	VehicleType      pgtype.Text `json:"vehicle_type"`
	LicensePlate     pgtype.Text `json:"license_plate"`
	ProfileCompleted bool        `json:"profile_completed"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type Order struct {
	ID                    uuid.UUID          `json:"id"`
	UserID                uuid.UUID          `json:"user_id"`
	RestaurantID          uuid.UUID          `json:"restaurant_id"`
	DriverID              pgtype.UUID        `json:"driver_id"`
	Status                string             `json:"status"`
	Subtotal              pgtype.Numeric     `json:"subtotal"`
	DeliveryFee           pgtype.Numeric     `json:"delivery_fee"`
	TotalAmount           pgtype.Numeric     `json:"total_amount"`
	DeliveryAddress       string             `json:"delivery_address"`
	EstimatedDeliveryTime pgtype.Timestamptz `json:"estimated_delivery_time"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// OrderSummary is an order joined with the restaurant, customer and driver
// fields the order cards render.
type OrderSummary struct {
	Order
	RestaurantName    string      `json:"restaurant_name"`
	RestaurantAddress pgtype.Text `json:"restaurant_address"`
	RestaurantPhone   pgtype.Text `json:"restaurant_phone"`
	CustomerName      string      `json:"customer_name"`
	CustomerPhone     pgtype.Text `json:"customer_phone"`
	DriverName        pgtype.Text `json:"driver_name"`
	DriverPhone       pgtype.Text `json:"driver_phone"`
}

type OrderItemRow struct {
	ID           uuid.UUID      `json:"id"`
	OrderID      uuid.UUID      `json:"order_id"`
	MealID       uuid.UUID      `json:"meal_id"`
	Quantity     int32          `json:"quantity"`
	UnitPrice    pgtype.Numeric `json:"unit_price"`
	MealName     string         `json:"meal_name"`
	MealImageUrl pgtype.Text    `json:"meal_image_url"`
}

type SubscriptionPlan struct {
	ID               uuid.UUID      `json:"id"`
	RestaurantID     pgtype.UUID    `json:"restaurant_id"`
	Name             string         `json:"name"`
	MealsPerDay      int32          `json:"meals_per_day"`
	DeliveryDays     []string       `json:"delivery_days"`
	PricePerWeek     pgtype.Numeric `json:"price_per_week"`
	PricePerMonth    pgtype.Numeric `json:"price_per_month"`
	StripePriceWeek  pgtype.Text    `json:"stripe_price_week"`
	StripePriceMonth pgtype.Text    `json:"stripe_price_month"`
	IsActive         bool           `json:"is_active"`
}

type Subscription struct {
	ID                uuid.UUID   `json:"id"`
	UserID            uuid.UUID   `json:"user_id"`
	PlanID            uuid.UUID   `json:"plan_id"`
	Status            string      `json:"status"`
	StartDate         pgtype.Date `json:"start_date"`
	EndDate           pgtype.Date `json:"end_date"`
	NextBillingDate   pgtype.Date `json:"next_billing_date"`
	CheckoutSessionID pgtype.Text `json:"checkout_session_id"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// SubscriptionWithPlan is a subscription joined with its plan and the plan's restaurant.
type SubscriptionWithPlan struct {
	Subscription
	PlanName       string         `json:"plan_name"`
	MealsPerDay    int32          `json:"meals_per_day"`
	DeliveryDays   []string       `json:"delivery_days"`
	PricePerWeek   pgtype.Numeric `json:"price_per_week"`
	PricePerMonth  pgtype.Numeric `json:"price_per_month"`
	RestaurantName pgtype.Text    `json:"restaurant_name"`
}
