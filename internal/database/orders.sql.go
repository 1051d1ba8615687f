package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `o.id, o.user_id, o.restaurant_id, o.driver_id, o.status, o.subtotal, o.delivery_fee,
    o.total_amount, o.delivery_address, o.estimated_delivery_time, o.created_at, o.updated_at`

const orderSummarySelect = `SELECT ` + orderColumns + `,
    r.name, r.address, r.phone, c.full_name, c.phone, dp.full_name, dp.phone
FROM orders o
JOIN restaurants r ON r.id = o.restaurant_id
JOIN profiles c ON c.id = o.user_id
LEFT JOIN profiles dp ON dp.id = o.driver_id
`

func orderFields(i *Order) []any {
	return []any{
		&i.ID,
		&i.UserID,
		&i.RestaurantID,
		&i.DriverID,
		&i.Status,
		&i.Subtotal,
		&i.DeliveryFee,
		&i.TotalAmount,
		&i.DeliveryAddress,
		&i.EstimatedDeliveryTime,
		&i.CreatedAt,
		&i.UpdatedAt,
	}
}

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(orderFields(&i)...)
	return i, err
}

func scanOrderSummary(row interface{ Scan(...any) error }) (OrderSummary, error) {
	var i OrderSummary
	dest := append(orderFields(&i.Order),
		&i.RestaurantName,
		&i.RestaurantAddress,
		&i.RestaurantPhone,
		&i.CustomerName,
		&i.CustomerPhone,
		&i.DriverName,
		&i.DriverPhone,
	)
	err := row.Scan(dest...)
	return i, err
}

func collectOrderSummaries(rows pgx.Rows, err error) ([]OrderSummary, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderSummary{}
	for rows.Next() {
		i, err := scanOrderSummary(rows)
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

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUser = `-- name: GetOrderForUser :one
` + orderSummarySelect + `WHERE o.id = $1 AND o.user_id = $2
`

type GetOrderForUserParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

// GetOrderForUser returns pgx.ErrNoRows both when the order does not exist
// and when it belongs to someone else.
func (q *Queries) GetOrderForUser(ctx context.Context, arg GetOrderForUserParams) (OrderSummary, error) {
	return scanOrderSummary(q.db.QueryRow(ctx, getOrderForUser, arg.ID, arg.UserID))
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT oi.id, oi.order_id, oi.meal_id, oi.quantity, oi.unit_price, m.name, m.image_url
FROM order_items oi
JOIN meals m ON m.id = oi.meal_id
WHERE oi.order_id = $1
ORDER BY m.name
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItemRow, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItemRow{}
	for rows.Next() {
		var i OrderItemRow
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.MealID,
			&i.Quantity,
			&i.UnitPrice,
			&i.MealName,
			&i.MealImageUrl,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrdersByUser = `-- name: ListOrdersByUser :many
` + orderSummarySelect + `WHERE o.user_id = $1
ORDER BY o.created_at DESC
LIMIT $2
`

type ListOrdersByUserParams struct {
	UserID uuid.UUID `json:"user_id"`
	Limit  int32     `json:"limit"`
}

func (q *Queries) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]OrderSummary, error) {
	return collectOrderSummaries(q.db.Query(ctx, listOrdersByUser, arg.UserID, arg.Limit))
}

const listAvailableDeliveries = `-- name: ListAvailableDeliveries :many
` + orderSummarySelect + `WHERE o.status = 'out_for_delivery' AND o.driver_id IS NULL
ORDER BY o.created_at ASC
`

func (q *Queries) ListAvailableDeliveries(ctx context.Context) ([]OrderSummary, error) {
	return collectOrderSummaries(q.db.Query(ctx, listAvailableDeliveries))
}

const listDriverDeliveries = `-- name: ListDriverDeliveries :many
` + orderSummarySelect + `WHERE o.driver_id = $1 AND o.status = $2
ORDER BY o.updated_at DESC
`

type ListDriverDeliveriesParams struct {
	DriverID uuid.UUID `json:"driver_id"`
	Status   string    `json:"status"`
}

func (q *Queries) ListDriverDeliveries(ctx context.Context, arg ListDriverDeliveriesParams) ([]OrderSummary, error) {
	return collectOrderSummaries(q.db.Query(ctx, listDriverDeliveries, arg.DriverID, arg.Status))
}

const claimOrder = `-- name: ClaimOrder :one
UPDATE orders o SET driver_id = $2, updated_at = now()
WHERE o.id = $1 AND o.status = 'out_for_delivery' AND o.driver_id IS NULL
RETURNING ` + orderColumns + `
`

type ClaimOrderParams struct {
	ID       uuid.UUID `json:"id"`
	DriverID uuid.UUID `json:"driver_id"`
}

// ClaimOrder assigns the driver only if the order is still unclaimed. A lost
// race surfaces as pgx.ErrNoRows.
func (q *Queries) ClaimOrder(ctx context.Context, arg ClaimOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, claimOrder, arg.ID, arg.DriverID))
}

const completeDelivery = `-- name: CompleteDelivery :one
UPDATE orders o SET status = 'delivered', updated_at = now()
WHERE o.id = $1 AND o.driver_id = $2 AND o.status = 'out_for_delivery'
RETURNING ` + orderColumns + `
`

type CompleteDeliveryParams struct {
	ID       uuid.UUID `json:"id"`
	DriverID uuid.UUID `json:"driver_id"`
}

func (q *Queries) CompleteDelivery(ctx context.Context, arg CompleteDeliveryParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, completeDelivery, arg.ID, arg.DriverID))
}

const getDriverDeliveryStats = `-- name: GetDriverDeliveryStats :one
SELECT count(*)::bigint, COALESCE(sum(total_amount), 0)::numeric
FROM orders
WHERE driver_id = $1 AND status = 'delivered' AND updated_at >= $2
`

type GetDriverDeliveryStatsParams struct {
	DriverID uuid.UUID `json:"driver_id"`
	Since    time.Time `json:"since"`
}

type GetDriverDeliveryStatsRow struct {
	Deliveries int64          `json:"deliveries"`
	Earnings   pgtype.Numeric `json:"earnings"`
}

func (q *Queries) GetDriverDeliveryStats(ctx context.Context, arg GetDriverDeliveryStatsParams) (GetDriverDeliveryStatsRow, error) {
	var i GetDriverDeliveryStatsRow
	err := q.db.QueryRow(ctx, getDriverDeliveryStats, arg.DriverID, arg.Since).Scan(&i.Deliveries, &i.Earnings)
	return i, err
}

const listRestaurantOrders = `-- name: ListRestaurantOrders :many
` + orderSummarySelect + `WHERE o.restaurant_id = $1
  AND ($2::text IS NULL OR o.status = $2::text)
ORDER BY o.created_at DESC
LIMIT $3 OFFSET $4
`

type ListRestaurantOrdersParams struct {
	RestaurantID uuid.UUID   `json:"restaurant_id"`
	Status       pgtype.Text `json:"status"`
	Limit        int32       `json:"limit"`
	Offset       int32       `json:"offset"`
}

func (q *Queries) ListRestaurantOrders(ctx context.Context, arg ListRestaurantOrdersParams) ([]OrderSummary, error) {
	return collectOrderSummaries(q.db.Query(ctx, listRestaurantOrders, arg.RestaurantID, arg.Status, arg.Limit, arg.Offset))
}

const getRestaurantOrder = `-- name: GetRestaurantOrder :one
SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 AND o.restaurant_id = $2
`

type GetRestaurantOrderParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetRestaurantOrder(ctx context.Context, arg GetRestaurantOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getRestaurantOrder, arg.ID, arg.RestaurantID))
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders o SET status = $3, updated_at = now()
WHERE o.id = $1 AND o.restaurant_id = $2 AND o.status = $4
RETURNING ` + orderColumns + `
`

type UpdateOrderStatusParams struct {
	ID             uuid.UUID `json:"id"`
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	Status         string    `json:"status"`
	ExpectedStatus string    `json:"expected_status"`
}

// UpdateOrderStatus only applies when the order still has ExpectedStatus.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.RestaurantID, arg.Status, arg.ExpectedStatus)
	return scanOrder(row)
}
