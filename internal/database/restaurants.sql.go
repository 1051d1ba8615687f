package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const restaurantColumns = `id, organization_id, name, slug, phone, address, image_url, rating, is_active, created_at`

func scanRestaurant(row interface{ Scan(...any) error }) (Restaurant, error) {
	var i Restaurant
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.Name,
		&i.Slug,
		&i.Phone,
		&i.Address,
		&i.ImageUrl,
		&i.Rating,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

func collectRestaurants(rows pgx.Rows, err error) ([]Restaurant, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Restaurant{}
	for rows.Next() {
		i, err := scanRestaurant(rows)
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

const getRestaurantSlug = `-- name: GetRestaurantSlug :one
SELECT slug FROM restaurants WHERE id = $1
`

func (q *Queries) GetRestaurantSlug(ctx context.Context, id uuid.UUID) (pgtype.Text, error) {
	var slug pgtype.Text
	err := q.db.QueryRow(ctx, getRestaurantSlug, id).Scan(&slug)
	return slug, err
}

const getRestaurant = `-- name: GetRestaurant :one
SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = $1
`

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	return scanRestaurant(q.db.QueryRow(ctx, getRestaurant, id))
}

const listTopRestaurants = `-- name: ListTopRestaurants :many
SELECT ` + restaurantColumns + ` FROM restaurants
WHERE is_active = true
ORDER BY rating DESC NULLS LAST, name
LIMIT $1
`

func (q *Queries) ListTopRestaurants(ctx context.Context, limit int32) ([]Restaurant, error) {
	return collectRestaurants(q.db.Query(ctx, listTopRestaurants, limit))
}

const listRestaurantsByOrganization = `-- name: ListRestaurantsByOrganization :many
SELECT ` + restaurantColumns + ` FROM restaurants
WHERE organization_id = $1
ORDER BY name
`

func (q *Queries) ListRestaurantsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]Restaurant, error) {
	return collectRestaurants(q.db.Query(ctx, listRestaurantsByOrganization, organizationID))
}
