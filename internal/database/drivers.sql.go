package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const driverColumns = `id, is_available, vehicle_type, license_plate, profile_completed, updated_at`

func scanDriver(row interface{ Scan(...any) error }) (Driver, error) {
	var i Driver
	err := row.Scan(
		&i.ID,
		&i.IsAvailable,
		&i.VehicleType,
		&i.LicensePlate,
		&i.ProfileCompleted,
		&i.UpdatedAt,
	)
	return i, err
}

const createDriver = `-- name: CreateDriver :one
INSERT INTO drivers (id) VALUES ($1)
ON CONFLICT (id) DO UPDATE SET updated_at = now()
RETURNING ` + driverColumns + `
`

func (q *Queries) CreateDriver(ctx context.Context, id uuid.UUID) (Driver, error) {
	return scanDriver(q.db.QueryRow(ctx, createDriver, id))
}

const getDriver = `-- name: GetDriver :one
SELECT ` + driverColumns + ` FROM drivers WHERE id = $1
`

func (q *Queries) GetDriver(ctx context.Context, id uuid.UUID) (Driver, error) {
	return scanDriver(q.db.QueryRow(ctx, getDriver, id))
}

const setDriverAvailability = `-- name: SetDriverAvailability :one
UPDATE drivers SET is_available = $2, updated_at = now()
WHERE id = $1
RETURNING ` + driverColumns + `
`

type SetDriverAvailabilityParams struct {
	ID          uuid.UUID `json:"id"`
	IsAvailable bool      `json:"is_available"`
}

func (q *Queries) SetDriverAvailability(ctx context.Context, arg SetDriverAvailabilityParams) (Driver, error) {
	return scanDriver(q.db.QueryRow(ctx, setDriverAvailability, arg.ID, arg.IsAvailable))
}

const updateDriverVehicle = `-- name: UpdateDriverVehicle :one
UPDATE drivers
SET vehicle_type = $2, license_plate = $3, profile_completed = true, updated_at = now()
WHERE id = $1
RETURNING ` + driverColumns + `
`

type UpdateDriverVehicleParams struct {
	ID           uuid.UUID   `json:"id"`
	VehicleType  pgtype.Text `json:"vehicle_type"`
	LicensePlate pgtype.Text `json:"license_plate"`
}

func (q *Queries) UpdateDriverVehicle(ctx context.Context, arg UpdateDriverVehicleParams) (Driver, error) {
	return scanDriver(q.db.QueryRow(ctx, updateDriverVehicle, arg.ID, arg.VehicleType, arg.LicensePlate))
}
