package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const profileColumns = `id, email, hashed_password, full_name, role, restaurant_id, organization_id,
    phone, address, account_activated, activation_email_sent, account_activated_at, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var i Profile
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.HashedPassword,
		&i.FullName,
		&i.Role,
		&i.RestaurantID,
		&i.OrganizationID,
		&i.Phone,
		&i.Address,
		&i.AccountActivated,
		&i.ActivationEmailSent,
		&i.AccountActivatedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getProfileByID = `-- name: GetProfileByID :one
SELECT ` + profileColumns + ` FROM profiles WHERE id = $1
`

func (q *Queries) GetProfileByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, getProfileByID, id))
}

const getProfileByEmail = `-- name: GetProfileByEmail :one
SELECT ` + profileColumns + ` FROM profiles WHERE lower(email) = lower($1)
`

func (q *Queries) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, getProfileByEmail, email))
}

const createProfile = `-- name: CreateProfile :one
INSERT INTO profiles (email, hashed_password, full_name, role, restaurant_id, organization_id, phone, account_activated)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + profileColumns + `
`

type CreateProfileParams struct {
	Email            string      `json:"email"`
	HashedPassword   string      `json:"hashed_password"`
	FullName         string      `json:"full_name"`
	Role             string      `json:"role"`
	RestaurantID     pgtype.UUID `json:"restaurant_id"`
	OrganizationID   pgtype.UUID `json:"organization_id"`
	Phone            pgtype.Text `json:"phone"`
	AccountActivated bool        `json:"account_activated"`
}

func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (Profile, error) {
	row := q.db.QueryRow(ctx, createProfile,
		arg.Email,
		arg.HashedPassword,
		arg.FullName,
		arg.Role,
		arg.RestaurantID,
		arg.OrganizationID,
		arg.Phone,
		arg.AccountActivated,
	)
	return scanProfile(row)
}

const updateProfileRole = `-- name: UpdateProfileRole :one
UPDATE profiles
SET role = $2, restaurant_id = $3, organization_id = $4, updated_at = now()
WHERE id = $1
RETURNING ` + profileColumns + `
`

type UpdateProfileRoleParams struct {
	ID             uuid.UUID   `json:"id"`
	Role           string      `json:"role"`
	RestaurantID   pgtype.UUID `json:"restaurant_id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
}

func (q *Queries) UpdateProfileRole(ctx context.Context, arg UpdateProfileRoleParams) (Profile, error) {
	row := q.db.QueryRow(ctx, updateProfileRole, arg.ID, arg.Role, arg.RestaurantID, arg.OrganizationID)
	return scanProfile(row)
}

const getPendingDriverProfile = `-- name: GetPendingDriverProfile :one
SELECT ` + profileColumns + ` FROM profiles
WHERE id = $1 AND role = 'driver' AND account_activated = false AND activation_email_sent = true
`

// GetPendingDriverProfile returns a driver profile that has been sent an
// activation link and has not yet activated.
func (q *Queries) GetPendingDriverProfile(ctx context.Context, id uuid.UUID) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, getPendingDriverProfile, id))
}

const markActivationEmailSent = `-- name: MarkActivationEmailSent :one
UPDATE profiles SET activation_email_sent = true, updated_at = now()
WHERE id = $1 AND role = 'driver' AND account_activated = false
RETURNING ` + profileColumns + `
`

func (q *Queries) MarkActivationEmailSent(ctx context.Context, id uuid.UUID) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, markActivationEmailSent, id))
}

const activateDriverProfile = `-- name: ActivateDriverProfile :one
UPDATE profiles
SET hashed_password = $2, phone = $3, address = $4,
    account_activated = true, account_activated_at = now(), updated_at = now()
WHERE id = $1 AND role = 'driver' AND account_activated = false AND activation_email_sent = true
RETURNING ` + profileColumns + `
`

type ActivateDriverProfileParams struct {
	ID             uuid.UUID   `json:"id"`
	HashedPassword string      `json:"hashed_password"`
	Phone          pgtype.Text `json:"phone"`
	Address        pgtype.Text `json:"address"`
}

// ActivateDriverProfile returns pgx.ErrNoRows when the profile was activated
// concurrently or is no longer eligible.
func (q *Queries) ActivateDriverProfile(ctx context.Context, arg ActivateDriverProfileParams) (Profile, error) {
	row := q.db.QueryRow(ctx, activateDriverProfile, arg.ID, arg.HashedPassword, arg.Phone, arg.Address)
	return scanProfile(row)
}

const listDriverProfiles = `-- name: ListDriverProfiles :many
SELECT ` + profileColumns + ` FROM profiles WHERE role = 'driver' ORDER BY created_at DESC
`

func (q *Queries) ListDriverProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := q.db.Query(ctx, listDriverProfiles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Profile{}
	for rows.Next() {
		i, err := scanProfile(rows)
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
