package service

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/saborportugues/api/internal/enum"
)

// MinPasswordLength is the shortest password accepted at sign-up and activation.
const MinPasswordLength = 6

// Validation errors shared by sign-up, activation and role assignment.
var (
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidEmail     = errors.New("a valid email is required")
	ErrFullNameRequired = errors.New("full_name is required")
	ErrUnknownRole      = errors.New("unknown role")
	ErrRestaurantScope  = errors.New("restaurant_id is only allowed for restaurant_admin and kitchen")
	ErrOrgScope         = errors.New("organization_id is only allowed for super_admin")
)

// ValidatePassword checks a new password and its confirmation.
func ValidatePassword(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// SignUpRequest is the sign-up form.
type SignUpRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
}

// ValidateSignUp returns the first problem with req, checked before anything
// is written.
func ValidateSignUp(req SignUpRequest) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(req.FullName) == "" {
		return ErrFullNameRequired
	}
	return ValidatePassword(req.Password, req.ConfirmPassword)
}

// ValidateRoleScope enforces which roles may be tied to a restaurant or an
// organization.
func ValidateRoleScope(role enum.Role, restaurantID, organizationID uuid.NullUUID) error {
	if !role.Known() {
		return ErrUnknownRole
	}
	if restaurantID.Valid && !role.RestaurantScoped() {
		return ErrRestaurantScope
	}
	if organizationID.Valid && !role.OrganizationScoped() {
		return ErrOrgScope
	}
	return nil
}
