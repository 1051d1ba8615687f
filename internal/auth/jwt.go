package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const activationAudience = "driver-activation"

const (
	AccessTokenTTL     = 15 * time.Minute
	RefreshTokenTTL    = 7 * 24 * time.Hour
	ActivationTokenTTL = 72 * time.Hour
)

// Claims is the access token payload. RestaurantID and OrganizationID are
// uuid.Nil when the role is not scoped to one.
type Claims struct {
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	jwt.RegisteredClaims
}

// Identity is the subset of a profile embedded in an access token.
type Identity struct {
	UserID         uuid.UUID
	Role           string
	RestaurantID   uuid.UUID
	OrganizationID uuid.UUID
}

func GenerateToken(secret string, id Identity) (string, error) {
	claims := Claims{
		UserID:         id.UserID,
		Role:           id.Role,
		RestaurantID:   id.RestaurantID,
		OrganizationID: id.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func GenerateRefreshToken(secret string, userID uuid.UUID) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(RefreshTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GenerateActivationToken signs the token embedded in a driver activation
// link. Single use is enforced by the profile's account_activated flag, not
// by the token.
func GenerateActivationToken(secret string, userID uuid.UUID) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Audience:  jwt.ClaimStrings{activationAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ActivationTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, keyFunc(secret))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ValidateRefreshToken returns the user ID carried by a refresh token.
func ValidateRefreshToken(secret, tokenStr string) (uuid.UUID, error) {
	return parseSubject(secret, tokenStr)
}

// ValidateActivationToken checks signature, expiry and audience, and that the
// token was issued for userID.
func ValidateActivationToken(secret, tokenStr string, userID uuid.UUID) error {
	sub, err := parseSubject(secret, tokenStr, jwt.WithAudience(activationAudience))
	if err != nil {
		return err
	}
	if sub != userID {
		return errors.New("activation token issued for another user")
	}
	return nil
}

func parseSubject(secret, tokenStr string, opts ...jwt.ParserOption) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, keyFunc(secret), opts...)
	if err != nil {
		return uuid.Nil, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}
	return uuid.Parse(claims.Subject)
}

func keyFunc(secret string) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}
}
