package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/session"
)

// ProfileLoader fetches the profile of an authenticated caller.
// Satisfied by *database.Queries.
type ProfileLoader interface {
	GetProfileByID(ctx context.Context, id uuid.UUID) (database.Profile, error)
}

// LoadSession builds the caller's session from their stored profile and
// attaches it to the request. Must run after Authenticate.
func LoadSession(profiles ProfileLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}

			sc := session.New()
			sc.Establish(claims.UserID)

			p, err := profiles.GetProfileByID(r.Context(), claims.UserID)
			if errors.Is(err, pgx.ErrNoRows) {
				sc.Clear()
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "profile not found"})
				return
			}
			if err != nil {
				log.Printf("ERROR: load profile %s: %v", claims.UserID, err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}

			sc.SetProfile(session.ProfileFromRow(p))
			next.ServeHTTP(w, r.WithContext(session.WithContext(r.Context(), sc)))
		})
	}
}
