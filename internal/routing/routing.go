// Package routing decides where a signed-in profile belongs and keeps pages
// from rendering for the wrong role.
package routing

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/session"
)

// Destinations by role.
const (
	PathHome                  = "/"
	PathPlatformOwner         = "/platform-owner"
	PathOrganizationDashboard = "/organization-dashboard"
	PathAdmin                 = "/admin"
	PathDriverDashboard       = "/driver-dashboard"
	PathCustomerDashboard     = "/customer"
)

// SlugLookup finds the human-readable slug of a restaurant. An empty slug
// means the restaurant has none.
type SlugLookup interface {
	RestaurantSlug(ctx context.Context, id uuid.UUID) (string, error)
}

// Resolve returns the landing path for p. It never fails: a slug lookup
// error or a missing slug falls back to the raw restaurant id.
func Resolve(ctx context.Context, p session.Profile, slugs SlugLookup) string {
	switch p.Role {
	case enum.RolePlatformOwner:
		return PathPlatformOwner
	case enum.RoleSuperAdmin:
		return PathOrganizationDashboard
	case enum.RoleRestaurantAdmin, enum.RoleKitchen:
		if !p.RestaurantID.Valid {
			return PathAdmin
		}
		return RestaurantDashboardPath(restaurantIdentifier(ctx, p.RestaurantID.UUID, slugs))
	case enum.RoleDriver:
		return PathDriverDashboard
	case enum.RoleCustomer:
		return PathHome
	default:
		return PathHome
	}
}

// RestaurantDashboardPath is the dashboard of the restaurant with identifier.
func RestaurantDashboardPath(identifier string) string {
	return "/restaurant/" + identifier + "/dashboard"
}

func restaurantIdentifier(ctx context.Context, id uuid.UUID, slugs SlugLookup) string {
	if slugs == nil {
		return id.String()
	}
	slug, err := slugs.RestaurantSlug(ctx, id)
	if err != nil {
		log.Printf("WARN: slug lookup for restaurant %s: %v", id, err)
		return id.String()
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return id.String()
	}
	return slug
}

// Redirector navigates once per profile-load event of a session.
type Redirector struct {
	slugs    SlugLookup
	navigate func(path string)

	mu   sync.Mutex
	seen uint64
}

func NewRedirector(slugs SlugLookup, navigate func(path string)) *Redirector {
	return &Redirector{slugs: slugs, navigate: navigate}
}

// Observe follows sc until the returned stop func is called. Nothing is
// resolved while the session is absent or still loading.
func (r *Redirector) Observe(ctx context.Context, sc *session.Context) (stop func()) {
	return sc.Subscribe(func(s session.Snapshot) {
		if s.State != session.StateReady || s.Profile == nil {
			return
		}
		r.mu.Lock()
		if s.Generation <= r.seen {
			r.mu.Unlock()
			return
		}
		r.seen = s.Generation
		r.mu.Unlock()

		r.navigate(Resolve(ctx, *s.Profile, r.slugs))
	})
}
