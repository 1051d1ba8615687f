package routing

import (
	"context"

	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/session"
)

// Page is a protected page and the roles it is meant for.
type Page struct {
	Path  string
	Roles []enum.Role
}

var (
	CustomerDashboard = Page{Path: PathCustomerDashboard, Roles: []enum.Role{enum.RoleCustomer}}
	DriverDashboard   = Page{Path: PathDriverDashboard, Roles: []enum.Role{enum.RoleDriver}}
	OrgDashboard      = Page{Path: PathOrganizationDashboard, Roles: []enum.Role{enum.RoleSuperAdmin}}
	Subscriptions     = Page{Path: "/subscriptions", Roles: []enum.Role{enum.RoleCustomer}}
	OrderTracking     = Page{Path: "/order-tracking", Roles: []enum.Role{enum.RoleCustomer}}
)

// Allows reports whether role may view the page.
func (pg Page) Allows(role enum.Role) bool {
	for _, r := range pg.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Guard returns ok when p may view page. Otherwise it returns where p should
// be sent instead, using the same table as Resolve.
func Guard(ctx context.Context, page Page, p session.Profile, slugs SlugLookup) (redirect string, ok bool) {
	if page.Allows(p.Role) {
		return "", true
	}
	return Resolve(ctx, p, slugs), false
}
