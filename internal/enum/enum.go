package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// OrderStatus is the lifecycle state of an order. Values outside the
// constants below can still arrive from the database or a realtime push and
// must be handled as "unknown" by consumers.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusAccepted       OrderStatus = "accepted"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// OrderProgression is the forward path of an order. Cancelled is a branch
// off this path, not a step on it.
var OrderProgression = []OrderStatus{
	OrderStatusPending,
	OrderStatusAccepted,
	OrderStatusPreparing,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
}

// OrderStatuses returns every known order status.
func OrderStatuses() []OrderStatus {
	return append(append([]OrderStatus{}, OrderProgression...), OrderStatusCancelled)
}

// Known reports whether s is one of the declared order statuses.
func (s OrderStatus) Known() bool {
	for _, k := range OrderStatuses() {
		if s == k {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Rank is the position of s on OrderProgression, or -1.
func (s OrderStatus) Rank() int {
	for i, p := range OrderProgression {
		if p == s {
			return i
		}
	}
	return -1
}

// SubscriptionStatus is the billing state of a subscription. Pending rows are
// created at checkout and activated once payment is confirmed.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

// Role is the permission class of a profile.
type Role string

const (
	RoleCustomer        Role = "customer"
	RoleDriver          Role = "driver"
	RoleRestaurantAdmin Role = "restaurant_admin"
	RoleKitchen         Role = "kitchen"
	RoleSuperAdmin      Role = "super_admin"
	RolePlatformOwner   Role = "platform_owner"
)

// Roles returns every known role.
func Roles() []Role {
	return []Role{
		RoleCustomer,
		RoleDriver,
		RoleRestaurantAdmin,
		RoleKitchen,
		RoleSuperAdmin,
		RolePlatformOwner,
	}
}

func (r Role) Known() bool {
	for _, k := range Roles() {
		if r == k {
			return true
		}
	}
	return false
}

// RestaurantScoped reports whether profiles with this role may carry a restaurant_id.
func (r Role) RestaurantScoped() bool {
	return r == RoleRestaurantAdmin || r == RoleKitchen
}

// OrganizationScoped reports whether profiles with this role may carry an organization_id.
func (r Role) OrganizationScoped() bool {
	return r == RoleSuperAdmin
}

// Admin reports whether the role administers restaurants and staff.
func (r Role) Admin() bool {
	return r == RoleSuperAdmin || r == RolePlatformOwner
}

// ── Group B: Configurable labels (no DB constraint) ──

// Actor is who performs an order transition.
type Actor string

const (
	ActorRestaurant Actor = "restaurant"
	ActorDriver     Actor = "driver"
)

const (
	BillingIntervalWeek  = "week"
	BillingIntervalMonth = "month"
)

const (
	EventOrderStatusChanged = "order.status_changed"
	EventOrderUpdated       = "order.updated"
	EventOrderClaimed       = "order.claimed"
)
