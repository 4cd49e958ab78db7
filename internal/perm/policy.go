// Package perm gates chat access on a user's role-tag set and their
// relationship to the order.
package perm

import (
	"context"
	"fmt"

	"github.com/comandago/comanda/pkg/store"
)

// Role tags recognized by the access policy.
const (
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
	RoleAttention  = "atencion"
	RoleCustomer   = "cliente"
	RoleCourier    = "repartidor"
)

// Policy decides whether a user may see an order's chat.
//
// Staff (admin, superadmin, atencion) see every order. A customer sees only
// their own orders. A courier sees only orders they are assigned to.
type Policy struct {
	roles  store.RoleLookup
	orders store.OrderStore
}

// NewPolicy creates the access policy.
func NewPolicy(roles store.RoleLookup, orders store.OrderStore) *Policy {
	return &Policy{roles: roles, orders: orders}
}

// CanAccessOrder reports whether userID may participate in orderID's chat.
// Lookup failures deny access; the caller surfaces a generic refusal either
// way, without confirming or denying that the order exists.
func (p *Policy) CanAccessOrder(ctx context.Context, userID string, orderID int64) (bool, error) {
	roles, err := p.roles.Roles(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("role lookup for %s: %w", userID, err)
	}

	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	if roleSet[RoleAdmin] || roleSet[RoleSuperadmin] || roleSet[RoleAttention] {
		return true, nil
	}

	if !roleSet[RoleCustomer] && !roleSet[RoleCourier] {
		return false, nil
	}

	parties, err := p.orders.Parties(ctx, orderID)
	if err != nil {
		return false, nil
	}

	if roleSet[RoleCustomer] && parties.CustomerID == userID {
		return true, nil
	}
	if roleSet[RoleCourier] && parties.CourierID != nil && *parties.CourierID == userID {
		return true, nil
	}
	return false, nil
}

// StaticRoles is a fixed in-memory role lookup, for deployments where the
// role assignments arrive with the process configuration.
type StaticRoles map[string][]string

// Roles returns the configured role tags for userID. Unknown users have no
// roles, which the policy treats as no access.
func (s StaticRoles) Roles(_ context.Context, userID string) ([]string, error) {
	return s[userID], nil
}

var _ store.RoleLookup = (StaticRoles)(nil)
