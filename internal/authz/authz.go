package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/harborlane/storefront-backend/pkg/enums"
	pkgerrors "github.com/harborlane/storefront-backend/pkg/errors"
)

// Actor is the authenticated principal attached to a request.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

// Action names a capability a caller may hold.
type Action string

const (
	ActionPlaceOrder    Action = "orders:place"
	ActionReadOwnOrders Action = "orders:read_own"
	ActionReadAnyOrder  Action = "orders:read_any"
	ActionReadCatalog   Action = "catalog:read"
	ActionWriteCatalog  Action = "catalog:write"
)

// rules maps each role to the capabilities it holds. Admins are a superset of
// customers so storefront flows keep working for staff accounts.
var rules = map[enums.MemberRole]map[Action]bool{
	enums.MemberRoleCustomer: {
		ActionPlaceOrder:    true,
		ActionReadOwnOrders: true,
		ActionReadCatalog:   true,
	},
	enums.MemberRoleAdmin: {
		ActionPlaceOrder:    true,
		ActionReadOwnOrders: true,
		ActionReadAnyOrder:  true,
		ActionReadCatalog:   true,
		ActionWriteCatalog:  true,
	},
}

// Authorizer answers capability checks for service-layer operations. Checks
// run inside services rather than transport middleware so every entry point
// (HTTP today, jobs tomorrow) goes through the same gate.
type Authorizer struct{}

func New() *Authorizer {
	return &Authorizer{}
}

// Can reports whether the actor holds the capability.
func (a *Authorizer) Can(_ context.Context, actor Actor, action Action) bool {
	if actor.UserID == uuid.Nil {
		return false
	}
	grants, ok := rules[actor.Role]
	if !ok {
		return false
	}
	return grants[action]
}

// Require returns a typed error when the actor lacks the capability. An
// anonymous actor gets an authentication error rather than a forbidden one.
func (a *Authorizer) Require(ctx context.Context, actor Actor, action Action) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !a.Can(ctx, actor, action) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}
	return nil
}
