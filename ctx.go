package identity

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithPrincipalContext sets the Principal in the given context. A principal
// already in the context wins; resolution happens once per request and later
// layers must not clobber it.
func WithPrincipalContext(r context.Context, principal *Principal) context.Context {
	if _, ok := PrincipalFromContext(r); ok {
		return r
	}
	return context.WithValue(r, principalCtxKey, principal)
}

// PrincipalFromContext finds the resolved principal in the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetRouterPrincipal extracts the Principal from the router context
func GetRouterPrincipal(ctx router.Context, key string) (*Principal, bool) {
	if key == "" {
		key = "principal"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	principal, ok := raw.(*Principal)
	return principal, ok
}

// Can checks a RESOURCE:ACTION grant directly from the standard context
func Can(ctx context.Context, resource Resource, action Action) bool {
	principal, ok := PrincipalFromContext(ctx)
	if !ok || principal == nil {
		return false
	}
	return principal.Can(resource, action)
}

// CanFromRouter checks a RESOURCE:ACTION grant directly from the router context
func CanFromRouter(ctx router.Context, resource Resource, action Action) bool {
	principal, ok := GetRouterPrincipal(ctx, "")
	if !ok || principal == nil {
		return false
	}
	return principal.Can(resource, action)
}
