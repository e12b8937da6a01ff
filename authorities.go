package identity

import (
	"fmt"
	"sort"
)

// RolePrefix marks role-grant authorities, e.g. "ROLE_ADMIN"
const RolePrefix = "ROLE_"

// PermissionAuthority renders the canonical "{RESOURCE}:{ACTION}" form
func PermissionAuthority(resource Resource, action Action) string {
	return fmt.Sprintf("%s:%s", resource, action)
}

// DeriveAuthorities flattens a role set into the authority strings embedded
// in access tokens: "ROLE_<name>" per role plus "<RESOURCE>:<ACTION>" per
// permission. Duplicates collapse and the result is sorted so two derivations
// of the same role set compare equal. Nil or empty role sets yield an empty
// slice, never an error.
func DeriveAuthorities(roles []*Role) []string {
	seen := map[string]struct{}{}

	for _, role := range roles {
		if role == nil || role.Name == "" {
			continue
		}
		seen[RolePrefix+role.Name] = struct{}{}
		for _, perm := range role.Permissions {
			seen[PermissionAuthority(perm.Resource, perm.Action)] = struct{}{}
		}
	}

	authorities := make([]string, 0, len(seen))
	for a := range seen {
		authorities = append(authorities, a)
	}
	sort.Strings(authorities)

	return authorities
}

// HasAuthority is an exact string match. MANAGE does not satisfy READ here;
// call sites that want that policy pass both alternates explicitly.
func HasAuthority(authorities []string, required string) bool {
	for _, a := range authorities {
		if a == required {
			return true
		}
	}
	return false
}

// HasAnyAuthority reports whether at least one of the given alternates is held
func HasAnyAuthority(authorities []string, alternates ...string) bool {
	for _, alt := range alternates {
		if HasAuthority(authorities, alt) {
			return true
		}
	}
	return false
}

// Principal is the resolved identity for one request. It is built fresh per
// request from token claims (or a freshly loaded account), never persisted,
// and discarded when the request ends.
type Principal struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Authorities []string `json:"authorities"`
}

// HasAuthority is an exact match against the principal's authority set
func (p *Principal) HasAuthority(required string) bool {
	if p == nil {
		return false
	}
	return HasAuthority(p.Authorities, required)
}

// HasRole checks for the "ROLE_<name>" grant
func (p *Principal) HasRole(name string) bool {
	return p.HasAuthority(RolePrefix + name)
}

// Can checks the fine-grained "<RESOURCE>:<ACTION>" grant
func (p *Principal) Can(resource Resource, action Action) bool {
	return p.HasAuthority(PermissionAuthority(resource, action))
}

// PrincipalFromClaims builds a request principal straight from verified token
// claims, without a database round trip. The authority snapshot may be stale
// relative to the account's current roles until the token expires or is
// refreshed; that is the stateless-session tradeoff.
func PrincipalFromClaims(claims AuthClaims) *Principal {
	if claims == nil {
		return nil
	}
	return &Principal{
		UserID:      claims.UserID(),
		Email:       claims.Email(),
		Authorities: claims.Authorities(),
	}
}

// PrincipalFromUser builds a principal from a freshly loaded account
func PrincipalFromUser(user *User) *Principal {
	if user == nil {
		return nil
	}
	return &Principal{
		UserID:      user.ID.String(),
		Email:       user.Email,
		Authorities: DeriveAuthorities(user.Roles),
	}
}
