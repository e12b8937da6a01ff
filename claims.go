package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates access from refresh tokens
type TokenKind string

const (
	// TokenKindAccess tokens are short lived and carry an authority snapshot
	TokenKindAccess TokenKind = "ACCESS"
	// TokenKindRefresh tokens are longer lived and carry no authorities;
	// redeeming one re-derives authorities from the account
	TokenKindRefresh TokenKind = "REFRESH"
)

// AuthClaims represents verified, structured token claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Authorities() []string
	Kind() TokenKind
	IsAccessToken() bool
	HasAuthority(required string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string    `json:"uid,omitempty"`
	UserEmail string    `json:"email,omitempty"`
	Grants    []string  `json:"authorities,omitempty"`
	TokenType TokenKind `json:"token_type,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID, falling back to the subject claim
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the email claim
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Authorities returns the authority snapshot captured at issuance. Empty for
// refresh tokens.
func (c *JWTClaims) Authorities() []string {
	return c.Grants
}

// Kind returns the token kind marker
func (c *JWTClaims) Kind() TokenKind {
	return c.TokenType
}

// IsAccessToken reports whether this token can authenticate requests. Refresh
// tokens are only good for the token refresh exchange.
func (c *JWTClaims) IsAccessToken() bool {
	return c.TokenType == TokenKindAccess
}

// HasAuthority is an exact match against the embedded snapshot
func (c *JWTClaims) HasAuthority(required string) bool {
	return HasAuthority(c.Grants, required)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
