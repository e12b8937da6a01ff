package identity

import (
	"context"
	"time"
)

// BearerTokenType is the token transport convention reported to clients
const BearerTokenType = "Bearer"

// Default token lifetimes. Access tokens are deliberately short so stale
// authority snapshots age out quickly; a role change takes effect at the next
// refresh or expiry, never mid-token.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// LoginResult is handed to clients after a successful login or refresh
type LoginResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
}

// Auther coordinates login, refresh, and logout. It holds no persisted state
// of its own; session validity is entirely a function of token signature and
// expiry.
type Auther struct {
	provider        IdentityProvider
	tokenService    TokenService
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	logger          Logger
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	accessTTL := opts.GetAccessTokenTTL()
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}

	refreshTTL := opts.GetRefreshTokenTTL()
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	return &Auther{
		provider:        provider,
		tokenService:    tokenService,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
		logger:          defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTokenService overrides the token service, mostly useful in tests
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials, derives the account's authority set, and
// issues an access/refresh token pair.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	user, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		loginFailures.Inc()
		return nil, err
	}

	result, err := s.issuePair(user)
	if err != nil {
		loginFailures.Inc()
		return nil, err
	}

	loginSuccesses.Inc()
	return result, nil
}

// Refresh validates a refresh token, re-resolves the account so role changes
// since issuance are picked up, and issues a fresh token pair. The old
// refresh token stays valid until its natural expiry: there is no server-side
// token store to retire it against.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokenService.Validate(refreshToken)
	if err != nil {
		s.logger.Debug("Refresh token validation failed", "error", err)
		return nil, ErrInvalidRefreshToken
	}

	if claims.Kind() != TokenKindRefresh {
		s.logger.Debug("Refresh rejected token of wrong kind", "kind", claims.Kind())
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.provider.FindIdentityByIdentifier(ctx, claims.UserID())
	if err != nil {
		s.logger.Error("Refresh failed to re-resolve account", "error", err)
		return nil, err
	}

	result, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	tokenRefreshes.Inc()
	return result, nil
}

// Logout acknowledges the call and nothing more. Sessions are stateless, so
// logging out is a client-side token-discard convention; the presented token
// remains verifiable until it expires.
func (s *Auther) Logout(ctx context.Context, token string) error {
	s.logger.Info("user logged out, token discarded client-side")
	return nil
}

func (s *Auther) issuePair(user *User) (*LoginResult, error) {
	authorities := DeriveAuthorities(user.Roles)
	subject := user.ID.String()

	accessToken, err := s.tokenService.Issue(subject, user.Email, authorities, TokenKindAccess, s.accessTokenTTL)
	if err != nil {
		s.logger.Error("failed to issue access token", "error", err)
		return nil, err
	}

	refreshToken, err := s.tokenService.Issue(subject, user.Email, nil, TokenKindRefresh, s.refreshTokenTTL)
	if err != nil {
		s.logger.Error("failed to issue refresh token", "error", err)
		return nil, err
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTokenTTL / time.Second),
		TokenType:    BearerTokenType,
		UserID:       subject,
		Email:        user.Email,
	}, nil
}

var _ Authenticator = (*Auther)(nil)
