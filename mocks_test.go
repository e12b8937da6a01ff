package identity_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	"github.com/taskforge/identity"
)

// MockUsers implements identity.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id string) (*identity.User, error) {
	args := m.Called(ctx, id)
	return userResult(args)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	args := m.Called(ctx, email)
	return userResult(args)
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string) (*identity.User, error) {
	args := m.Called(ctx, identifier)
	return userResult(args)
}

func (m *MockUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsers) Register(ctx context.Context, user *identity.User) (*identity.User, error) {
	args := m.Called(ctx, user)
	return userResult(args)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *identity.User) (*identity.User, error) {
	args := m.Called(ctx, tx, user)
	return userResult(args)
}

func (m *MockUsers) AttachRoleTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	args := m.Called(ctx, tx, userID, roleID)
	return args.Error(0)
}

func (m *MockUsers) TrackAttemptedLogin(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsers) TrackSuccessfulLogin(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsers) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func userResult(args mock.Arguments) (*identity.User, error) {
	var user *identity.User
	if v := args.Get(0); v != nil {
		user = v.(*identity.User)
	}
	return user, args.Error(1)
}

// MockRoles implements identity.Roles
type MockRoles struct {
	mock.Mock
}

func (m *MockRoles) GetByID(ctx context.Context, id string) (*identity.Role, error) {
	args := m.Called(ctx, id)
	return roleResult(args)
}

func (m *MockRoles) GetByName(ctx context.Context, name string) (*identity.Role, error) {
	args := m.Called(ctx, name)
	return roleResult(args)
}

func (m *MockRoles) List(ctx context.Context) ([]*identity.Role, error) {
	args := m.Called(ctx)
	var roles []*identity.Role
	if v := args.Get(0); v != nil {
		roles = v.([]*identity.Role)
	}
	return roles, args.Error(1)
}

func (m *MockRoles) Create(ctx context.Context, role *identity.Role) (*identity.Role, error) {
	args := m.Called(ctx, role)
	return roleResult(args)
}

func (m *MockRoles) CreateTx(ctx context.Context, tx bun.IDB, role *identity.Role) (*identity.Role, error) {
	args := m.Called(ctx, tx, role)
	return roleResult(args)
}

func roleResult(args mock.Arguments) (*identity.Role, error) {
	var role *identity.Role
	if v := args.Get(0); v != nil {
		role = v.(*identity.Role)
	}
	return role, args.Error(1)
}

// MockProfiles implements identity.Profiles
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) GetByUserID(ctx context.Context, userID uuid.UUID) (*identity.Profile, error) {
	args := m.Called(ctx, userID)
	return profileResult(args)
}

func (m *MockProfiles) Create(ctx context.Context, record *identity.Profile) (*identity.Profile, error) {
	args := m.Called(ctx, record)
	return profileResult(args)
}

func (m *MockProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Profile) (*identity.Profile, error) {
	args := m.Called(ctx, tx, record)
	return profileResult(args)
}

func (m *MockProfiles) Update(ctx context.Context, record *identity.Profile) (*identity.Profile, error) {
	args := m.Called(ctx, record)
	return profileResult(args)
}

func profileResult(args mock.Arguments) (*identity.Profile, error) {
	var profile *identity.Profile
	if v := args.Get(0); v != nil {
		profile = v.(*identity.Profile)
	}
	return profile, args.Error(1)
}

// MockResetTokens implements identity.PasswordResetTokens
type MockResetTokens struct {
	mock.Mock
}

func (m *MockResetTokens) GetByID(ctx context.Context, id string) (*identity.PasswordResetToken, error) {
	args := m.Called(ctx, id)
	return resetResult(args)
}

func (m *MockResetTokens) GetBySecret(ctx context.Context, secret string) (*identity.PasswordResetToken, error) {
	args := m.Called(ctx, secret)
	return resetResult(args)
}

func (m *MockResetTokens) Create(ctx context.Context, record *identity.PasswordResetToken) (*identity.PasswordResetToken, error) {
	args := m.Called(ctx, record)
	return resetResult(args)
}

func (m *MockResetTokens) CreateTx(ctx context.Context, tx bun.IDB, record *identity.PasswordResetToken) (*identity.PasswordResetToken, error) {
	args := m.Called(ctx, tx, record)
	return resetResult(args)
}

func (m *MockResetTokens) MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockResetTokens) DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	args := m.Called(ctx, tx, userID)
	return args.Error(0)
}

func (m *MockResetTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func resetResult(args mock.Arguments) (*identity.PasswordResetToken, error) {
	var record *identity.PasswordResetToken
	if v := args.Get(0); v != nil {
		record = v.(*identity.PasswordResetToken)
	}
	return record, args.Error(1)
}

// MockMailer implements identity.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, email, resetLink string) error {
	args := m.Called(ctx, email, resetLink)
	return args.Error(0)
}

// MockAuthenticator implements identity.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, identifier, password string) (*identity.LoginResult, error) {
	args := m.Called(ctx, identifier, password)
	var result *identity.LoginResult
	if v := args.Get(0); v != nil {
		result = v.(*identity.LoginResult)
	}
	return result, args.Error(1)
}

func (m *MockAuthenticator) Refresh(ctx context.Context, refreshToken string) (*identity.LoginResult, error) {
	args := m.Called(ctx, refreshToken)
	var result *identity.LoginResult
	if v := args.Get(0); v != nil {
		result = v.(*identity.LoginResult)
	}
	return result, args.Error(1)
}

func (m *MockAuthenticator) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// MockIdentityProvider implements identity.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (*identity.User, error) {
	args := m.Called(ctx, identifier, password)
	return userResult(args)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (*identity.User, error) {
	args := m.Called(ctx, identifier)
	return userResult(args)
}

// mockRepoManager wires the repository mocks behind the manager interface.
// RunInTx runs the callback with a zero tx; the mocks never touch it.
type mockRepoManager struct {
	users    *MockUsers
	roles    *MockRoles
	profiles *MockProfiles
	resets   *MockResetTokens
	txErr    error
}

func newMockRepoManager() *mockRepoManager {
	return &mockRepoManager{
		users:    new(MockUsers),
		roles:    new(MockRoles),
		profiles: new(MockProfiles),
		resets:   new(MockResetTokens),
	}
}

func (m *mockRepoManager) Validate() error { return nil }
func (m *mockRepoManager) MustValidate()   {}

func (m *mockRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	return f(ctx, bun.Tx{})
}

func (m *mockRepoManager) Users() identity.Users                             { return m.users }
func (m *mockRepoManager) Roles() identity.Roles                             { return m.roles }
func (m *mockRepoManager) Profiles() identity.Profiles                       { return m.profiles }
func (m *mockRepoManager) PasswordResetTokens() identity.PasswordResetTokens { return m.resets }

// authConfig is a plain identity.Config for tests
type authConfig struct {
	signingKey      string
	signingMethod   string
	contextKey      string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	tokenLookup     string
	authScheme      string
	issuer          string
	audience        []string
	resetTokenTTL   time.Duration
	resetBaseURL    string
}

func newTestConfig() *authConfig {
	return &authConfig{
		signingKey:      "test-signing-key",
		signingMethod:   "HS256",
		contextKey:      "claims",
		accessTokenTTL:  15 * time.Minute,
		refreshTokenTTL: 7 * 24 * time.Hour,
		tokenLookup:     "header:Authorization",
		authScheme:      "Bearer",
		issuer:          "test-issuer",
		audience:        []string{"test:audience"},
		resetTokenTTL:   15 * time.Minute,
		resetBaseURL:    "/password-reset",
	}
}

func (c *authConfig) GetSigningKey() string             { return c.signingKey }
func (c *authConfig) GetSigningMethod() string          { return c.signingMethod }
func (c *authConfig) GetContextKey() string             { return c.contextKey }
func (c *authConfig) GetAccessTokenTTL() time.Duration  { return c.accessTokenTTL }
func (c *authConfig) GetRefreshTokenTTL() time.Duration { return c.refreshTokenTTL }
func (c *authConfig) GetTokenLookup() string            { return c.tokenLookup }
func (c *authConfig) GetAuthScheme() string             { return c.authScheme }
func (c *authConfig) GetIssuer() string                 { return c.issuer }
func (c *authConfig) GetAudience() []string             { return c.audience }
func (c *authConfig) GetResetTokenTTL() time.Duration   { return c.resetTokenTTL }
func (c *authConfig) GetResetBaseURL() string           { return c.resetBaseURL }

var (
	_ identity.Users               = (*MockUsers)(nil)
	_ identity.Roles               = (*MockRoles)(nil)
	_ identity.Profiles            = (*MockProfiles)(nil)
	_ identity.PasswordResetTokens = (*MockResetTokens)(nil)
	_ identity.Mailer              = (*MockMailer)(nil)
	_ identity.IdentityProvider    = (*MockIdentityProvider)(nil)
	_ identity.Authenticator       = (*MockAuthenticator)(nil)
	_ identity.RepositoryManager   = (*mockRepoManager)(nil)
	_ identity.Config              = (*authConfig)(nil)
)
