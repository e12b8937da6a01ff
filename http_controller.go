package identity

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"

	"github.com/taskforge/identity/middleware/jwtware"
)

// ProtectedRoute builds the per-request identity resolver. It never fails a
// request: a missing, malformed, or expired token just leaves the request
// unauthenticated and handlers decide what an anonymous caller may do.
func ProtectedRoute(cfg Config, svc TokenService, logger Logger) router.MiddlewareFunc {
	if logger == nil {
		logger = defLogger{}
	}
	return jwtware.New(jwtware.Config{
		ErrorHandler:    MakeOptionalAuthErrorHandler(logger),
		TokenValidator:  JWTValidator(svc),
		AuthScheme:      cfg.GetAuthScheme(),
		ContextKey:      cfg.GetContextKey(),
		TokenLookup:     cfg.GetTokenLookup(),
		ContextEnricher: ContextEnricherAdapter,
	})
}

// MakeOptionalAuthErrorHandler logs the resolution failure at debug and lets
// the request continue without an identity.
func MakeOptionalAuthErrorHandler(logger Logger) router.ErrorHandler {
	return func(ctx router.Context, err error) error {
		logger.Debug("identity resolution failed, proceeding unauthenticated: %v", err)
		return ctx.Next()
	}
}

// RequireAuthority gates a route on the caller holding at least one of the
// given grants. ADMIN passes every gate. With no grants it only requires a
// resolved principal.
func RequireAuthority(cfg Config, authorities ...string) router.MiddlewareFunc {
	if len(authorities) == 0 {
		return jwtware.RequireAuthority(cfg.GetContextKey())
	}
	alternates := append([]string{RolePrefix + AdminRoleName}, authorities...)
	return jwtware.RequireAuthority(cfg.GetContextKey(), alternates...)
}

func RegisterRoutes[T any](app router.Router[T], controller *AuthController) {
	cfg := controller.Config
	resolve := ProtectedRoute(cfg, controller.Tokens, controller.Logger)
	authed := RequireAuthority(cfg)

	app.Post("/api/v1/auth/login", controller.LoginPost).
		SetName("auth.login")
	app.Post("/api/v1/auth/register", controller.RegistrationCreate).
		SetName("auth.register")
	app.Post("/api/v1/auth/refresh-token", controller.RefreshToken).
		SetName("auth.refresh")
	app.Post("/api/v1/auth/logout", controller.Logout, resolve).
		SetName("auth.logout")
	app.Post("/api/v1/auth/password/forgot", controller.PasswordForgot).
		SetName("auth.pwd-forgot")
	app.Post("/api/v1/auth/password/reset/confirm", controller.PasswordResetConfirm).
		SetName("auth.pwd-reset")

	app.Get("/api/v1/users/me", controller.CurrentUser, resolve, authed).
		SetName("users.me")
	app.Put("/api/v1/users/me", controller.UpdateOwnProfile, resolve, authed).
		SetName("users.me.update")
	app.Put("/api/v1/users/me/password", controller.ChangePassword, resolve, authed).
		SetName("users.me.password")
	app.Get("/api/v1/users/:id/profile", controller.GetProfile, resolve, authed).
		SetName("users.profile")
	app.Put("/api/v1/users/:id/profile", controller.UpdateProfile, resolve, authed).
		SetName("users.profile.update")
}

type AuthController struct {
	Logger       Logger
	Repo         RepositoryManager
	Auther       Authenticator
	Tokens       TokenService
	Config       Config
	Mailer       Mailer
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = MakeJSONErrorHandler(c.Logger)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	if c.Mailer == nil {
		c.Mailer = NewLogMailer().WithLogger(c.Logger)
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerTokenService(svc TokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Tokens = svc
		return c
	}
}

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithControllerMailer(mailer Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = mailer
		return c
	}
}

// MakeJSONErrorHandler maps rich errors to a JSON body, using the error's
// code as the HTTP status.
func MakeJSONErrorHandler(logger Logger) router.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return func(c router.Context, err error) error {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		status := richErr.Code
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusInternalServerError
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed: %s (%s)", richErr.Message, richErr.TextCode)
		}

		return c.JSON(status, router.ViewContext{
			"error": router.ViewContext{
				"message":   richErr.Message,
				"text_code": richErr.TextCode,
				"category":  richErr.Category,
			},
		})
	}
}

func (a *AuthController) validationFailed(ctx router.Context, err error) error {
	return ctx.JSON(http.StatusBadRequest, router.ViewContext{
		"error": router.ViewContext{
			"message":    "validation failed",
			"text_code":  "VALIDATION",
			"validation": formatValidationErrors(err),
		},
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, ErrUnableToParsePayload)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	result, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, ErrUnableToParsePayload)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	var resp *RegisterUserResponse
	msg := RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
		OnResponse: func(r *RegisterUserResponse) {
			resp = r
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo).WithLogger(a.Logger)
	if err := registerUser.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("register user error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, resp.User)
}

// RefreshTokenRequest payload
type RefreshTokenRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) RefreshToken(ctx router.Context) error {
	payload := new(RefreshTokenRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, ErrUnableToParsePayload)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	result, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		a.Logger.Error("token refresh error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}

// Logout acknowledges the call. Tokens are stateless so there is nothing to
// revoke server side; clients discard their copies.
func (a *AuthController) Logout(ctx router.Context) error {
	token := ""
	if claims, ok := ctx.Locals(a.Config.GetContextKey()).(jwtware.AuthClaims); ok && claims != nil {
		token = claims.Subject()
	}

	if err := a.Auther.Logout(ctx.Context(), token); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"message": "logged out",
	})
}

// PasswordForgotPayload holds values for the reset request
type PasswordForgotPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordForgotPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) PasswordForgot(ctx router.Context) error {
	payload := new(PasswordForgotPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, ErrUnableToParsePayload)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	msg := InitializePasswordResetMessage{
		Email: payload.Email,
	}

	resetInit := NewInitializePasswordResetHandler(a.Repo, a.Mailer).
		WithLogger(a.Logger).
		WithTokenTTL(a.Config.GetResetTokenTTL()).
		WithResetBaseURL(a.Config.GetResetBaseURL())

	if err := resetInit.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("password reset request error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	// same body whether or not the email maps to an account
	return ctx.JSON(http.StatusAccepted, router.ViewContext{
		"message": "If the account exists, a reset link has been sent",
	})
}

// PasswordResetConfirmPayload holds values for the reset confirmation
type PasswordResetConfirmPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetConfirmPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetConfirm(ctx router.Context) error {
	payload := new(PasswordResetConfirmPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, ErrUnableToParsePayload)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	msg := FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}

	finalize := NewFinalizePasswordResetHandler(a.Repo).WithLogger(a.Logger)
	if err := finalize.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("password reset confirm error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"message": "password updated",
	})
}

func (a *AuthController) CurrentUser(ctx router.Context) error {
	claims, err := a.currentClaims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	user, err := a.Repo.Users().GetByID(ctx.Context(), claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return a.ErrorHandler(ctx, ErrUserNotFound)
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"user":        user,
		"authorities": DeriveAuthorities(user.Roles),
	})
}

// UpdateProfilePayload carries the editable profile fields
type UpdateProfilePayload struct {
	FirstName   string `form:"first_name" json:"first_name"`
	LastName    string `form:"last_name" json:"last_name"`
	PhotoURL    string `form:"photo_url" json:"photo_url"`
	DateOfBirth string `form:"date_of_birth" json:"date_of_birth"`
	Gender      string `form:"gender" json:"gender"`
	Bio         string `form:"bio" json:"bio"`
}

// Validate will validate the payload
func (r UpdateProfilePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.PhotoURL, validation.Length(0, 500)),
		validation.Field(&r.DateOfBirth, validation.Date("2006-01-02")),
		validation.Field(&r.Gender, validation.In(
			string(GenderFemale),
			string(GenderMale),
			string(GenderUnspecified),
		)),
		validation.Field(&r.Bio, validation.Length(0, 2000)),
	)
}

func (a *AuthController) UpdateOwnProfile(ctx router.Context) error {
	claims, err := a.currentClaims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return a.ErrorHandler(ctx, ErrUnauthorized)
	}

	return a.updateProfileFor(ctx, userID)
}

func (a *AuthController) GetProfile(ctx router.Context) error {
	claims, err := a.currentClaims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	userID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return a.ErrorHandler(ctx, ErrUnableToParsePayload)
	}

	if !a.canTouchProfile(claims, userID, ActionRead) {
		return a.ErrorHandler(ctx, ErrForbidden)
	}

	profile, err := a.Repo.Profiles().GetByUserID(ctx.Context(), userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return a.ErrorHandler(ctx, ErrUserNotFound)
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, profile)
}

func (a *AuthController) UpdateProfile(ctx router.Context) error {
	claims, err := a.currentClaims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	userID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return a.ErrorHandler(ctx, ErrUnableToParsePayload)
	}

	if !a.canTouchProfile(claims, userID, ActionUpdate) {
		return a.ErrorHandler(ctx, ErrForbidden)
	}

	return a.updateProfileFor(ctx, userID)
}

func (a *AuthController) updateProfileFor(ctx router.Context, userID uuid.UUID) error {
	payload := new(UpdateProfilePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, ErrUnableToParsePayload)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	profile, err := a.Repo.Profiles().GetByUserID(ctx.Context(), userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return a.ErrorHandler(ctx, ErrUserNotFound)
		}
		return a.ErrorHandler(ctx, err)
	}

	applyProfilePayload(profile, payload)

	updated, err := a.Repo.Profiles().Update(ctx.Context(), profile)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, updated)
}

// ChangePasswordPayload carries a verified password rotation
type ChangePasswordPayload struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

func (a *AuthController) ChangePassword(ctx router.Context) error {
	claims, err := a.currentClaims(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ChangePasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, ErrUnableToParsePayload)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	user, err := a.Repo.Users().GetByID(ctx.Context(), claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return a.ErrorHandler(ctx, ErrUserNotFound)
		}
		return a.ErrorHandler(ctx, err)
	}

	if err := ComparePasswordAndHash(payload.CurrentPassword, user.PasswordHash); err != nil {
		return a.ErrorHandler(ctx, ErrInvalidPassword)
	}

	if payload.NewPassword == payload.CurrentPassword {
		return a.ErrorHandler(ctx, ErrPasswordUnchanged)
	}

	hash, err := HashPassword(payload.NewPassword)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Repo.Users().ResetPassword(ctx.Context(), user.ID, hash); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.Logger.Info("password changed for user %s", user.ID)

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"message": "password updated",
	})
}

func (a *AuthController) currentClaims(ctx router.Context) (jwtware.AuthClaims, error) {
	claims, ok := ctx.Locals(a.Config.GetContextKey()).(jwtware.AuthClaims)
	if !ok || claims == nil {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// canTouchProfile allows the owner, or callers holding the profile grant for
// the action, or MANAGE, or the admin role.
func (a *AuthController) canTouchProfile(claims jwtware.AuthClaims, userID uuid.UUID, action Action) bool {
	if claims.UserID() == userID.String() {
		return true
	}

	return HasAnyAuthority(
		claims.Authorities(),
		PermissionAuthority(ResourceProfile, action),
		PermissionAuthority(ResourceProfile, ActionManage),
		RolePrefix+AdminRoleName,
	)
}

func applyProfilePayload(profile *Profile, payload *UpdateProfilePayload) {
	if payload.FirstName != "" {
		profile.FirstName = payload.FirstName
	}
	if payload.LastName != "" {
		profile.LastName = payload.LastName
	}
	if payload.PhotoURL != "" {
		profile.PhotoURL = payload.PhotoURL
	}
	if payload.Gender != "" {
		profile.Gender = Gender(payload.Gender)
	}
	if payload.Bio != "" {
		profile.Bio = payload.Bio
	}
	if payload.DateOfBirth != "" {
		if dob, err := parseDateOnly(payload.DateOfBirth); err == nil {
			profile.DateOfBirth = &dob
		}
	}
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func formatValidationErrors(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	if err != nil {
		out["payload"] = err.Error()
	}

	return out
}
