package identity

import (
	"github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"
)

// Stable text codes surfaced to API clients alongside the error category.
const (
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	TextCodeUnauthorized        = "UNAUTHORIZED"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeResetTokenNotFound  = "RESET_TOKEN_NOT_FOUND"
	TextCodeResetTokenUsed      = "RESET_TOKEN_USED"
	TextCodeResetTokenExpired   = "RESET_TOKEN_EXPIRED"
	TextCodeEmailTaken          = "EMAIL_TAKEN"
)

// ErrInvalidCredentials is returned for unknown identifiers AND for wrong
// passwords. The caller never learns which one failed.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrTokenExpired is returned when a token is presented past its expiry instant
var ErrTokenExpired = errors.New("authentication token has expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed covers bad signatures, unexpected algorithms, and
// structurally broken tokens
var ErrTokenMalformed = errors.New("authentication token is malformed or has an invalid signature", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrInvalidRefreshToken is returned when a refresh is attempted with a token
// that fails verification or is not of the REFRESH kind
var ErrInvalidRefreshToken = errors.New("refresh token is invalid, expired, or of the wrong kind", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidRefreshToken)

// ErrUnauthorized is returned when an operation requires a principal and none
// (or an insufficient one) is present
var ErrUnauthorized = errors.New("authentication required", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeUnauthorized)

// ErrForbidden is returned when a principal lacks a required authority
var ErrForbidden = errors.New("insufficient permissions", errors.CategoryAuthz).
	WithCode(errors.CodeForbidden).
	WithTextCode(TextCodeForbidden)

// ErrResetTokenNotFound means no reset token matches the presented secret
var ErrResetTokenNotFound = errors.New("password reset token not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode(TextCodeResetTokenNotFound)

// ErrResetTokenUsed and ErrResetTokenExpired share a category and HTTP
// treatment; their messages differ so callers can tell which terminal state
// the token reached.
var ErrResetTokenUsed = errors.New("password reset token has already been used", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeResetTokenUsed)

var ErrResetTokenExpired = errors.New("password reset token has expired", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeResetTokenExpired)

// ErrUserNotFound marks a dangling account reference. This is an internal
// consistency fault, not a user-facing validation error.
var ErrUserNotFound = errors.New("user not found", errors.CategoryInternal).
	WithCode(errors.CodeInternal).
	WithTextCode("USER_NOT_FOUND")

// ErrRoleNotFound is returned when a role lookup by name fails, e.g. the
// default registration role is missing from the store
var ErrRoleNotFound = errors.New("role not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode("ROLE_NOT_FOUND")

// ErrEmailTaken is returned on registration with an already registered email
var ErrEmailTaken = errors.New("email is already registered", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode(TextCodeEmailTaken)

// ErrInvalidPassword covers change-password policy failures for an
// authenticated user (wrong old password, unchanged password, confirm mismatch)
var ErrInvalidPassword = errors.New("invalid password", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode("INVALID_PASSWORD")

// ErrMismatchedHashAndPassword is the internal bcrypt comparison failure;
// callers translate it to ErrInvalidCredentials before it leaves the core
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode("PASSWORD_MISMATCH")

// ErrTooManyLoginAttempts throttles repeated failed logins within the
// cooldown window
var ErrTooManyLoginAttempts = errors.New("too many failed login attempts", errors.CategoryRateLimit).
	WithCode(429).
	WithTextCode("TOO_MANY_LOGIN_ATTEMPTS")

// ErrUnableToParsePayload rejects request bodies the codec cannot bind
var ErrUnableToParsePayload = errors.New("unable to parse request payload", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest).
	WithTextCode("INVALID_PAYLOAD")

// ErrPasswordUnchanged rejects rotating a password onto itself
var ErrPasswordUnchanged = errors.New("new password must be different from the current password", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode("PASSWORD_UNCHANGED")

// ErrNoEmptyString rejects empty input to the password hasher
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return true
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == TextCodeTokenExpired
	}
	return false
}
