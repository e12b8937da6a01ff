package identity

import (
	"context"

	"github.com/taskforge/identity/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use
// identity helpers directly.
type ValidationListener = jwtware.ValidationListener

type tokenValidatorAdapter struct {
	svc TokenService
}

// JWTValidator adapts a TokenService into the middleware's validator
// interface.
func JWTValidator(svc TokenService) jwtware.TokenValidator {
	return tokenValidatorAdapter{svc: svc}
}

func (a tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.svc.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ContextEnricherAdapter adapts jwtware.AuthClaims to identity.AuthClaims and
// stores claims + principal in the standard context for downstream usage.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}

	ctxWithClaims := WithClaimsContext(c, authClaims)

	if principal := PrincipalFromClaims(authClaims); principal != nil {
		return WithPrincipalContext(ctxWithClaims, principal)
	}

	return ctxWithClaims
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}
