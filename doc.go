// Package identity provides the building blocks of a user identity service:
// JWT issuance and verification, role based authorization, password reset
// flows, and HTTP helpers for resolving the caller on every request.
//
// Tokens:
//   - TokenService signs and verifies HMAC JWTs. Access tokens are short
//     lived and embed the caller's authority snapshot; refresh tokens carry
//     no authorities and are only redeemable through the refresh exchange,
//     which re-derives authorities from the account's current roles.
//
// Authorization:
//   - Roles hold RESOURCE:ACTION permissions. DeriveAuthorities flattens a
//     role set into the authority strings embedded in access tokens
//     ("ROLE_<name>" plus "<RESOURCE>:<ACTION>"). Authority checks are exact
//     string matches; call sites that treat MANAGE as implying other actions
//     pass both alternates explicitly.
//
// Password reset:
//   - InitializePasswordResetHandler issues single-use, expiring secrets and
//     guarantees at most one live token per account. Unknown emails get the
//     same response after a fixed latency. FinalizePasswordResetHandler
//     redeems a secret exactly once, distinguishing used from expired.
//     CleanupExpiredTokensHandler sweeps expired rows on an interval.
//
// Request identity:
//   - The jwtware middleware resolves bearer tokens into request principals.
//     Resolution never fails a request: handlers see an anonymous caller and
//     decide what anonymous may do. RequireAuthority gates routes that need
//     a verified principal or specific grants.
package identity
