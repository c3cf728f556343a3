// Package tokens issues and verifies the signed, audience-scoped, time-limited
// tokens behind magic-link sign-in, account finalization, and sessions.
//
// Tokens are HMAC-SHA512 JWTs signed with one process-wide secret. The service
// is stateless: nothing is persisted, and expiry is carried entirely by the
// exp claim. Verification failures are typed (ErrExpired, ErrBadSignature,
// ErrAudienceMismatch, ErrIssuerMismatch) so callers can branch without
// string-matching.
package tokens
