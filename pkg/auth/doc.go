// Package auth defines actor identity, scopes, and organization roles.
//
// An Actor is the authenticated caller of an operation: an account ID plus a
// scope tag selecting which authorization rule set applies. Actor identity is
// threaded explicitly as a parameter through every service call; the context
// helpers exist only for the HTTP boundary.
package auth
