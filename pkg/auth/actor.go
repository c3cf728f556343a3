package auth

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned when an actor lacks the rights to perform
// an operation. The operation has no partial effect and emits no log entries.
var ErrPermissionDenied = errors.New("permission denied")

// Scope identifies the kind of account an actor authenticated as.
type Scope string

const (
	ScopeUser  Scope = "user"
	ScopeAdmin Scope = "admin"
)

// Valid reports whether the scope is one of the known account kinds.
func (s Scope) Valid() bool {
	return s == ScopeUser || s == ScopeAdmin
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string
	Scope Scope
}

// IsAdmin reports whether the actor authenticated through the admin scope.
func (a Actor) IsAdmin() bool {
	return a.Scope == ScopeAdmin
}

type contextKey struct{}

// WithActor returns a context carrying the actor. Used by the session
// middleware; services receive the actor as an explicit parameter.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFromContext extracts the actor set by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}
