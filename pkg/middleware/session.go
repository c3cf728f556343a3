// Package middleware provides session authentication and abuse protection
// for the HTTP API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/orgbase/orgbase/pkg/auth"
	"github.com/orgbase/orgbase/pkg/httputil"
	"github.com/orgbase/orgbase/pkg/tokens"
	"github.com/orgbase/orgbase/pkg/users"
)

// SessionMiddleware resolves the session token on each request into an
// auth.Actor. Tokens arrive either as the session cookie or as a Bearer
// header; the header wins when both are present.
type SessionMiddleware struct {
	tokens *tokens.Service
	users  users.Service
	log    *logrus.Logger
}

// NewSessionMiddleware creates a SessionMiddleware.
func NewSessionMiddleware(tokenService *tokens.Service, userService users.Service, log *logrus.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		tokens: tokenService,
		users:  userService,
		log:    log,
	}
}

// Handler authenticates the request when a token is present. Requests
// without a token pass through anonymous; RequireAuth gates the endpoints
// that need an actor.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		actor, err := m.resolve(r, token)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired session")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	})
}

func (m *SessionMiddleware) resolve(r *http.Request, token string) (auth.Actor, error) {
	decoded, err := m.tokens.Verify(token, tokens.AudienceSession)
	if err != nil {
		return auth.Actor{}, err
	}
	if !decoded.Scope.Valid() {
		return auth.Actor{}, tokens.ErrBadSignature
	}

	// The account must still exist; a deleted account invalidates its
	// outstanding sessions.
	ctx := r.Context()
	if decoded.Scope == auth.ScopeAdmin {
		if _, err := m.users.AdminByID(ctx, decoded.Subject); err != nil {
			return auth.Actor{}, err
		}
	} else {
		if _, err := m.users.UserByID(ctx, decoded.Subject); err != nil {
			return auth.Actor{}, err
		}
	}

	return auth.Actor{ID: decoded.Subject, Scope: decoded.Scope}, nil
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if cookie, err := r.Cookie(tokens.SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth rejects requests that carry no authenticated actor.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ActorFromContext(r.Context()); !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose actor lacks admin scope.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.ActorFromContext(r.Context())
		if !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !actor.IsAdmin() {
			httputil.WriteForbidden(w, "admin scope required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
