// Package api wires the HTTP surface: authentication, organizations,
// membership, users, and the audit trail.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/orgbase/orgbase/pkg/audit"
	"github.com/orgbase/orgbase/pkg/email"
	"github.com/orgbase/orgbase/pkg/httputil"
	"github.com/orgbase/orgbase/pkg/middleware"
	"github.com/orgbase/orgbase/pkg/observability"
	"github.com/orgbase/orgbase/pkg/orgs"
	"github.com/orgbase/orgbase/pkg/tokens"
	"github.com/orgbase/orgbase/pkg/users"
)

// Config holds the server-level settings the handlers need.
type Config struct {
	PublicURL  string
	SessionTTL time.Duration
	// SecureCookies forces the Secure flag on session cookies even when the
	// request itself arrived over plain HTTP.
	SecureCookies bool
}

// Deps bundles the services the server is built from.
type Deps struct {
	Users    users.Service
	Orgs     orgs.Service
	Tokens   *tokens.Service
	Sender   email.Sender
	AuditLog *audit.Store
	Metrics  *observability.Metrics
	Health   *observability.HealthChecker
	Log      *logrus.Logger
}

// Server is the HTTP API server.
type Server struct {
	router *mux.Router
}

// NewServer builds the router with the full middleware chain and all routes
// registered.
func NewServer(cfg Config, deps Deps) *Server {
	router := mux.NewRouter()
	router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.Log),
		httputil.RecoveryMiddleware(deps.Log),
		deps.Metrics.Middleware,
	)

	deps.Health.RegisterRoutes(router)
	router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)

	session := middleware.NewSessionMiddleware(deps.Tokens, deps.Users, deps.Log)
	api := router.PathPrefix("/").Subrouter()
	api.Use(session.Handler)

	authHandlers := NewAuthHandlers(cfg, deps.Users, deps.Tokens, deps.Sender, deps.Metrics, deps.Log)
	authHandlers.RegisterRoutes(api, middleware.NewRateLimiter(middleware.MagicLinkRateLimitConfig()).Handler)

	NewOrgHandlers(deps.Orgs, deps.Log).RegisterRoutes(api)
	NewUserHandlers(deps.Users, deps.Orgs, deps.Log).RegisterRoutes(api)
	NewLogHandlers(deps.AuditLog, deps.Log).RegisterRoutes(api)

	return &Server{router: router}
}

// Router exposes the configured router.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
