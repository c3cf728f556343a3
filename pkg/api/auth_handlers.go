package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/orgbase/orgbase/pkg/auth"
	"github.com/orgbase/orgbase/pkg/email"
	"github.com/orgbase/orgbase/pkg/httputil"
	"github.com/orgbase/orgbase/pkg/observability"
	"github.com/orgbase/orgbase/pkg/tokens"
	"github.com/orgbase/orgbase/pkg/users"
)

// AuthHandlers implements the passwordless sign-in flow: requesting a magic
// link, consuming it, and finalizing a first-time signup.
type AuthHandlers struct {
	users   users.Service
	tokens  *tokens.Service
	sender  email.Sender
	metrics *observability.Metrics
	log     *logrus.Logger

	publicURL     string
	sessionTTL    time.Duration
	secureCookies bool
}

// NewAuthHandlers creates an AuthHandlers.
func NewAuthHandlers(cfg Config, userService users.Service, tokenService *tokens.Service,
	sender email.Sender, metrics *observability.Metrics, log *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:         userService,
		tokens:        tokenService,
		sender:        sender,
		metrics:       metrics,
		log:           log,
		publicURL:     strings.TrimRight(cfg.PublicURL, "/"),
		sessionTTL:    cfg.SessionTTL,
		secureCookies: cfg.SecureCookies,
	}
}

// RegisterRoutes registers the authentication routes. The POST route is
// wrapped separately by the caller's rate limiter.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, limit func(http.Handler) http.Handler) {
	request := http.Handler(http.HandlerFunc(h.RequestMagicLink))
	if limit != nil {
		request = limit(request)
	}
	router.Handle("/auth/magic-link", request).Methods(http.MethodPost)
	router.HandleFunc("/auth/magic-link", h.ConsumeMagicLink).Methods(http.MethodGet)
	router.HandleFunc("/auth/magic-link", h.FinalizeSignup).Methods(http.MethodPut)
}

type authResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Token   string `json:"token,omitempty"`
}

func writeAuthError(w http.ResponseWriter, status int, code string) {
	_ = httputil.WriteJSON(w, status, authResponse{Success: false, Error: code})
}

type magicLinkRequest struct {
	Identifier string `json:"identifier"`
	Scope      string `json:"scope"`
	Followup   string `json:"followup,omitempty"`
}

// RequestMagicLink looks up the account behind an email and, when one could
// exist, mails a sign-in link. The response is success regardless of whether
// the account exists so the endpoint cannot be used to enumerate accounts.
func (h *AuthHandlers) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	identifier := strings.ToLower(strings.TrimSpace(req.Identifier))
	scope := auth.Scope(req.Scope)
	if !users.IsEmailShaped(identifier) || !scope.Valid() {
		writeAuthError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	subject, ok := h.lookupSubject(r, identifier, scope)
	if ok {
		h.deliverMagicLink(r, subject, scope, identifier, req.Followup)
	}

	// Deliberately identical whether or not a link was sent.
	_ = httputil.WriteJSON(w, http.StatusOK, authResponse{Success: true})
}

func (h *AuthHandlers) lookupSubject(r *http.Request, identifier string, scope auth.Scope) (string, bool) {
	if scope == auth.ScopeAdmin {
		admin, err := h.users.AdminByEmail(r.Context(), identifier)
		if err != nil {
			// Admin accounts are never created through this flow.
			return "", false
		}
		return admin.ID, true
	}

	user, err := h.users.UserByEmail(r.Context(), identifier)
	if errors.Is(err, users.ErrNotFound) {
		// Pre-account token: the raw email stands in as the subject
		// until finalize-signup creates the user.
		return identifier, true
	}
	if err != nil {
		h.log.WithError(err).Error("failed to look up account for magic link")
		return "", false
	}
	return user.ID, true
}

func (h *AuthHandlers) deliverMagicLink(r *http.Request, subject string, scope auth.Scope, to, followup string) {
	token, err := h.tokens.Issue(subject, scope, tokens.AudienceVerifyEmail, tokens.VerifyEmailTTL)
	if err != nil {
		h.log.WithError(err).Error("failed to issue magic link token")
		return
	}
	h.metrics.MagicLinksIssued.Inc()

	link := fmt.Sprintf("%s/auth/magic-link?token=%s", h.publicURL, url.QueryEscape(token))
	if followup != "" {
		link += "&followup=" + url.QueryEscape(followup)
	}

	msg, err := email.MagicLink(to, link, tokens.VerifyEmailTTL)
	if err != nil {
		h.log.WithError(err).Error("failed to render magic link mail")
		return
	}

	// Delivery is best effort; the token is already issued and a failed
	// send must not leak into the response.
	if err := h.sender.Send(r.Context(), msg); err != nil {
		h.log.WithError(err).Error("failed to send magic link mail")
	}
}

// ConsumeMagicLink verifies a sign-in token. Pre-account subjects are
// redirected to profile completion with the token carried forward; known
// accounts receive a session cookie and a redirect to their followup.
func (h *AuthHandlers) ConsumeMagicLink(w http.ResponseWriter, r *http.Request) {
	decoded, err := h.tokens.Verify(r.URL.Query().Get("token"), tokens.AudienceVerifyEmail)
	if err != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid_credentials")
		return
	}

	if users.IsEmailShaped(decoded.Subject) {
		target := fmt.Sprintf("%s/signup?token=%s", h.publicURL, url.QueryEscape(r.URL.Query().Get("token")))
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	if err := h.accountExists(r, decoded); err != nil {
		writeAuthError(w, http.StatusNotFound, "unknown_user")
		return
	}

	session, err := h.tokens.MintSession(decoded.Subject, decoded.Scope, h.sessionTTL, h.secure(r))
	if err != nil {
		h.log.WithError(err).Error("failed to mint session")
		httputil.WriteInternalError(w)
		return
	}
	h.metrics.SessionsMinted.Inc()

	http.SetCookie(w, session.Cookie)
	http.Redirect(w, r, h.redirectTarget(r.URL.Query().Get("followup")), http.StatusSeeOther)
}

func (h *AuthHandlers) accountExists(r *http.Request, decoded *tokens.Decoded) error {
	if decoded.Scope == auth.ScopeAdmin {
		_, err := h.users.AdminByID(r.Context(), decoded.Subject)
		return err
	}
	_, err := h.users.UserByID(r.Context(), decoded.Subject)
	return err
}

// redirectTarget only honors relative followup paths; anything else falls
// back to the application root to keep the endpoint out of open-redirect
// territory.
func (h *AuthHandlers) redirectTarget(followup string) string {
	if strings.HasPrefix(followup, "/") && !strings.HasPrefix(followup, "//") {
		return h.publicURL + followup
	}
	return h.publicURL + "/"
}

type finalizeSignupRequest struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// FinalizeSignup creates the account a pre-account magic link was issued
// for, then signs it in.
func (h *AuthHandlers) FinalizeSignup(w http.ResponseWriter, r *http.Request) {
	var req finalizeSignupRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	decoded, err := h.tokens.Verify(req.Token, tokens.AudienceVerifyEmail)
	if err != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid_credentials")
		return
	}
	if !users.IsEmailShaped(decoded.Subject) {
		writeAuthError(w, http.StatusBadRequest, "invalid_token_subject")
		return
	}
	if decoded.Scope != auth.ScopeUser {
		writeAuthError(w, http.StatusBadRequest, "invalid_token_scope")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Name, decoded.Subject)
	if err != nil {
		var verr *users.ValidationError
		switch {
		case errors.As(err, &verr):
			writeAuthError(w, http.StatusBadRequest, "invalid_request")
		case errors.Is(err, users.ErrCreationFailed):
			writeAuthError(w, http.StatusConflict, "user_creation_failed")
		default:
			h.log.WithError(err).Error("failed to create user from signup")
			httputil.WriteInternalError(w)
		}
		return
	}

	session, err := h.tokens.MintSession(user.ID, auth.ScopeUser, h.sessionTTL, h.secure(r))
	if err != nil {
		h.log.WithError(err).Error("failed to mint session")
		httputil.WriteInternalError(w)
		return
	}
	h.metrics.SessionsMinted.Inc()

	http.SetCookie(w, session.Cookie)
	_ = httputil.WriteJSON(w, http.StatusOK, authResponse{Success: true, Token: session.Token})
}

func (h *AuthHandlers) secure(r *http.Request) bool {
	return h.secureCookies || secureRequest(r)
}

func secureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
