package tokens

import (
	"net/http"
	"time"

	"github.com/orgbase/orgbase/pkg/auth"
)

// SessionCookieName carries the session credential between requests.
const SessionCookieName = "orgbase_token"

// DefaultSessionTTL is how long a minted session stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Session is a freshly minted session credential plus the cookie that
// delivers it.
type Session struct {
	Token  string
	Cookie *http.Cookie
}

// MintSession issues a session token for an account and wraps it in a cookie.
// The Secure attribute follows whether the inbound request used a secure
// transport.
func (s *Service) MintSession(accountID string, scope auth.Scope, ttl time.Duration, secure bool) (*Session, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	token, err := s.Issue(accountID, scope, AudienceSession, ttl)
	if err != nil {
		return nil, err
	}

	return &Session{
		Token: token,
		Cookie: &http.Cookie{
			Name:     SessionCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		},
	}, nil
}
