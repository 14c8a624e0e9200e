// Package auth applies service credentials to outgoing requests.
package auth

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator sets credentials on a request.
type Authenticator interface {
	Apply(req *http.Request) error
}

// None leaves requests untouched.
type None struct{}

func (None) Apply(*http.Request) error { return nil }

// Basic sends HTTP basic credentials.
type Basic struct {
	Username string
	Password string
}

func (b Basic) Apply(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// Bearer sends a bearer token. The token is not verified locally; its exp
// claim, when present, is checked so an expired token fails before sending.
type Bearer struct {
	mu      sync.RWMutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewBearer parses token and returns an authenticator sending it.
func NewBearer(token string) (*Bearer, error) {
	b := &Bearer{now: time.Now}
	if err := b.SetToken(token); err != nil {
		return nil, err
	}
	return b, nil
}

// SetToken replaces the token, for callers that refresh it.
func (b *Bearer) SetToken(token string) error {
	if token == "" {
		return fmt.Errorf("empty bearer token")
	}

	// Parse the token without verification to read its claims
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("failed to parse JWT: %w", err)
	}
	var expires time.Time
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("invalid JWT claims: %w", err)
	}
	if exp != nil {
		expires = exp.Time
	}

	b.mu.Lock()
	b.token = token
	b.expires = expires
	b.mu.Unlock()
	return nil
}

// Expires returns the token expiry, zero when the token has none.
func (b *Bearer) Expires() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.expires
}

func (b *Bearer) Apply(req *http.Request) error {
	b.mu.RLock()
	token, expires := b.token, b.expires
	b.mu.RUnlock()

	if !expires.IsZero() && !b.now().Before(expires) {
		return fmt.Errorf("token expired at %s", expires.UTC().Format(time.RFC3339))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// FromCredentials picks the authenticator for a configuration: a token wins
// over a username and password; neither yields None.
func FromCredentials(username, password, token string) (Authenticator, error) {
	switch {
	case token != "":
		return NewBearer(token)
	case username != "" || password != "":
		return Basic{Username: username, Password: password}, nil
	default:
		return None{}, nil
	}
}
