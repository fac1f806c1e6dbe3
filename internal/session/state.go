package session

import (
	"time"

	"github.com/dgellow/wishlist-front/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// Status is the session's position in its lifecycle. LoggedIn and
// LoginFailed are mutually exclusive.
type Status int

const (
	StatusLoggedOut Status = iota
	StatusLoggedIn
	StatusLoginFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoggedOut:
		return "logged_out"
	case StatusLoggedIn:
		return "logged_in"
	case StatusLoginFailed:
		return "login_failed"
	default:
		return "unknown"
	}
}

// TokenClaims are read from the bearer token without verifying its
// signature. They are informational only; the server remains the authority.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carried an expiry that is behind now
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// State is a point-in-time copy of the session
type State struct {
	Status   Status
	UserName string
	Token    string
	Claims   TokenClaims
	// Attempt is the sequence number of the authentication attempt that
	// produced this state, 0 for direct Record* calls
	Attempt uint64

	credential config.Secret
}

// IsLoggedIn reports whether the state carries an active session
func (s State) IsLoggedIn() bool {
	return s.Status == StatusLoggedIn
}

// HasLoginErrored reports whether the last committed attempt failed
func (s State) HasLoginErrored() bool {
	return s.Status == StatusLoginFailed
}

func parseClaims(token string) (TokenClaims, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenClaims{}, false
	}

	out := TokenClaims{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, true
}
