// Package auth decodes realtime backend sessions from stored credentials.
//
// Session tokens are JWTs issued by the backend. Restoring a session only
// decodes the claims locally; signatures are verified by the server when the
// token is presented on a socket or REST call.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials is the persisted token pair.
type Credentials struct {
	Token        string `json:"token" yaml:"token"`
	RefreshToken string `json:"refresh_token" yaml:"refresh_token"`
}

// IsZero reports whether no token is stored.
func (c Credentials) IsZero() bool {
	return c.Token == "" && c.RefreshToken == ""
}

// Session is an immutable snapshot of an authenticated session.
// Refreshing produces a new Session; callers never modify one in place.
type Session struct {
	Token        string
	RefreshToken string

	UserID   string
	Username string
	Vars     map[string]string

	CreatedAt        time.Time
	ExpiresAt        time.Time // Zero when the token carries no exp claim
	RefreshExpiresAt time.Time
}

// DecodeError reports malformed or unusable stored credentials.
type DecodeError struct {
	Field  string // "token" or "refresh_token"
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrExpired marks a session whose token and refresh token have both expired.
var ErrExpired = errors.New("session expired")

// sessionClaims are the claims carried by backend session tokens.
type sessionClaims struct {
	UserID   string            `json:"uid"`
	Username string            `json:"usn"`
	Vars     map[string]string `json:"vrs,omitempty"`
	jwt.RegisteredClaims
}

// Restore rebuilds a Session from a stored token pair without a network round-trip.
// An empty refresh token is accepted; the session then cannot be refreshed.
func Restore(token, refreshToken string) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &DecodeError{Field: "token", Reason: "empty"}
	}

	claims, err := decodeClaims(token)
	if err != nil {
		return nil, &DecodeError{Field: "token", Reason: "malformed", Err: err}
	}

	s := &Session{
		Token:        token,
		RefreshToken: refreshToken,
		UserID:       claims.UserID,
		Username:     claims.Username,
		Vars:         claims.Vars,
	}
	if claims.IssuedAt != nil {
		s.CreatedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}

	if refreshToken != "" {
		refreshClaims, err := decodeClaims(refreshToken)
		if err != nil {
			return nil, &DecodeError{Field: "refresh_token", Reason: "malformed", Err: err}
		}
		if refreshClaims.ExpiresAt != nil {
			s.RefreshExpiresAt = refreshClaims.ExpiresAt.Time
		}
	}

	return s, nil
}

func decodeClaims(token string) (*sessionClaims, error) {
	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// Credentials returns the token pair to persist for this session.
func (s *Session) Credentials() Credentials {
	return Credentials{Token: s.Token, RefreshToken: s.RefreshToken}
}

// IsExpired reports whether the session token has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ExpiresWithin reports whether the session token expires before now+d.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !s.ExpiresAt.IsZero() && now.Add(d).After(s.ExpiresAt)
}

// CanRefresh reports whether the refresh token is present and unexpired at now.
func (s *Session) CanRefresh(now time.Time) bool {
	if s.RefreshToken == "" {
		return false
	}
	return s.RefreshExpiresAt.IsZero() || now.Before(s.RefreshExpiresAt)
}

// Usable returns a DecodeError when neither token can open a socket at now.
func (s *Session) Usable(now time.Time) error {
	if s.IsExpired(now) && !s.CanRefresh(now) {
		return &DecodeError{Field: "token", Reason: "expired", Err: ErrExpired}
	}
	return nil
}
