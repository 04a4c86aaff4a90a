package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, userID, username string, exp time.Time) string {
	t.Helper()
	claims := sessionClaims{
		UserID:   userID,
		Username: username,
		Vars:     map[string]string{"region": "eu"},
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
	}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-server-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestRestore(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	refreshExp := time.Now().Add(24 * time.Hour).Truncate(time.Second)

	token := signToken(t, "user-1", "alice", exp)
	refresh := signToken(t, "user-1", "alice", refreshExp)

	s, err := Restore(token, refresh)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if s.Token != token {
		t.Error("Token not preserved")
	}
	if s.RefreshToken != refresh {
		t.Error("RefreshToken not preserved")
	}
	if s.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", s.UserID, "user-1")
	}
	if s.Username != "alice" {
		t.Errorf("Username = %q, want %q", s.Username, "alice")
	}
	if s.Vars["region"] != "eu" {
		t.Errorf("Vars[region] = %q, want %q", s.Vars["region"], "eu")
	}
	if !s.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt, exp)
	}
	if !s.RefreshExpiresAt.Equal(refreshExp) {
		t.Errorf("RefreshExpiresAt = %v, want %v", s.RefreshExpiresAt, refreshExp)
	}
	if s.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set from iat")
	}

	creds := s.Credentials()
	if creds.Token != token || creds.RefreshToken != refresh {
		t.Error("Credentials() does not round-trip the token pair")
	}
}

func TestRestore_Errors(t *testing.T) {
	valid := signToken(t, "u", "n", time.Now().Add(time.Hour))

	tests := []struct {
		name      string
		token     string
		refresh   string
		wantField string
	}{
		{name: "empty token", token: "", refresh: valid, wantField: "token"},
		{name: "blank token", token: "   ", refresh: valid, wantField: "token"},
		{name: "malformed token", token: "not-a-jwt", refresh: valid, wantField: "token"},
		{name: "malformed refresh", token: valid, refresh: "a.b", wantField: "refresh_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(tt.token, tt.refresh)
			if err == nil {
				t.Fatal("expected error")
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
			if decodeErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", decodeErr.Field, tt.wantField)
			}
		})
	}
}

func TestRestore_EmptyRefresh(t *testing.T) {
	s, err := Restore(signToken(t, "u", "n", time.Now().Add(time.Hour)), "")
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if s.CanRefresh(time.Now()) {
		t.Error("CanRefresh() = true without refresh token")
	}
}

func TestSession_Expiry(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name           string
		session        Session
		wantExpired    bool
		wantWithin     bool
		wantCanRefresh bool
		wantUsable     bool
	}{
		{
			name:           "no exp claim",
			session:        Session{Token: "t", RefreshToken: "r"},
			wantCanRefresh: true,
			wantUsable:     true,
		},
		{
			name:           "fresh token",
			session:        Session{Token: "t", RefreshToken: "r", ExpiresAt: now.Add(time.Hour)},
			wantCanRefresh: true,
			wantUsable:     true,
		},
		{
			name:           "expiring soon",
			session:        Session{Token: "t", RefreshToken: "r", ExpiresAt: now.Add(time.Minute)},
			wantWithin:     true,
			wantCanRefresh: true,
			wantUsable:     true,
		},
		{
			name:           "expired with valid refresh",
			session:        Session{Token: "t", RefreshToken: "r", ExpiresAt: now.Add(-time.Minute), RefreshExpiresAt: now.Add(time.Hour)},
			wantExpired:    true,
			wantWithin:     true,
			wantCanRefresh: true,
			wantUsable:     true,
		},
		{
			name:        "both expired",
			session:     Session{Token: "t", RefreshToken: "r", ExpiresAt: now.Add(-time.Hour), RefreshExpiresAt: now.Add(-time.Minute)},
			wantExpired: true,
			wantWithin:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.IsExpired(now); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
			if got := tt.session.ExpiresWithin(now, 5*time.Minute); got != tt.wantWithin {
				t.Errorf("ExpiresWithin() = %v, want %v", got, tt.wantWithin)
			}
			if got := tt.session.CanRefresh(now); got != tt.wantCanRefresh {
				t.Errorf("CanRefresh() = %v, want %v", got, tt.wantCanRefresh)
			}
			err := tt.session.Usable(now)
			if (err == nil) != tt.wantUsable {
				t.Errorf("Usable() = %v, want usable=%v", err, tt.wantUsable)
			}
			if err != nil && !errors.Is(err, ErrExpired) {
				t.Errorf("Usable() error should wrap ErrExpired, got %v", err)
			}
		})
	}
}
