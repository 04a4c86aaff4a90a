package refresher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/gamelink/internal/auth"
)

// mockSource holds a session and counts refreshes.
type mockSource struct {
	mu        sync.Mutex
	session   *auth.Session
	refreshes int
	err       error
}

func (m *mockSource) Session() *auth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *mockSource) RefreshSession(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	if m.err != nil {
		return m.err
	}
	m.session = &auth.Session{
		Token:        "refreshed",
		RefreshToken: m.session.RefreshToken,
		ExpiresAt:    m.session.ExpiresAt.Add(time.Hour),
	}
	return nil
}

func (m *mockSource) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

func TestRefresher_Check(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		session       *auth.Session
		err           error
		wantRefreshes int
		wantStats     Stats
	}{
		{
			name:      "no session",
			wantStats: Stats{Checks: 1},
		},
		{
			name:      "far from expiry",
			session:   &auth.Session{Token: "t", RefreshToken: "r", ExpiresAt: now.Add(time.Hour)},
			wantStats: Stats{Checks: 1},
		},
		{
			name:      "no expiry claim",
			session:   &auth.Session{Token: "t", RefreshToken: "r"},
			wantStats: Stats{Checks: 1},
		},
		{
			name:          "within window",
			session:       &auth.Session{Token: "t", RefreshToken: "r", ExpiresAt: now.Add(time.Minute)},
			wantRefreshes: 1,
			wantStats:     Stats{Checks: 1, Refreshed: 1},
		},
		{
			name:      "within window without refresh token",
			session:   &auth.Session{Token: "t", ExpiresAt: now.Add(time.Minute)},
			wantStats: Stats{Checks: 1},
		},
		{
			name: "refresh token expired",
			session: &auth.Session{
				Token:            "t",
				RefreshToken:     "r",
				ExpiresAt:        now.Add(time.Minute),
				RefreshExpiresAt: now.Add(-time.Minute),
			},
			wantStats: Stats{Checks: 1},
		},
		{
			name:          "refresh fails",
			session:       &auth.Session{Token: "t", RefreshToken: "r", ExpiresAt: now.Add(time.Minute)},
			err:           errors.New("backend unavailable"),
			wantRefreshes: 1,
			wantStats:     Stats{Checks: 1, Failures: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &mockSource{session: tt.session, err: tt.err}
			r := New(Config{Interval: time.Hour, Window: 5 * time.Minute, Timeout: time.Second}, src, nil)
			r.now = func() time.Time { return now }
			r.ctx = context.Background()

			r.check()

			if got := src.count(); got != tt.wantRefreshes {
				t.Errorf("refreshes = %d, want %d", got, tt.wantRefreshes)
			}
			if got := r.Stats(); got != tt.wantStats {
				t.Errorf("Stats() = %+v, want %+v", got, tt.wantStats)
			}
		})
	}
}

func TestRefresher_StartStop(t *testing.T) {
	src := &mockSource{session: &auth.Session{
		Token:        "t",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Second),
	}}

	r := New(Config{Interval: 20 * time.Millisecond, Window: time.Minute, Timeout: time.Second}, src, nil)

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for src.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if src.count() == 0 {
		t.Error("session was never refreshed")
	}
	if src.Session().Token != "refreshed" {
		t.Errorf("token = %q, want refreshed", src.Session().Token)
	}
}

func TestNew_Defaults(t *testing.T) {
	r := New(Config{}, &mockSource{}, nil)
	if r.cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults %+v", r.cfg, DefaultConfig())
	}
}
