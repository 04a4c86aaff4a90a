package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/gamelink/internal/auth"
	"github.com/rickgao/gamelink/internal/config"
	"github.com/rickgao/gamelink/internal/credstore"
	"github.com/rickgao/gamelink/internal/dispatch"
	"github.com/rickgao/gamelink/internal/lifecycle"
)

func newTestHandler(t *testing.T, verified bool) (http.Handler, *lifecycle.Manager, *lifecycle.Trigger) {
	t.Helper()
	m := lifecycle.NewManager(credstore.NewMemory())
	t.Cleanup(func() { m.Close() })
	d := dispatch.New(nil)
	t.Cleanup(d.Close)
	trigger := lifecycle.NewTrigger(verified)
	return newHandler(m, trigger, d, slog.Default()), m, trigger
}

func TestHealth_Uninitialized(t *testing.T) {
	h, _, _ := newTestHandler(t, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "idle" || resp.Phase != "uninitialized" || resp.Aggregate != "disconnected" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Channels != nil {
		t.Errorf("channels = %v, want none before initialize", resp.Channels)
	}
}

func TestHealth_InitializedVerified(t *testing.T) {
	h, m, _ := newTestHandler(t, true)
	if err := m.InitializeClient(config.ServerConfig{ServerKey: "k", Host: "127.0.0.1", Port: 7350}); err != nil {
		t.Fatalf("InitializeClient: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Phase != "initialized" {
		t.Errorf("phase = %q", resp.Phase)
	}
	for _, ch := range []string{"game", "chat"} {
		if resp.Channels[ch].State != "idle" {
			t.Errorf("%s state = %q, want idle", ch, resp.Channels[ch].State)
		}
		if resp.Channels[ch].Transport {
			t.Errorf("%s transport open before connect", ch)
		}
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantValue  bool
	}{
		{"set true", http.MethodPost, "/verify?value=true", http.StatusOK, true},
		{"set false", http.MethodPost, "/verify?value=false", http.StatusOK, false},
		{"bad value", http.MethodPost, "/verify?value=maybe", http.StatusBadRequest, false},
		{"missing value", http.MethodPost, "/verify", http.StatusBadRequest, false},
		{"wrong method", http.MethodGet, "/verify?value=true", http.StatusMethodNotAllowed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, trigger := newTestHandler(t, false)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if trigger.Value() != tt.wantValue {
				t.Errorf("trigger = %v, want %v", trigger.Value(), tt.wantValue)
			}
		})
	}
}

func TestSignOut(t *testing.T) {
	store := credstore.NewMemoryWith(auth.Credentials{Token: "t1", RefreshToken: "r1"})
	m := lifecycle.NewManager(store)
	t.Cleanup(func() { m.Close() })
	trigger := lifecycle.NewTrigger(true)
	h := newHandler(m, trigger, nil, slog.Default())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signout", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/signout", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if trigger.Value() {
		t.Error("trigger still set after sign out")
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, credstore.ErrNotFound) {
		t.Errorf("store Load = %v, want ErrNotFound", err)
	}
}
