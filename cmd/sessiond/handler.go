package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rickgao/gamelink/internal/dispatch"
	"github.com/rickgao/gamelink/internal/lifecycle"
)

type channelHealth struct {
	State     string `json:"state"`
	Transport bool   `json:"transport_open"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string                   `json:"status"`
	Verified  bool                     `json:"verified"`
	Phase     string                   `json:"phase"`
	Aggregate string                   `json:"aggregate"`
	Channels  map[string]channelHealth `json:"channels,omitempty"`
	UserID    string                   `json:"user_id,omitempty"`
	Username  string                   `json:"username,omitempty"`
	Events    *dispatch.Stats          `json:"events,omitempty"`
}

// newHandler builds the daemon's HTTP mux.
func newHandler(m *lifecycle.Manager, trigger *lifecycle.Trigger, d *dispatch.Dispatcher, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := healthResponse{
			Status:    "healthy",
			Verified:  trigger.Value(),
			Phase:     m.Phase().String(),
			Aggregate: m.State().String(),
		}

		if game, chat := m.Sockets(); game != nil {
			health.Channels = make(map[string]channelHealth, 2)
			for _, h := range []*lifecycle.SocketHandle{game, chat} {
				ch := channelHealth{
					State:     h.State().String(),
					Transport: h.Socket().IsConnected(),
				}
				if err := h.LastErr(); err != nil {
					ch.Error = err.Error()
				}
				health.Channels[string(h.Channel())] = ch
			}
		}
		if s := m.Session(); s != nil {
			health.UserID = s.UserID
			health.Username = s.Username
		}
		if d != nil {
			stats := d.Stats()
			health.Events = &stats
		}

		switch {
		case !health.Verified:
			health.Status = "idle"
		case m.State() == lifecycle.PartiallyConnected:
			health.Status = "degraded"
		case m.State() == lifecycle.Disconnected:
			health.Status = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		value, err := strconv.ParseBool(r.URL.Query().Get("value"))
		if err != nil {
			http.Error(w, "value must be true or false", http.StatusBadRequest)
			return
		}

		changed := trigger.Set(value)
		logger.Info("verified flag set", "value", value, "changed", changed)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{
			"verified": value,
			"changed":  changed,
		})
	})

	mux.HandleFunc("/signout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		trigger.Set(false)
		if err := m.SignOut(r.Context()); err != nil {
			logger.Error("sign out failed", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}
