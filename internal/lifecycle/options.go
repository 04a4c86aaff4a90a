package lifecycle

import (
	"log/slog"
	"time"

	"github.com/rickgao/gamelink/internal/config"
	"github.com/rickgao/gamelink/internal/connection"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClientFactory replaces connection.NewClient. opts are passed to every call.
func WithClientFactory(f connection.Factory, opts ...connection.Option) Option {
	return func(m *Manager) {
		if f != nil {
			m.factory = f
		}
		m.clientOpts = append(m.clientOpts, opts...)
	}
}

// WithClientOptions adds options passed to the client factory.
func WithClientOptions(opts ...connection.Option) Option {
	return func(m *Manager) {
		m.clientOpts = append(m.clientOpts, opts...)
	}
}

// WithWirer sets the event wirer called for each socket at initialization.
func WithWirer(w Wirer) Option {
	return func(m *Manager) {
		m.wirer = w
	}
}

// WithSessionConfig sets connect and refresh settings. Zero fields keep defaults.
func WithSessionConfig(cfg config.SessionConfig) Option {
	return func(m *Manager) {
		if cfg.AppearOnline != nil {
			m.sessionCfg.AppearOnline = cfg.AppearOnline
		}
		if cfg.ConnectTimeout > 0 {
			m.sessionCfg.ConnectTimeout = cfg.ConnectTimeout
		}
		if cfg.RefreshWindow > 0 {
			m.sessionCfg.RefreshWindow = cfg.RefreshWindow
		}
	}
}

// WithRetry sets connect retry bounds. Zero fields keep defaults.
func WithRetry(cfg config.RetryConfig) Option {
	return func(m *Manager) {
		if cfg.MaxAttempts > 0 {
			m.retry.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.BaseDelay > 0 {
			m.retry.BaseDelay = cfg.BaseDelay
		}
		if cfg.MaxDelay > 0 {
			m.retry.MaxDelay = cfg.MaxDelay
		}
	}
}

// WithReconnectOnDrop enables reconnecting sockets that drop while connected.
func WithReconnectOnDrop(enabled bool) Option {
	return func(m *Manager) {
		m.reconnectOnDrop = enabled
	}
}

// WithClock sets the time source used for session expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
