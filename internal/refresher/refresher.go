package refresher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/gamelink/internal/auth"
)

// SessionSource provides and refreshes the current session.
// *lifecycle.Manager implements it.
type SessionSource interface {
	Session() *auth.Session
	RefreshSession(ctx context.Context) error
}

// Config holds refresher configuration.
type Config struct {
	Interval time.Duration // Check interval (default: 1m)
	Window   time.Duration // Refresh when the token expires within this window (default: 5m)
	Timeout  time.Duration // Per-refresh timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: time.Minute,
		Window:   5 * time.Minute,
		Timeout:  10 * time.Second,
	}
}

// Stats counts refresh outcomes.
type Stats struct {
	Checks    int64
	Refreshed int64
	Failures  int64
}

// Refresher periodically refreshes the session held by a SessionSource.
type Refresher struct {
	cfg    Config
	source SessionSource
	logger *slog.Logger
	now    func() time.Time

	checks    atomic.Int64
	refreshed atomic.Int64
	failures  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Refresher.
func New(cfg Config, source SessionSource, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.Window <= 0 {
		cfg.Window = d.Window
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return &Refresher{
		cfg:    cfg,
		source: source,
		logger: logger.With("component", "refresher"),
		now:    time.Now,
	}
}

// Start begins the refresh loop.
func (r *Refresher) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("session refresher started",
		"interval", r.cfg.Interval,
		"window", r.cfg.Window,
	)

	return nil
}

// Stop shuts down the refresher.
func (r *Refresher) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("session refresher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns refresh counters.
func (r *Refresher) Stats() Stats {
	return Stats{
		Checks:    r.checks.Load(),
		Refreshed: r.refreshed.Load(),
		Failures:  r.failures.Load(),
	}
}

func (r *Refresher) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.check()
		}
	}
}

// check refreshes the current session if it is close to expiry.
func (r *Refresher) check() {
	r.checks.Add(1)

	s := r.source.Session()
	if s == nil {
		return
	}

	now := r.now()
	if !s.ExpiresWithin(now, r.cfg.Window) {
		return
	}
	if !s.CanRefresh(now) {
		r.logger.Warn("session expiring without usable refresh token",
			"user_id", s.UserID,
			"expires_at", s.ExpiresAt,
		)
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()

	if err := r.source.RefreshSession(ctx); err != nil {
		r.failures.Add(1)
		r.logger.Warn("failed to refresh session",
			"user_id", s.UserID,
			"expires_at", s.ExpiresAt,
			"err", err,
		)
		return
	}

	r.refreshed.Add(1)
	r.logger.Info("session refreshed ahead of expiry", "user_id", s.UserID)
}
