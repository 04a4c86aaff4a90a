package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/gamelink/internal/auth"
	"github.com/rickgao/gamelink/internal/config"
	"github.com/rickgao/gamelink/internal/connection"
	"github.com/rickgao/gamelink/internal/credstore"
	"github.com/rickgao/gamelink/internal/event"
)

// Manager owns the backend client, both socket handles, and the session.
type Manager struct {
	store           credstore.Store
	logger          *slog.Logger
	factory         connection.Factory
	clientOpts      []connection.Option
	wirer           Wirer
	sessionCfg      config.SessionConfig
	retry           config.RetryConfig
	reconnectOnDrop bool
	now             func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Serializes RestoreSession calls
	restoreMu sync.Mutex

	mu        sync.Mutex
	phase     Phase
	client    connection.Client
	game      *SocketHandle
	chat      *SocketHandle
	session   *auth.Session
	restoring bool
	closed    bool

	// Cancelled by Disconnect to abort in-flight connects and reconnects
	scope       context.Context
	scopeCancel context.CancelFunc

	listenersMu sync.RWMutex
	listeners   []func(StateEvent)
}

// NewManager creates a Manager reading and writing credentials in store.
func NewManager(store credstore.Store, opts ...Option) *Manager {
	if store == nil {
		store = credstore.NewMemory()
	}

	m := &Manager{
		store:   store,
		logger:  slog.Default(),
		factory: connection.NewClient,
		sessionCfg: config.SessionConfig{
			ConnectTimeout: config.DefaultConnectTimeout,
			RefreshWindow:  config.DefaultRefreshWindow,
		},
		retry: config.RetryConfig{
			MaxAttempts: config.DefaultRetryMaxAttempts,
			BaseDelay:   config.DefaultRetryBaseDelay,
			MaxDelay:    config.DefaultRetryMaxDelay,
		},
		now: time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// InitializeClient creates the backend client and both socket handles.
// It is a no-op once a client exists. On failure the manager is unchanged
// and a *connection.InitError is returned.
func (m *Manager) InitializeClient(cfg config.ServerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.client != nil {
		m.logger.Debug("client already initialized")
		return nil
	}

	client, err := m.factory(cfg.ServerKey, cfg.Host, cfg.Port, cfg.UseSSL, m.clientOpts...)
	if err != nil {
		var initErr *connection.InitError
		if !errors.As(err, &initErr) {
			err = &connection.InitError{Field: "client", Reason: "construction failed", Err: err}
		}
		m.logger.Error("failed to initialize client",
			"host", cfg.Host,
			"port", cfg.Port,
			"error", err,
		)
		return err
	}

	game := newSocketHandle(event.ChannelGame, client.CreateSocket(cfg.UseSSL, cfg.Trace), m.emit)
	chat := newSocketHandle(event.ChannelChat, client.CreateSocket(cfg.UseSSL, cfg.Trace), m.emit)

	for _, h := range []*SocketHandle{game, chat} {
		if m.wirer != nil {
			if err := m.wirer.Wire(h.channel, h.socket); err != nil {
				err = &connection.InitError{Field: string(h.channel), Reason: "wire handlers", Err: err}
				m.logger.Error("failed to initialize client", "error", err)
				return err
			}
		}
		h.socket.OnDrop(func(err error) { m.handleDrop(h, err) })
	}

	m.client = client
	m.game = game
	m.chat = chat
	m.phase = PhaseInitialized

	m.logger.Info("client initialized",
		"host", cfg.Host,
		"port", cfg.Port,
		"use_ssl", cfg.UseSSL,
	)
	return nil
}

// RestoreSession rebuilds the session from stored credentials and connects
// both sockets concurrently. Sockets already connected are left alone.
// When either socket fails to connect, a *RestoreError reports both outcomes.
func (m *Manager) RestoreSession(ctx context.Context) error {
	return m.restore(ctx, nil)
}

// restore runs RestoreSession within scope; a nil scope means the current one.
// A Disconnect that cancels scope aborts the restore even before it starts.
func (m *Manager) restore(ctx context.Context, scope context.Context) error {
	m.restoreMu.Lock()
	defer m.restoreMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.client == nil {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	client, game, chat := m.client, m.game, m.chat
	if scope == nil {
		scope = m.scopeLocked()
	}
	m.restoring = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.restoring = false
		m.mu.Unlock()
	}()

	if game.State() == StateConnected && chat.State() == StateConnected {
		return nil
	}

	logger := m.logger.With("restore_id", uuid.NewString())

	session, err := m.acquireSession(ctx, client, logger)
	if err != nil {
		m.setPhase(PhaseDisconnected)
		return err
	}
	if scope.Err() != nil {
		logger.Info("restore aborted by disconnect")
		return fmt.Errorf("restore session: %w", context.Canceled)
	}

	m.mu.Lock()
	m.session = session
	m.phase = PhaseConnecting
	m.mu.Unlock()

	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(scope, cancel)
	defer stop()

	// Both channels are always attempted; neither failure cancels the other.
	var gameErr, chatErr error
	var g errgroup.Group
	g.Go(func() error {
		gameErr = m.connectHandle(connectCtx, scope, game, session, logger)
		return nil
	})
	g.Go(func() error {
		chatErr = m.connectHandle(connectCtx, scope, chat, session, logger)
		return nil
	})
	g.Wait()

	m.mu.Lock()
	if m.phase == PhaseConnecting {
		if gameErr == nil && chatErr == nil {
			m.phase = PhaseConnected
		} else {
			m.phase = PhaseDisconnected
		}
	}
	m.mu.Unlock()

	if gameErr == nil && chatErr == nil {
		logger.Info("session restored", "user_id", session.UserID)
		return nil
	}

	rerr := &RestoreError{Game: gameErr, Chat: chatErr}
	logger.Error("session restore incomplete",
		"aggregate", m.State(),
		"error", rerr,
	)
	return rerr
}

// acquireSession loads, decodes, refreshes if needed, and persists credentials.
func (m *Manager) acquireSession(ctx context.Context, client connection.Client, logger *slog.Logger) (*auth.Session, error) {
	creds, err := m.store.Load(ctx)
	if errors.Is(err, credstore.ErrNotFound) || (err == nil && creds.Token == "") {
		logger.Warn("no stored credentials")
		return nil, ErrNoCredentials
	}
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	session, err := client.RestoreSession(creds.Token, creds.RefreshToken)
	if err != nil {
		logger.Error("failed to decode stored session", "error", err)
		return nil, err
	}

	now := m.now()
	if err := session.Usable(now); err != nil {
		logger.Error("stored session is expired", "user_id", session.UserID, "error", err)
		return nil, err
	}

	if session.IsExpired(now) || (session.ExpiresWithin(now, m.sessionCfg.RefreshWindow) && session.CanRefresh(now)) {
		refreshed, err := client.RefreshSession(ctx, session)
		switch {
		case err == nil:
			session = refreshed
		case session.IsExpired(now):
			logger.Error("failed to refresh expired session", "error", err)
			return nil, fmt.Errorf("refresh expired session: %w", err)
		default:
			logger.Warn("session refresh failed, using current token", "error", err)
		}
	}

	if err := m.store.Save(ctx, session.Credentials()); err != nil {
		logger.Error("failed to persist credentials", "error", err)
		return nil, fmt.Errorf("persist credentials: %w", err)
	}
	return session, nil
}

// connectHandle connects one socket with bounded, jittered retry on ConnectError.
// scope is the connect scope cancelled by Disconnect. It is checked under the
// handle lock, so a Disconnect always wins over a connect that finishes after it.
func (m *Manager) connectHandle(ctx, scope context.Context, h *SocketHandle, session *auth.Session, logger *slog.Logger) error {
	live := func() bool { return ctx.Err() == nil && scope.Err() == nil }

	if !h.transitionIf(live, StateConnecting, nil, StateIdle, StateFailed) {
		switch h.State() {
		case StateConnected:
			return nil
		case StateDisconnecting:
			return fmt.Errorf("%s socket: %w", h.channel, ErrDisconnectInProgress)
		case StateConnecting:
			return fmt.Errorf("%s socket: %w", h.channel, connection.ErrConnectInProgress)
		default:
			return fmt.Errorf("%s socket: connect aborted: %w", h.channel, context.Canceled)
		}
	}

	logger = logger.With("channel", h.channel)
	attempts := 0

	op := func() (struct{}, error) {
		attempts++
		err := h.socket.Connect(ctx, session, m.sessionCfg.ShouldAppearOnline(), m.sessionCfg.ConnectTimeout)
		if err == nil {
			return struct{}{}, nil
		}
		var ce *connection.ConnectError
		if errors.As(err, &ce) && live() {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(m.newBackOff()),
		backoff.WithMaxTries(uint(m.retry.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("connect failed, retrying",
				"attempt", attempts,
				"retry_in", next,
				"error", err,
			)
		}),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		m.fail(h, err, logger, attempts)
		return err
	}

	// A Disconnect that lands after the dial wins over the connect.
	if !h.transitionIf(live, StateConnected, nil, StateConnecting) {
		h.socket.Disconnect()
		cause := context.Cause(ctx)
		if cause == nil {
			cause = context.Canceled
		}
		err := &connection.ConnectError{Endpoint: string(h.channel), Err: cause}
		m.fail(h, err, logger, attempts)
		return err
	}

	logger.Info("socket connected", "attempts", attempts)
	return nil
}

func (m *Manager) fail(h *SocketHandle, err error, logger *slog.Logger, attempts int) {
	logger.Error("connect failed", "attempts", attempts, "error", err)
	h.transitionFrom(StateFailed, err, StateConnecting)
	h.transitionFrom(StateIdle, nil, StateFailed)
}

func (m *Manager) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.retry.BaseDelay
	b.MaxInterval = m.retry.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	return b
}

// RefreshSession exchanges the current session's refresh token for a new
// session, replaces the snapshot, and persists the new credentials.
func (m *Manager) RefreshSession(ctx context.Context) error {
	m.mu.Lock()
	client, session := m.client, m.session
	m.mu.Unlock()

	if client == nil {
		return ErrNotInitialized
	}
	if session == nil {
		return connection.ErrNoSession
	}

	refreshed, err := client.RefreshSession(ctx, session)
	if err != nil {
		m.logger.Error("failed to refresh session", "error", err)
		return err
	}
	if err := m.store.Save(ctx, refreshed.Credentials()); err != nil {
		m.logger.Error("failed to persist credentials", "error", err)
		return fmt.Errorf("persist credentials: %w", err)
	}

	m.mu.Lock()
	m.session = refreshed
	m.mu.Unlock()

	m.logger.Info("session refreshed", "user_id", refreshed.UserID, "expires_at", refreshed.ExpiresAt)
	return nil
}

// Disconnect issues a disconnect on both sockets regardless of their state.
// The returned channel is closed once both handles are Idle. Without
// sockets it is already closed. The session is retained.
func (m *Manager) Disconnect() <-chan struct{} {
	done := make(chan struct{})

	m.mu.Lock()
	game, chat := m.game, m.chat
	if game == nil {
		m.mu.Unlock()
		close(done)
		return done
	}
	if m.scopeCancel != nil {
		m.scopeCancel()
		m.scope, m.scopeCancel = nil, nil
	}
	if m.phase == PhaseConnecting || m.phase == PhaseConnected {
		m.phase = PhaseDisconnecting
	}
	m.mu.Unlock()

	handles := []*SocketHandle{game, chat}
	for _, h := range handles {
		wasConnected := h.transitionFrom(StateDisconnecting, nil, StateConnected)
		if err := h.socket.Disconnect(); err != nil {
			m.logger.Warn("socket disconnect failed", "channel", h.channel, "error", err)
		}
		if wasConnected {
			h.transitionFrom(StateIdle, nil, StateDisconnecting)
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for _, h := range handles {
			<-h.idleCh()
		}

		m.mu.Lock()
		if m.phase == PhaseDisconnecting {
			m.phase = PhaseDisconnected
			m.logger.Info("disconnected")
		}
		m.mu.Unlock()
		close(done)
	}()

	return done
}

// SignOut disconnects both sockets, clears the stored credentials, and
// drops the session. A later RestoreSession fails with ErrNoCredentials
// until new credentials are saved.
func (m *Manager) SignOut(ctx context.Context) error {
	select {
	case <-m.Disconnect():
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("failed to clear credentials", "error", err)
		return fmt.Errorf("clear credentials: %w", err)
	}

	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	m.logger.Info("signed out")
	return nil
}

// handleDrop moves a dropped socket to Idle and reconnects it when enabled.
func (m *Manager) handleDrop(h *SocketHandle, err error) {
	if !h.transitionFrom(StateIdle, err, StateConnected) {
		return
	}

	m.mu.Lock()
	session := m.session
	reconnect := m.reconnectOnDrop && !m.closed && session != nil &&
		(m.phase == PhaseConnected || m.phase == PhaseConnecting)
	var scope context.Context
	switch {
	case reconnect:
		m.phase = PhaseConnecting
		scope = m.scopeLocked()
		m.wg.Add(1)
	case m.phase == PhaseConnected:
		m.phase = PhaseDisconnected
	}
	m.mu.Unlock()

	if !reconnect {
		return
	}

	go func() {
		defer m.wg.Done()
		m.reconnect(scope, h)
	}()
}

func (m *Manager) reconnect(ctx context.Context, h *SocketHandle) {
	logger := m.logger.With("channel", h.channel, "reconnect_id", uuid.NewString())
	logger.Info("reconnecting dropped socket")

	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		logger.Info("session cleared, not reconnecting")
		return
	}

	now := m.now()
	if session.ExpiresWithin(now, m.sessionCfg.RefreshWindow) && session.CanRefresh(now) {
		if err := m.RefreshSession(ctx); err == nil {
			m.mu.Lock()
			session = m.session
			m.mu.Unlock()
		}
	}

	err := m.connectHandle(ctx, ctx, h, session, logger)

	m.mu.Lock()
	if m.phase == PhaseConnecting && !m.restoring {
		if aggregate(m.game.State(), m.chat.State()) == Connected {
			m.phase = PhaseConnected
		} else if err != nil {
			m.phase = PhaseDisconnected
		}
	}
	m.mu.Unlock()
}

func (m *Manager) connectScope() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scopeLocked()
}

// scopeLocked returns the current connect scope, creating one if needed.
// Must be called with m.mu held.
func (m *Manager) scopeLocked() context.Context {
	if m.scope == nil {
		m.scope, m.scopeCancel = context.WithCancel(m.ctx)
	}
	return m.scope
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

func (m *Manager) emit(ev StateEvent) {
	ev.Aggregate = m.State()

	if ev.Err != nil {
		m.logger.Warn("socket state changed",
			"channel", ev.Channel,
			"from", ev.From,
			"to", ev.To,
			"aggregate", ev.Aggregate,
			"error", ev.Err,
		)
	} else {
		m.logger.Debug("socket state changed",
			"channel", ev.Channel,
			"from", ev.From,
			"to", ev.To,
			"aggregate", ev.Aggregate,
		)
	}

	m.listenersMu.RLock()
	listeners := m.listeners
	m.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// OnStateChange registers fn to be called on every socket handle transition.
// fn runs synchronously on the goroutine making the transition.
func (m *Manager) OnStateChange(fn func(StateEvent)) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

// Client returns the backend client, or nil before InitializeClient.
func (m *Manager) Client() connection.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// Sockets returns the game and chat handles, or nils before InitializeClient.
func (m *Manager) Sockets() (game, chat *SocketHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game, m.chat
}

// Session returns the current session snapshot, or nil.
func (m *Manager) Session() *auth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Phase returns the manager's lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// State returns the aggregate connection state of both sockets.
func (m *Manager) State() Aggregate {
	m.mu.Lock()
	game, chat := m.game, m.chat
	m.mu.Unlock()

	if game == nil {
		return Disconnected
	}
	return aggregate(game.State(), chat.State())
}

// Close disconnects both sockets and stops background reconnects.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	<-m.Disconnect()
	m.cancel()
	m.wg.Wait()

	m.logger.Info("lifecycle manager closed")
	return nil
}
