package connection

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/gamelink/internal/auth"
	"github.com/rickgao/gamelink/internal/event"
)

// socket implements the Socket interface over gorilla/websocket.
type socket struct {
	endpoint string
	trace    bool
	cfg      SocketConfig
	dialer   *websocket.Dialer
	logger   *slog.Logger

	// Write serialization
	writeMu sync.Mutex

	// State
	mu            sync.Mutex
	conn          *websocket.Conn
	done          chan struct{} // Closed when the current connection ends
	connecting    bool
	cancelConnect context.CancelFunc
	lastPingAt    time.Time
	handlers      Handlers
	onDrop        func(error)
}

func newSocket(endpoint string, trace bool, cfg SocketConfig, dialer *websocket.Dialer, logger *slog.Logger) *socket {
	return &socket{
		endpoint: endpoint,
		trace:    trace,
		cfg:      cfg.withDefaults(),
		dialer:   dialer,
		logger:   logger.With("endpoint", endpoint),
	}
}

// Connect establishes the WebSocket connection.
func (s *socket) Connect(ctx context.Context, session *auth.Session, appearOnline bool, timeout time.Duration) error {
	if session == nil {
		return &ConnectError{Endpoint: s.endpoint, Err: ErrNoSession}
	}

	var dialCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		dialCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	if s.connecting {
		s.mu.Unlock()
		return ErrConnectInProgress
	}
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.connecting = true
	s.cancelConnect = cancel
	s.mu.Unlock()

	conn, _, err := s.dialer.DialContext(dialCtx, s.dialURL(session.Token, appearOnline), nil)

	s.mu.Lock()
	s.connecting = false
	s.cancelConnect = nil
	if err == nil && dialCtx.Err() != nil {
		// Aborted between handshake and here.
		conn.Close()
		err = dialCtx.Err()
	}
	if err != nil {
		s.mu.Unlock()
		if ctxErr := dialCtx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return &ConnectError{Endpoint: s.endpoint, Err: err}
	}

	done := make(chan struct{})
	s.conn = conn
	s.done = done
	s.lastPingAt = time.Now()
	s.mu.Unlock()

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		s.touch()
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.cfg.WriteTimeout))
	})
	conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	go s.readLoop(conn, done)
	go s.heartbeatLoop(conn, done)

	s.logger.Debug("websocket connected", "appear_online", appearOnline)
	return nil
}

func (s *socket) dialURL(token string, appearOnline bool) string {
	q := url.Values{}
	q.Set("lang", "en")
	q.Set("status", strconv.FormatBool(appearOnline))
	q.Set("token", token)
	return s.endpoint + "?" + q.Encode()
}

// Disconnect gracefully closes the connection.
func (s *socket) Disconnect() error {
	s.mu.Lock()
	if s.cancelConnect != nil {
		s.cancelConnect()
	}
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return nil
	}
	s.conn = nil
	close(s.done)
	s.mu.Unlock()

	s.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.writeMu.Unlock()

	s.logger.Debug("websocket disconnected")
	return conn.Close()
}

// IsConnected returns the current connection state.
func (s *socket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// SetHandlers replaces the inbound event handlers.
func (s *socket) SetHandlers(h Handlers) {
	s.mu.Lock()
	s.handlers = h
	s.mu.Unlock()
}

// OnDrop registers the drop callback.
func (s *socket) OnDrop(fn func(error)) {
	s.mu.Lock()
	s.onDrop = fn
	s.mu.Unlock()
}

func (s *socket) touch() {
	s.mu.Lock()
	s.lastPingAt = time.Now()
	s.mu.Unlock()
}

// drop ends conn if it is still current and reports err to the drop callback.
func (s *socket) drop(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	close(s.done)
	onDrop := s.onDrop
	s.mu.Unlock()

	conn.Close()
	s.logger.Warn("websocket dropped", "error", err)

	if onDrop != nil {
		onDrop(&TransportError{Err: err})
	}
}

// readLoop reads frames, decodes them, and invokes handlers in receipt order.
func (s *socket) readLoop(conn *websocket.Conn, done <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after Disconnect() is called
			select {
			case <-done:
				return
			default:
				s.drop(conn, err)
				return
			}
		}

		if s.trace {
			s.logger.Debug("frame received", "bytes", len(data), "frame", string(data))
		}

		events, err := event.Decode(data, receivedAt)
		if err != nil {
			s.logger.Warn("failed to decode frame", "error", err)
			continue
		}

		s.mu.Lock()
		h := s.handlers
		s.mu.Unlock()

		for _, ev := range events {
			dispatch(h, ev)
		}
	}
}

func dispatch(h Handlers, ev event.Event) {
	switch e := ev.(type) {
	case event.MatchState:
		if h.OnMatchState != nil {
			h.OnMatchState(e)
		}
	case event.Notification:
		if h.OnNotification != nil {
			h.OnNotification(e)
		}
	case event.ChannelMessage:
		if h.OnChannelMessage != nil {
			h.OnChannelMessage(e)
		}
	case event.PresenceChange:
		if h.OnChannelPresence != nil {
			h.OnChannelPresence(e)
		}
	}
}

// heartbeatLoop pings the server and detects stale connections.
func (s *socket) heartbeatLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(s.cfg.WriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}

			s.mu.Lock()
			lastPing := s.lastPingAt
			s.mu.Unlock()

			if time.Since(lastPing) > s.cfg.PingTimeout {
				s.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", s.cfg.PingTimeout,
				)
				s.drop(conn, ErrStaleConnection)
				return
			}
		}
	}
}
