package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/gamelink/internal/api"
	"github.com/rickgao/gamelink/internal/auth"
)

// Client is the backend facade: session decode/refresh and socket allocation.
type Client interface {
	// CreateSocket allocates an unconnected socket. It never fails.
	CreateSocket(useSSL, trace bool) Socket

	// RestoreSession decodes a stored token pair without network I/O.
	RestoreSession(token, refreshToken string) (*auth.Session, error)

	// RefreshSession exchanges the session's refresh token for a new session.
	RefreshSession(ctx context.Context, session *auth.Session) (*auth.Session, error)
}

// Socket is one persistent realtime connection.
type Socket interface {
	// Connect dials the realtime endpoint authenticated by session.
	// It returns a *ConnectError on failure, including when timeout elapses.
	Connect(ctx context.Context, session *auth.Session, appearOnline bool, timeout time.Duration) error

	// Disconnect closes the connection. It is a no-op when not connected
	// and aborts a connect in flight.
	Disconnect() error

	// IsConnected returns current connection state.
	IsConnected() bool

	// SetHandlers replaces the inbound event handlers.
	SetHandlers(h Handlers)

	// OnDrop registers fn to be called with a *TransportError when an
	// established connection ends without Disconnect.
	OnDrop(fn func(error))
}

// Factory creates a Client. NewClient is the production factory.
type Factory func(serverKey, host string, port int, useSSL bool, opts ...Option) (Client, error)

// client implements the Client interface.
type client struct {
	serverKey string
	host      string
	port      int
	useSSL    bool

	api        *api.Client
	httpClient *http.Client
	socketCfg  SocketConfig
	dialer     *websocket.Dialer
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSocketConfig sets keepalive settings for sockets created by the client.
func WithSocketConfig(cfg SocketConfig) Option {
	return func(c *client) {
		c.socketCfg = cfg.withDefaults()
	}
}

// WithDialer sets the websocket dialer used by sockets.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithHTTPClient sets the HTTP client used for session refresh.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// NewClient validates the server address and creates a Client. No network
// I/O happens until a socket connects or a session is refreshed.
func NewClient(serverKey, host string, port int, useSSL bool, opts ...Option) (Client, error) {
	if strings.TrimSpace(serverKey) == "" {
		return nil, &InitError{Field: "server_key", Reason: "empty"}
	}
	if err := validateHost(host); err != nil {
		return nil, err
	}
	if port < 1 || port > 65535 {
		return nil, &InitError{Field: "port", Reason: fmt.Sprintf("out of range: %d", port)}
	}

	base := httpBaseURL(host, port, useSSL)
	if _, err := url.Parse(base); err != nil {
		return nil, &InitError{Field: "host", Reason: "unparseable address", Err: err}
	}

	c := &client{
		serverKey: serverKey,
		host:      host,
		port:      port,
		useSSL:    useSSL,
		socketCfg: DefaultSocketConfig(),
		dialer:    &websocket.Dialer{Proxy: http.ProxyFromEnvironment},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("host", host, "port", port)

	apiOpts := []api.ClientOption{api.WithLogger(c.logger)}
	if c.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(c.httpClient))
	}
	c.api = api.NewClient(base, serverKey, apiOpts...)

	c.logger.Debug("client created", "rest_url", c.api.BaseURL(), "use_ssl", useSSL)
	return c, nil
}

func validateHost(host string) error {
	switch {
	case host == "":
		return &InitError{Field: "host", Reason: "empty"}
	case strings.Contains(host, "://"):
		return &InitError{Field: "host", Reason: "must not include a scheme"}
	case strings.ContainsAny(host, "/?#"):
		return &InitError{Field: "host", Reason: "must not include a path"}
	case strings.ContainsAny(host, " \t\r\n"):
		return &InitError{Field: "host", Reason: "must not contain whitespace"}
	}
	return nil
}

func httpBaseURL(host string, port int, useSSL bool) string {
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// CreateSocket allocates an unconnected socket.
func (c *client) CreateSocket(useSSL, trace bool) Socket {
	scheme := "ws"
	if useSSL {
		scheme = "wss"
	}
	endpoint := scheme + "://" + net.JoinHostPort(c.host, strconv.Itoa(c.port)) + "/ws"
	return newSocket(endpoint, trace, c.socketCfg, c.dialer, c.logger)
}

// RestoreSession decodes a stored token pair.
func (c *client) RestoreSession(token, refreshToken string) (*auth.Session, error) {
	return auth.Restore(token, refreshToken)
}

// RefreshSession exchanges the session's refresh token for a new session.
func (c *client) RefreshSession(ctx context.Context, session *auth.Session) (*auth.Session, error) {
	if session == nil {
		return nil, ErrNoSession
	}

	tokens, err := c.api.RefreshSession(ctx, session.RefreshToken, session.Vars)
	if err != nil {
		return nil, err
	}

	refreshed, err := auth.Restore(tokens.Token, tokens.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	c.logger.Debug("session refreshed", "user_id", refreshed.UserID)
	return refreshed, nil
}
