package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/gamelink/internal/event"
)

// Errors
var (
	ErrConnectInProgress = errors.New("connect already in progress")
	ErrStaleConnection   = errors.New("connection stale (no ping)")
	ErrNoSession         = errors.New("no session")
)

// InitError reports invalid client configuration.
type InitError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("init client: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("init client: %s: %s", e.Field, e.Reason)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// ConnectError reports a failed socket connect, including timeouts and aborts.
type ConnectError struct {
	Endpoint string // scheme://host:port/ws without the token
	Err      error
}

func (e *ConnectError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("connect %s: timeout", e.Endpoint)
	}
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the connect ran past its deadline.
func (e *ConnectError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// TransportError reports an established connection that dropped without Disconnect.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Handlers are the inbound event registration points of a Socket.
// Nil handlers are skipped. Handlers run on the socket's read goroutine and
// must not block.
type Handlers struct {
	OnMatchState      func(event.MatchState)
	OnNotification    func(event.Notification)
	OnChannelMessage  func(event.ChannelMessage)
	OnChannelPresence func(event.PresenceChange)
}

// SocketConfig configures keepalive and write behavior of sockets.
type SocketConfig struct {
	PingInterval time.Duration // Interval between client pings
	PingTimeout  time.Duration // Max time without ping/pong before the connection is stale
	WriteTimeout time.Duration // Write deadline for control frames
}

// DefaultSocketConfig returns sensible defaults.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		PingInterval: 15 * time.Second,
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func (c SocketConfig) withDefaults() SocketConfig {
	d := DefaultSocketConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}
