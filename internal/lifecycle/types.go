package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/gamelink/internal/connection"
	"github.com/rickgao/gamelink/internal/event"
)

// Errors
var (
	ErrNotInitialized = errors.New("client not initialized")
	ErrNoCredentials  = errors.New("no stored credentials")
	ErrClosed         = errors.New("manager closed")

	// ErrDisconnectInProgress is returned by a connect that finds its socket
	// still closing from a Disconnect.
	ErrDisconnectInProgress = errors.New("disconnect in progress")
)

// ConnectionState is the state of one socket handle.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// Aggregate summarizes both socket handles.
type Aggregate int

const (
	Disconnected Aggregate = iota
	PartiallyConnected
	Connected
)

func (a Aggregate) String() string {
	switch a {
	case Disconnected:
		return "disconnected"
	case PartiallyConnected:
		return "partially_connected"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("Aggregate(%d)", int(a))
	}
}

func aggregate(game, chat ConnectionState) Aggregate {
	switch {
	case game == StateConnected && chat == StateConnected:
		return Connected
	case game == StateConnected || chat == StateConnected:
		return PartiallyConnected
	default:
		return Disconnected
	}
}

// Phase is the manager's position in its lifecycle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitialized
	PhaseConnecting
	PhaseConnected
	PhaseDisconnecting
	PhaseDisconnected
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitialized:
		return "initialized"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseDisconnecting:
		return "disconnecting"
	case PhaseDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// StateEvent reports a socket handle transition.
type StateEvent struct {
	Channel   event.Channel
	From      ConnectionState
	To        ConnectionState
	Err       error // Set on Failed and on drops (*connection.TransportError)
	Aggregate Aggregate
	At        time.Time
}

// Wirer registers event handlers on a socket. *dispatch.Dispatcher implements it.
type Wirer interface {
	Wire(ch event.Channel, s connection.Socket) error
}

// RestoreError carries the per-channel outcome of a restore that did not
// connect both sockets. A nil field means that channel connected.
type RestoreError struct {
	Game error
	Chat error
}

func (e *RestoreError) Error() string {
	var parts []string
	if e.Game != nil {
		parts = append(parts, fmt.Sprintf("game: %v", e.Game))
	}
	if e.Chat != nil {
		parts = append(parts, fmt.Sprintf("chat: %v", e.Chat))
	}
	return "restore session: " + strings.Join(parts, "; ")
}

func (e *RestoreError) Unwrap() []error {
	var errs []error
	if e.Game != nil {
		errs = append(errs, e.Game)
	}
	if e.Chat != nil {
		errs = append(errs, e.Chat)
	}
	return errs
}

// For returns the error for channel ch.
func (e *RestoreError) For(ch event.Channel) error {
	if ch == event.ChannelChat {
		return e.Chat
	}
	return e.Game
}
