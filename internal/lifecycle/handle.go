package lifecycle

import (
	"sync"
	"time"

	"github.com/rickgao/gamelink/internal/connection"
	"github.com/rickgao/gamelink/internal/event"
)

// SocketHandle is the manager's record of one channel's socket. Handles are
// created once by InitializeClient and reused across reconnects.
type SocketHandle struct {
	channel event.Channel
	socket  connection.Socket

	mu      sync.Mutex
	state   ConnectionState
	lastErr error
	idle    chan struct{} // Closed while state is Idle

	notify func(StateEvent)
}

func newSocketHandle(ch event.Channel, s connection.Socket, notify func(StateEvent)) *SocketHandle {
	idle := make(chan struct{})
	close(idle)
	return &SocketHandle{
		channel: ch,
		socket:  s,
		state:   StateIdle,
		idle:    idle,
		notify:  notify,
	}
}

// Channel returns the handle's channel.
func (h *SocketHandle) Channel() event.Channel { return h.channel }

// Socket returns the underlying socket.
func (h *SocketHandle) Socket() connection.Socket { return h.socket }

// State returns the current connection state.
func (h *SocketHandle) State() ConnectionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// LastErr returns the error of the most recent failed connect or drop.
func (h *SocketHandle) LastErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// idleCh returns a channel that is closed once the handle is Idle.
func (h *SocketHandle) idleCh() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.idle
}

// transitionFrom moves the handle to `to` if its state is one of from.
// An empty from matches any state. The notification is sent unlocked.
func (h *SocketHandle) transitionFrom(to ConnectionState, err error, from ...ConnectionState) bool {
	return h.transitionIf(nil, to, err, from...)
}

// transitionIf is transitionFrom with an extra guard evaluated under the lock.
func (h *SocketHandle) transitionIf(guard func() bool, to ConnectionState, err error, from ...ConnectionState) bool {
	h.mu.Lock()
	prev := h.state
	if len(from) > 0 && !containsState(from, prev) {
		h.mu.Unlock()
		return false
	}
	if guard != nil && !guard() {
		h.mu.Unlock()
		return false
	}
	if prev == to {
		h.mu.Unlock()
		return true
	}

	h.state = to
	if err != nil {
		h.lastErr = err
	}
	switch {
	case to == StateIdle:
		close(h.idle)
	case prev == StateIdle:
		h.idle = make(chan struct{})
	}
	h.mu.Unlock()

	if h.notify != nil {
		h.notify(StateEvent{
			Channel: h.channel,
			From:    prev,
			To:      to,
			Err:     err,
			At:      time.Now(),
		})
	}
	return true
}

func containsState(states []ConnectionState, s ConnectionState) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}
