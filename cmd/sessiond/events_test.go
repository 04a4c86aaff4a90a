package main

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/gamelink/internal/auth"
	"github.com/rickgao/gamelink/internal/connection"
	"github.com/rickgao/gamelink/internal/dispatch"
	"github.com/rickgao/gamelink/internal/event"
)

type fakeSocket struct {
	handlers connection.Handlers
}

func (s *fakeSocket) Connect(context.Context, *auth.Session, bool, time.Duration) error { return nil }
func (s *fakeSocket) Disconnect() error                                                 { return nil }
func (s *fakeSocket) IsConnected() bool                                                 { return true }
func (s *fakeSocket) OnDrop(func(error))                                                {}
func (s *fakeSocket) SetHandlers(h connection.Handlers)                                 { s.handlers = h }

// slowSink records events and how many it had seen when it was closed.
type slowSink struct {
	mu           sync.Mutex
	seen         int
	seenAtClose  int
	lateDelivery bool
	closed       bool
}

func (s *slowSink) Observe(event.Event) {
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.lateDelivery = true
	}
	s.seen++
}

func (s *slowSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.seenAtClose = s.seen
	return nil
}

func TestCloseEvents_DrainsBeforeClosingSinks(t *testing.T) {
	d := dispatch.New(nil)
	s := &slowSink{}
	d.Register(s)

	socket := &fakeSocket{}
	if err := d.Wire(event.ChannelGame, socket); err != nil {
		t.Fatalf("Wire: %v", err)
	}

	const n = 50
	for i := 0; i < n; i++ {
		socket.handlers.OnNotification(event.Notification{ID: "n"})
	}

	closeEvents(slog.Default(), d, s)

	if !s.closed {
		t.Fatal("sink not closed")
	}
	if s.seenAtClose != n {
		t.Errorf("sink saw %d events before Close, want %d", s.seenAtClose, n)
	}
	if s.lateDelivery {
		t.Error("event delivered after sink was closed")
	}
}
