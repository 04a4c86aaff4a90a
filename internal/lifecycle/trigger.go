package lifecycle

import (
	"context"
	"sync"

	"github.com/rickgao/gamelink/internal/config"
	"github.com/rickgao/gamelink/internal/dispatch"
)

// Trigger is an externally owned boolean ("verified") that drives the
// manager through Watch. Every change is delivered to every subscriber
// in order; setting the current value again is not a change.
type Trigger struct {
	mu    sync.Mutex
	value bool
	subs  map[*Subscription]struct{}
}

// NewTrigger creates a trigger holding initial.
func NewTrigger(initial bool) *Trigger {
	return &Trigger{
		value: initial,
		subs:  make(map[*Subscription]struct{}),
	}
}

// Set updates the value and reports whether it changed.
func (t *Trigger) Set(v bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.value == v {
		return false
	}
	t.value = v
	for s := range t.subs {
		s.queue.Push(v)
	}
	return true
}

// Value returns the current value.
func (t *Trigger) Value() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Subscribe returns the current value and a subscription receiving every
// later change.
func (t *Trigger) Subscribe() (bool, *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &Subscription{trigger: t, queue: dispatch.NewQueue[bool](4)}
	t.subs[s] = struct{}{}
	return t.value, s
}

// Subscription receives trigger changes.
type Subscription struct {
	trigger *Trigger
	queue   *dispatch.Queue[bool]
}

// Next blocks until the next change. It returns false once the
// subscription is closed and drained.
func (s *Subscription) Next() (bool, bool) {
	return s.queue.Pop()
}

// Close stops delivery and unblocks Next.
func (s *Subscription) Close() {
	s.trigger.mu.Lock()
	delete(s.trigger.subs, s)
	s.trigger.mu.Unlock()
	s.queue.Close()
}

// Watch drives the manager from trigger until ctx is done. When the
// trigger is true at start, and on every false->true change, it runs
// InitializeClient then RestoreSession; failures are logged and wait for
// the next change. On every true->false change it calls Disconnect once and
// waits for it to complete before handling the next change.
func (m *Manager) Watch(ctx context.Context, trigger *Trigger, cfg config.ServerConfig) error {
	current, sub := trigger.Subscribe()
	defer sub.Close()
	stop := context.AfterFunc(ctx, sub.Close)
	defer stop()

	var restores sync.WaitGroup
	defer restores.Wait()

	connect := func() {
		if err := m.InitializeClient(cfg); err != nil {
			return
		}
		scope := m.connectScope()
		restores.Add(1)
		go func() {
			defer restores.Done()
			m.restore(ctx, scope)
		}()
	}

	m.logger.Info("watching trigger", "verified", current)
	if current {
		connect()
	}

	for {
		v, ok := sub.Next()
		if !ok || ctx.Err() != nil {
			return ctx.Err()
		}
		if v == current {
			continue
		}
		current = v

		if v {
			m.logger.Info("trigger set, connecting")
			connect()
			continue
		}

		m.logger.Info("trigger cleared, disconnecting")
		select {
		case <-m.Disconnect():
			m.logger.Info("trigger cleared, sockets idle")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
