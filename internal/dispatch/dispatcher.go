package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/gamelink/internal/connection"
	"github.com/rickgao/gamelink/internal/event"
)

// ErrClosed is returned when wiring a socket into a closed Dispatcher.
var ErrClosed = errors.New("dispatcher closed")

const initialQueueCapacity = 64

// Dispatcher fans socket events out to registered observers.
type Dispatcher struct {
	logger *slog.Logger

	mu        sync.RWMutex
	observers []Observer
	pumps     map[event.Channel]*pump
	closed    bool

	wg     sync.WaitGroup
	panics atomic.Int64
}

type pump struct {
	queue *Queue[event.Event]
}

// Stats contains dispatcher statistics.
type Stats struct {
	Observers      int
	Queues         map[event.Channel]QueueStats
	ObserverPanics int64
}

// New creates a Dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		logger: logger,
		pumps:  make(map[event.Channel]*pump),
	}
}

// Register adds an observer. Observers registered later only see later events.
func (d *Dispatcher) Register(o Observer) {
	d.mu.Lock()
	d.observers = append(d.observers, o)
	d.mu.Unlock()
}

// Wire registers the handlers for channel on socket. The game channel
// carries match state and notifications; the chat channel carries channel
// messages and presence. Wiring a channel again replaces its queue; the
// previous pump drains what it already holds and exits.
func (d *Dispatcher) Wire(ch event.Channel, s connection.Socket) error {
	var h connection.Handlers

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}

	p := &pump{queue: NewQueue[event.Event](initialQueueCapacity)}
	enqueue := func(ev event.Event) {
		if !p.queue.Push(ev) {
			d.logger.Debug("event dropped after queue closed", "channel", ch, "kind", ev.Kind())
		}
	}

	switch ch {
	case event.ChannelGame:
		h.OnMatchState = func(e event.MatchState) { enqueue(e) }
		h.OnNotification = func(e event.Notification) { enqueue(e) }
	case event.ChannelChat:
		h.OnChannelMessage = func(e event.ChannelMessage) { enqueue(e) }
		h.OnChannelPresence = func(e event.PresenceChange) { enqueue(e) }
	default:
		d.mu.Unlock()
		return fmt.Errorf("wire: unknown channel %q", ch)
	}

	if old, ok := d.pumps[ch]; ok {
		old.queue.Close()
	}
	d.pumps[ch] = p
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(ch, p)
	s.SetHandlers(h)

	d.logger.Debug("socket wired", "channel", ch)
	return nil
}

// run delivers queued events to observers until the queue is closed and drained.
func (d *Dispatcher) run(ch event.Channel, p *pump) {
	defer d.wg.Done()

	for {
		ev, ok := p.queue.Pop()
		if !ok {
			return
		}

		d.mu.RLock()
		observers := d.observers
		d.mu.RUnlock()

		for _, o := range observers {
			d.deliver(ch, o, ev)
		}
	}
}

func (d *Dispatcher) deliver(ch event.Channel, o Observer, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.logger.Error("observer panicked",
				"channel", ch,
				"kind", ev.Kind(),
				"panic", r,
			)
		}
	}()
	o.Observe(ev)
}

// Stats returns current dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Stats{
		Observers:      len(d.observers),
		Queues:         make(map[event.Channel]QueueStats, len(d.pumps)),
		ObserverPanics: d.panics.Load(),
	}
	for ch, p := range d.pumps {
		s.Queues[ch] = p.queue.Stats()
	}
	return s
}

// Close stops accepting events and waits for queued events to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, p := range d.pumps {
		p.queue.Close()
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Debug("dispatcher closed")
}
