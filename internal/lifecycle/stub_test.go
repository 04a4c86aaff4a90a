package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/gamelink/internal/auth"
	"github.com/rickgao/gamelink/internal/config"
	"github.com/rickgao/gamelink/internal/connection"
	"github.com/rickgao/gamelink/internal/credstore"
	"github.com/rickgao/gamelink/internal/event"
)

// stubSocket is a connection.Socket whose Connect outcome is scripted.
type stubSocket struct {
	mu          sync.Mutex
	connectFn   func(ctx context.Context) error
	connected   bool
	connects    int
	disconnects int
	session     *auth.Session
	handlers    connection.Handlers
	onDrop      func(error)
}

func (s *stubSocket) Connect(ctx context.Context, session *auth.Session, appearOnline bool, timeout time.Duration) error {
	s.mu.Lock()
	s.connects++
	fn := s.connectFn
	s.mu.Unlock()

	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.connected = true
	s.session = session
	s.mu.Unlock()
	return nil
}

func (s *stubSocket) Disconnect() error {
	s.mu.Lock()
	s.disconnects++
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *stubSocket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *stubSocket) SetHandlers(h connection.Handlers) {
	s.mu.Lock()
	s.handlers = h
	s.mu.Unlock()
}

func (s *stubSocket) OnDrop(fn func(error)) {
	s.mu.Lock()
	s.onDrop = fn
	s.mu.Unlock()
}

func (s *stubSocket) setConnect(fn func(ctx context.Context) error) {
	s.mu.Lock()
	s.connectFn = fn
	s.mu.Unlock()
}

func (s *stubSocket) counts() (connects, disconnects int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects, s.disconnects
}

func (s *stubSocket) lastSession() *auth.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// drop simulates the transport closing underneath a connected socket.
func (s *stubSocket) drop(err error) {
	s.mu.Lock()
	s.connected = false
	fn := s.onDrop
	s.mu.Unlock()
	fn(&connection.TransportError{Err: err})
}

// stubClient echoes stored tokens back as a session.
type stubClient struct {
	mu        sync.Mutex
	sockets   []*stubSocket
	restoreFn func(token, refreshToken string) (*auth.Session, error)
	refreshFn func(s *auth.Session) (*auth.Session, error)
}

func (c *stubClient) CreateSocket(useSSL, trace bool) connection.Socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &stubSocket{}
	c.sockets = append(c.sockets, s)
	return s
}

func (c *stubClient) RestoreSession(token, refreshToken string) (*auth.Session, error) {
	if c.restoreFn != nil {
		return c.restoreFn(token, refreshToken)
	}
	return &auth.Session{Token: token, RefreshToken: refreshToken}, nil
}

func (c *stubClient) RefreshSession(ctx context.Context, s *auth.Session) (*auth.Session, error) {
	if c.refreshFn != nil {
		return c.refreshFn(s)
	}
	return s, nil
}

// factoryCall records the arguments of a client factory call.
type factoryCall struct {
	serverKey string
	host      string
	port      int
	useSSL    bool
}

type stubFactory struct {
	mu     sync.Mutex
	client *stubClient
	calls  []factoryCall
	err    error
}

func (f *stubFactory) New(serverKey, host string, port int, useSSL bool, opts ...connection.Option) (connection.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, factoryCall{serverKey, host, port, useSSL})
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

// recordingWirer records which channels were wired.
type recordingWirer struct {
	mu       sync.Mutex
	channels []event.Channel
}

func (w *recordingWirer) Wire(ch event.Channel, s connection.Socket) error {
	w.mu.Lock()
	w.channels = append(w.channels, ch)
	w.mu.Unlock()
	return nil
}

// eventLog collects state events.
type eventLog struct {
	mu     sync.Mutex
	events []StateEvent
}

func (l *eventLog) record(ev StateEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *eventLog) snapshot() []StateEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]StateEvent(nil), l.events...)
}

var testServer = config.ServerConfig{ServerKey: "k", Host: "h", Port: 7350, UseSSL: false}

type fixture struct {
	m       *Manager
	client  *stubClient
	factory *stubFactory
	store   *credstore.Memory
	events  *eventLog
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		client: &stubClient{},
		store:  credstore.NewMemoryWith(auth.Credentials{Token: "t1", RefreshToken: "r1"}),
		events: &eventLog{},
	}
	f.factory = &stubFactory{client: f.client}

	base := []Option{
		WithClientFactory(f.factory.New),
		WithRetry(config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
	}
	f.m = NewManager(f.store, append(base, opts...)...)
	f.m.OnStateChange(f.events.record)
	t.Cleanup(func() { f.m.Close() })
	return f
}

func (f *fixture) init(t *testing.T) (game, chat *stubSocket) {
	t.Helper()
	if err := f.m.InitializeClient(testServer); err != nil {
		t.Fatalf("InitializeClient: %v", err)
	}
	return f.client.sockets[0], f.client.sockets[1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
}
