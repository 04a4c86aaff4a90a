package credstore

import (
	"context"
	"sync"

	"github.com/rickgao/gamelink/internal/auth"
)

// Memory is an in-process Store. Contents are lost on exit.
type Memory struct {
	mu    sync.RWMutex
	creds auth.Credentials
	set   bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith creates an in-memory store holding creds.
func NewMemoryWith(creds auth.Credentials) *Memory {
	return &Memory{creds: creds, set: true}
}

func (m *Memory) Load(ctx context.Context) (auth.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return auth.Credentials{}, ErrNotFound
	}
	return m.creds, nil
}

func (m *Memory) Save(ctx context.Context, creds auth.Credentials) error {
	if err := validate(creds); err != nil {
		return err
	}
	m.mu.Lock()
	m.creds = creds
	m.set = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.creds = auth.Credentials{}
	m.set = false
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
