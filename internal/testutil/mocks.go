package testutil

import (
	"context"
	"sync"

	"github.com/poyrazK/sandboxAuth/internal/core/domain"
)

// MockSessionCache implements ports.SessionCache for testing. It records
// activity so tests can assert cache interactions without redis.
type MockSessionCache struct {
	mu       sync.Mutex
	entries  map[string]*domain.Session
	Hits     int
	Misses   int
	Sets     int
	Deletes  int
	FailPing error
}

func NewMockSessionCache() *MockSessionCache {
	return &MockSessionCache{entries: make(map[string]*domain.Session)}
}

func (m *MockSessionCache) Get(_ context.Context, token string) (*domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[token]
	if ok {
		m.Hits++
	} else {
		m.Misses++
	}
	return s, ok
}

func (m *MockSessionCache) Set(_ context.Context, session *domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	m.entries[session.SessionToken] = session
}

func (m *MockSessionCache) Delete(_ context.Context, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes++
	delete(m.entries, token)
}

func (m *MockSessionCache) Ping(_ context.Context) error {
	return m.FailPing
}
