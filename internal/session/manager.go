package session

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const stopConcurrency = 4

// Manager tracks live page sessions by id. One connected client owns one
// session; the manager exists so shutdown can reach all of them.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*PageSession
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*PageSession),
		logger:   logger,
	}
}

func (m *Manager) Add(s *PageSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
}

func (m *Manager) Get(id string) (*PageSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stop ends one session and forgets it. Unknown ids are a no-op.
func (m *Manager) Stop(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Stop(ctx)
	}
}

// StopAll ends every session, a few at a time.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*PageSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*PageSession)
	m.mu.Unlock()

	if len(all) == 0 {
		return
	}
	m.logger.Info("Stopping all sessions", zap.Int("count", len(all)))

	p := pool.New().WithMaxGoroutines(stopConcurrency)
	for _, s := range all {
		s := s
		p.Go(func() { s.Stop(ctx) })
	}
	p.Wait()
}
