package lsp

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helio-dev/helio/internal/domain"
	"github.com/helio-dev/helio/internal/protocol"
)

// Manager owns at most one Session per connection. A session handle is never
// shared across connections and is killed on every exit path.
type Manager struct {
	mu       sync.Mutex
	sessions map[domain.ConnID]*Session
	timeout  time.Duration
}

func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		sessions: make(map[domain.ConnID]*Session),
		timeout:  timeout,
	}
}

// Start begins a fresh session for the connection, ending any previous one
// first (an explicit restart).
func (m *Manager) Start(connID domain.ConnID, emit Emitter, p protocol.LspStart) {
	m.mu.Lock()
	if old, ok := m.sessions[connID]; ok {
		old.Stop()
	}
	sess := NewSession(emit, m.timeout)
	m.sessions[connID] = sess
	m.mu.Unlock()

	log.Info().Str("module", "lsp").Str("conn", string(connID)).Str("language", p.Language).Msg("start session")
	sess.Start(p.Language, p.FileName, p.Content)
}

// Input forwards a client tooling message to the connection's session.
func (m *Manager) Input(connID domain.ConnID, emit Emitter, in protocol.LspInput) {
	m.mu.Lock()
	sess, ok := m.sessions[connID]
	m.mu.Unlock()
	if !ok {
		emit.Emit(protocol.TypeLspDebug, protocol.LspDebug{Message: "No session found for input"})
		return
	}
	sess.HandleInput(in)
}

// End kills and discards the connection's session, if any. Called on
// explicit lsp-stop and on disconnect.
func (m *Manager) End(connID domain.ConnID) {
	m.mu.Lock()
	sess, ok := m.sessions[connID]
	delete(m.sessions, connID)
	m.mu.Unlock()
	if ok {
		sess.Stop()
		log.Info().Str("module", "lsp").Str("conn", string(connID)).Msg("session ended")
	}
}
