package chatclient

import (
	"context"
	"sync"
)

// Manager owns at most one live session. Repeated Initialize calls while
// connected return the existing session; after a Disconnect a fresh
// Initialize builds a new one.
type Manager struct {
	opts Options

	mu   sync.Mutex
	sess *Session
}

func NewManager(opts Options) *Manager {
	return &Manager{opts: opts.withDefaults()}
}

// Initialize connects with the given token, or hands back the session
// already connected. A rejected token returns ErrAuthRejected and leaves
// no session behind.
func (m *Manager) Initialize(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess != nil {
		if m.sess.State() == StateConnected {
			return m.sess, nil
		}
		m.sess.Disconnect()
		m.sess = nil
	}

	s := newSession(m.opts, token)
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	m.sess = s
	return s, nil
}

// Current returns the live session, or nil when there is none.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// Disconnect tears down the live session if any. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != nil {
		m.sess.Disconnect()
		m.sess = nil
	}
}
