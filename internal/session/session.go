// Package session keeps the per-user state of the session server: one lifecycle
// client and the last uploaded survey file per session id.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gaia-magnetics/magclient/internal/lifecycle"
	"github.com/gaia-magnetics/magclient/internal/metrics"
	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
)

const (
	DefaultIdleTTL     = 30 * time.Minute
	DefaultMaxSessions = 1000
)

// Upload is a survey file held for the next submission.
type Upload struct {
	FileName string
	Data     []byte
	Headers  []string
}

// Session is one user's view of the backend.
type Session struct {
	ID        string
	CreatedAt time.Time
	Client    *lifecycle.Client

	mu       sync.Mutex
	upload   *Upload
	lastSeen time.Time
}

// SetUpload replaces the held file. A new upload invalidates previous headers.
func (s *Session) SetUpload(u Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upload = &u
}

// Upload returns the held file, if any. Data is empty once the file has been
// released after a submission.
func (s *Session) Upload() (Upload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upload == nil {
		return Upload{}, false
	}
	return *s.upload, true
}

// ReleaseFile drops the file bytes once they have been forwarded. The file name
// and headers stay so the column picker keeps working.
func (s *Session) ReleaseFile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upload != nil {
		s.upload.Data = nil
	}
}

// LastSeen is the time of the last lookup of this session.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// ClientFactory builds the lifecycle client for a new session.
type ClientFactory func(sessionID string) *lifecycle.Client

// Option configures a Manager.
type Option func(*Manager)

// WithIdleTTL sets how long a session may go unused before Reap closes it.
func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

// WithMaxSessions caps the number of open sessions.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// Manager owns all live sessions. It is safe for concurrent use.
type Manager struct {
	newClient   ClientFactory
	logger      *slog.Logger
	now         func() time.Time
	idleTTL     time.Duration
	maxSessions int

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(newClient ClientFactory, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		newClient:   newClient,
		logger:      logger,
		now:         time.Now,
		idleTTL:     DefaultIdleTTL,
		maxSessions: DefaultMaxSessions,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a session with a fresh id and client. It fails with
// ErrTooManySessions when the cap is reached.
func (m *Manager) Create() (*Session, error) {
	m.mu.RLock()
	full := len(m.sessions) >= m.maxSessions
	m.mu.RUnlock()
	if full {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	now := m.now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		Client:    m.newClient(id),
		lastSeen:  now,
	}

	m.mu.Lock()
	if len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		s.Client.Cancel()
		return nil, ErrTooManySessions
	}
	m.sessions[id] = s
	m.mu.Unlock()

	metrics.SessionOpened()
	m.logger.Info("session opened", "session_id", id)
	return s, nil
}

// Get returns the session and marks it as seen.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Delete cancels the session's polling and forgets it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.Client.Cancel()
	metrics.SessionClosed()
	m.logger.Info("session closed", "session_id", id)
	return nil
}

// Reap closes every session not seen within the idle TTL and returns how many
// were closed.
func (m *Manager) Reap() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Client.Cancel()
		metrics.SessionClosed()
		m.logger.Info("idle session reaped", "session_id", s.ID)
	}
	return len(stale)
}

// Run reaps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTTL / 2
	if interval <= 0 {
		interval = m.idleTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(); n > 0 {
				m.logger.Info("reaped idle sessions", "count", n, "open", m.Len())
			}
		}
	}
}

// CloseAll cancels every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Client.Cancel()
		metrics.SessionClosed()
	}
	m.logger.Info("all sessions closed", "count", len(sessions))
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
