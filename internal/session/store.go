// Package session keeps uploaded tables in memory between the upload and
// the cleaning run.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/table"
)

var (
	// ErrNotFound is returned for unknown, discarded and expired sessions.
	ErrNotFound = errors.New("session not found")
	// ErrStoreFull is returned by Create when the session cap is reached.
	ErrStoreFull = errors.New("session store is full")
)

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 30 * time.Minute

// File is one uploaded table and its assessment at upload time.
type File struct {
	Name       string
	Table      *table.Table
	Assessment cleaning.Assessment
}

// Session is a snapshot of one upload. Tables are immutable, so snapshots
// can be used without holding the store lock.
type Session struct {
	ID         string
	Files      []File
	Suggested  *cleaning.Config
	CreatedAt  time.Time
	LastAccess time.Time
}

// Tables returns the session's tables in upload order.
func (s *Session) Tables() []table.Named {
	out := make([]table.Named, len(s.Files))
	for i, f := range s.Files {
		out[i] = table.Named{Name: f.Name, Table: f.Table}
	}
	return out
}

// Store holds sessions keyed by opaque id.
type Store interface {
	Create(files []File, suggested *cleaning.Config) (Session, error)
	Get(id string) (Session, error)
	Discard(id string) bool
	Sweep(now time.Time) []string
	Len() int
}

// MemoryStore is a Store backed by a map guarded by one RWMutex. Sessions
// expire ttl after their last access; expired sessions are invisible to
// Get even before Sweep removes them.
type MemoryStore struct {
	logger *slog.Logger
	mu     sync.RWMutex

	sessions map[string]*Session

	ttl         time.Duration
	maxSessions int
	now         func() time.Time
}

// NewMemoryStore creates a store. ttl <= 0 selects DefaultTTL;
// maxSessions <= 0 means unlimited.
func NewMemoryStore(logger *slog.Logger, ttl time.Duration, maxSessions int) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		logger:      logger.With("component", "session_store"),
		sessions:    make(map[string]*Session),
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

// TTL returns the idle lifetime of a session.
func (m *MemoryStore) TTL() time.Duration { return m.ttl }

// Create stores files under a fresh random id.
func (m *MemoryStore) Create(files []File, suggested *cleaning.Config) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.sweepLocked(now)
		if len(m.sessions) >= m.maxSessions {
			return Session{}, ErrStoreFull
		}
	}

	s := &Session{
		ID:         uuid.NewString(),
		Files:      append([]File(nil), files...),
		Suggested:  suggested,
		CreatedAt:  now,
		LastAccess: now,
	}
	m.sessions[s.ID] = s
	m.logger.Debug("session created", "session_id", s.ID, "files", len(files), "total_sessions", len(m.sessions))
	return *s, nil
}

// Get returns the session and refreshes its last access time.
func (m *MemoryStore) Get(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	now := m.now()
	if m.expired(s, now) {
		delete(m.sessions, id)
		m.logger.Debug("session expired on access", "session_id", id)
		return Session{}, ErrNotFound
	}
	s.LastAccess = now
	return *s, nil
}

// Discard removes a session. It reports whether the session existed.
func (m *MemoryStore) Discard(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Sweep removes every session idle since before now-ttl and returns their ids.
func (m *MemoryStore) Sweep(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(now)
}

func (m *MemoryStore) sweepLocked(now time.Time) []string {
	var expired []string
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		m.logger.Debug("sessions swept", "expired", len(expired), "remaining", len(m.sessions))
	}
	return expired
}

func (m *MemoryStore) expired(s *Session, now time.Time) bool {
	return now.Sub(s.LastAccess) > m.ttl
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
