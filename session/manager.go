package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"threadline/metrics"
)

const persistTimeout = 10 * time.Second

type ManagerConfig struct {
	// TTL is how long an idle session stays in memory. Its persisted record
	// outlives it and is rehydrated on the next request.
	TTL     time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Manager struct {
	repo    Repository
	ttl     time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(repo Repository, cfg ManagerConfig) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		repo:     repo,
		ttl:      cfg.TTL,
		log:      cfg.Logger.Named("session"),
		metrics:  cfg.Metrics,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
}

// Create starts a new anonymous session.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.now())
	s.onChange = m.persist

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	return s
}

// Get returns the live session for id, rehydrating it from the repository if
// it was evicted or the process restarted.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.touch(m.now())
		return s, nil
	}

	rec, err := m.repo.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	s = newSession(rec.ID, rec.CreatedAt)
	s.user = rec.User
	s.tokens = rec.Tokens
	s.lastSeen = m.now()
	s.onChange = m.persist

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		s = existing
	} else {
		m.sessions[id] = s
	}
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	m.log.Debug("session rehydrated", zap.String("session_id", id))
	return s, nil
}

// Destroy removes the session from memory and from the repository.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run evicts idle sessions from memory until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	evicted := 0
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if evicted > 0 {
		m.metrics.SetActiveSessions(n)
		m.log.Info("evicted idle sessions", zap.Int("evicted", evicted), zap.Int("remaining", n))
	}
	return evicted
}

// persist writes the session's identity to the repository, or deletes the
// record once the session is signed out.
func (m *Manager) persist(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	rec := s.record(m.now())
	var err error
	if rec.User == nil && rec.Tokens.Access == "" {
		err = m.repo.Delete(ctx, s.ID)
	} else {
		err = m.repo.Save(ctx, rec)
	}
	if err != nil {
		m.log.Error("persist session failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}
