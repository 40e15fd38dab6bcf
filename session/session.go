// Package session keeps the per-browser state of signed-in and anonymous
// visitors: who they are, their token pair, and their post and community
// caches.
package session

import (
	"sync"
	"time"

	"threadline/models"
	"threadline/store"
)

type Tokens struct {
	Access  string
	Refresh string
}

type Session struct {
	ID        string
	CreatedAt time.Time

	Posts       *store.PostStore
	Communities *store.CommunityStore

	mu       sync.RWMutex
	user     *models.User
	tokens   Tokens
	lastSeen time.Time
	onChange func(*Session)
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   now,
		Posts:       store.NewPostStore(),
		Communities: store.NewCommunityStore(),
		lastSeen:    now,
	}
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.tokens.Access != ""
}

func (s *Session) SetAuth(user models.User, tokens Tokens) {
	s.mu.Lock()
	s.user = &user
	s.tokens = tokens
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}

func (s *Session) SetUser(user models.User) {
	s.mu.Lock()
	s.user = &user
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}

func (s *Session) Tokens() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.Access, s.tokens.Refresh
}

func (s *Session) SetAccessToken(access string) {
	s.mu.Lock()
	s.tokens.Access = access
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}

// ClearAuth signs the session out: user, tokens, vote records and community
// memberships are dropped.
func (s *Session) ClearAuth() {
	s.mu.Lock()
	s.user = nil
	s.tokens = Tokens{}
	hook := s.onChange
	s.mu.Unlock()

	s.Posts.ClearPostVotes()
	s.Communities.Reset()
	if hook != nil {
		hook(s)
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// record is the persisted part of a session.
func (s *Session) record(now time.Time) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := &Record{ID: s.ID, Tokens: s.tokens, CreatedAt: s.CreatedAt, UpdatedAt: now}
	if s.user != nil {
		u := *s.user
		rec.User = &u
	}
	return rec
}

// State is the full view of a session handed to the browser.
type State struct {
	SessionID   string               `json:"sessionId"`
	User        *models.User         `json:"user"`
	Posts       store.PostState      `json:"posts"`
	Communities store.CommunityState `json:"communities"`
}

func (s *Session) State() State {
	return State{
		SessionID:   s.ID,
		User:        s.User(),
		Posts:       s.Posts.Snapshot(),
		Communities: s.Communities.Snapshot(),
	}
}
