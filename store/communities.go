package store

import (
	"sync"

	"threadline/models"
)

type CommunityState struct {
	MySnippets          []models.CommunitySnippet   `json:"mySnippets"`
	InitSnippetsFetched bool                        `json:"initSnippetsFetched"`
	VisitedCommunities  map[string]models.Community `json:"visitedCommunities"`
	CurrentCommunity    models.Community            `json:"currentCommunity"`
}

// CommunityStore holds the signed-in user's community snippets and the
// community currently being viewed.
type CommunityStore struct {
	mu    sync.RWMutex
	state CommunityState
}

func NewCommunityStore() *CommunityStore {
	return &CommunityStore{
		state: CommunityState{
			VisitedCommunities: map[string]models.Community{},
			CurrentCommunity:   defaultCommunity(),
		},
	}
}

func defaultCommunity() models.Community {
	return models.Community{PrivacyType: models.PrivacyPublic}
}

func (s *CommunityStore) Snapshot() CommunityState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.state
	out.MySnippets = append([]models.CommunitySnippet(nil), s.state.MySnippets...)
	out.VisitedCommunities = make(map[string]models.Community, len(s.state.VisitedCommunities))
	for k, v := range s.state.VisitedCommunities {
		out.VisitedCommunities[k] = v
	}
	return out
}

// SetSnippets replaces the membership list and marks it fetched.
func (s *CommunityStore) SetSnippets(snippets []models.CommunitySnippet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MySnippets = append([]models.CommunitySnippet(nil), snippets...)
	s.state.InitSnippetsFetched = true
}

func (s *CommunityStore) Snippets() ([]models.CommunitySnippet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CommunitySnippet(nil), s.state.MySnippets...), s.state.InitSnippetsFetched
}

func (s *CommunityStore) IsMember(communityID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOfSnippet(s.state.MySnippets, communityID) >= 0
}

// Joined records membership of community and bumps its member count when it
// is the current community.
func (s *CommunityStore) Joined(community models.Community) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOfSnippet(s.state.MySnippets, community.ID) < 0 {
		s.state.MySnippets = append(s.state.MySnippets, models.CommunitySnippet{
			CommunityID: community.ID,
			ImageURL:    community.ImageURL,
		})
	}
	if s.state.CurrentCommunity.ID == community.ID {
		s.state.CurrentCommunity.NumberOfMembers++
	}
}

// Left drops membership of communityID. The member count never goes below zero.
func (s *CommunityStore) Left(communityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOfSnippet(s.state.MySnippets, communityID); i >= 0 {
		s.state.MySnippets = append(s.state.MySnippets[:i:i], s.state.MySnippets[i+1:]...)
	}
	if s.state.CurrentCommunity.ID == communityID {
		s.state.CurrentCommunity.NumberOfMembers = max(0, s.state.CurrentCommunity.NumberOfMembers-1)
	}
}

func (s *CommunityStore) SetCurrent(c models.Community) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCommunity = c
	s.state.VisitedCommunities[c.ID] = c
}

func (s *CommunityStore) Current() models.Community {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentCommunity
}

func (s *CommunityStore) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentCommunity = defaultCommunity()
}

// Visited returns a community seen earlier in this session.
func (s *CommunityStore) Visited(communityID string) (models.Community, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.VisitedCommunities[communityID]
	return c, ok
}

func (s *CommunityStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = CommunityState{
		VisitedCommunities: map[string]models.Community{},
		CurrentCommunity:   defaultCommunity(),
	}
}

func indexOfSnippet(snippets []models.CommunitySnippet, communityID string) int {
	for i := range snippets {
		if snippets[i].CommunityID == communityID {
			return i
		}
	}
	return -1
}
