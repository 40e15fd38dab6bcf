package store

import (
	"sync"

	"threadline/models"
)

// PostState is a point-in-time copy of a session's post cache.
type PostState struct {
	SelectedPost       *models.Post             `json:"selectedPost"`
	Posts              []models.Post            `json:"posts"`
	PostVotes          []models.PostVote        `json:"postVotes"`
	PostsCache         map[string][]models.Post `json:"postsCache"`
	PostUpdateRequired bool                     `json:"postUpdateRequired"`
}

// PostStore holds the posts, vote records and per-community post cache of one
// session. All methods are safe for concurrent use; values handed out are
// copies.
type PostStore struct {
	mu    sync.RWMutex
	state PostState

	lockMu    sync.Mutex
	postLocks map[int64]*postLock
}

type postLock struct {
	mu   sync.Mutex
	refs int
}

func NewPostStore() *PostStore {
	return &PostStore{
		state: PostState{
			PostsCache:         map[string][]models.Post{},
			PostUpdateRequired: true,
		},
		postLocks: map[int64]*postLock{},
	}
}

// LockPost serializes work on a single post. The returned func releases it.
func (s *PostStore) LockPost(postID int64) func() {
	s.lockMu.Lock()
	l, ok := s.postLocks[postID]
	if !ok {
		l = &postLock{}
		s.postLocks[postID] = l
	}
	l.refs++
	s.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.lockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.postLocks, postID)
		}
		s.lockMu.Unlock()
	}
}

func (s *PostStore) Snapshot() PostState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := PostState{
		Posts:              clonePosts(s.state.Posts),
		PostVotes:          append([]models.PostVote(nil), s.state.PostVotes...),
		PostsCache:         make(map[string][]models.Post, len(s.state.PostsCache)),
		PostUpdateRequired: s.state.PostUpdateRequired,
	}
	if s.state.SelectedPost != nil {
		p := *s.state.SelectedPost
		out.SelectedPost = &p
	}
	for k, v := range s.state.PostsCache {
		out.PostsCache[k] = clonePosts(v)
	}
	return out
}

func (s *PostStore) Posts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePosts(s.state.Posts)
}

// SetPosts replaces the visible post list without touching the cache.
func (s *PostStore) SetPosts(posts []models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Posts = clonePosts(posts)
}

// SetCommunityPosts replaces the visible post list and the cache entry for
// communityID.
func (s *PostStore) SetCommunityPosts(communityID string, posts []models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Posts = clonePosts(posts)
	s.state.PostsCache[communityID] = clonePosts(posts)
}

func (s *PostStore) CachedPosts(communityID string) ([]models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	posts, ok := s.state.PostsCache[communityID]
	if !ok {
		return nil, false
	}
	return clonePosts(posts), true
}

// FindPost looks the post up in the selected post, the visible list and the
// cache, in that order.
func (s *PostStore) FindPost(postID int64) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(postID)
}

func (s *PostStore) findLocked(postID int64) (models.Post, bool) {
	if sp := s.state.SelectedPost; sp != nil && sp.ID == postID {
		return *sp, true
	}
	if i := indexOfPost(s.state.Posts, postID); i >= 0 {
		return s.state.Posts[i], true
	}
	for _, posts := range s.state.PostsCache {
		if i := indexOfPost(posts, postID); i >= 0 {
			return posts[i], true
		}
	}
	return models.Post{}, false
}

func (s *PostStore) SelectPost(post models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := post
	s.state.SelectedPost = &p
}

func (s *PostStore) SelectedPost() (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.SelectedPost == nil {
		return models.Post{}, false
	}
	return *s.state.SelectedPost, true
}

func (s *PostStore) UpdateRequired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.PostUpdateRequired
}

func (s *PostStore) SetUpdateRequired(required bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PostUpdateRequired = required
}

func (s *PostStore) SetPostVotes(votes []models.PostVote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PostVotes = append([]models.PostVote(nil), votes...)
}

func (s *PostStore) ClearPostVotes() {
	s.SetPostVotes(nil)
}

func (s *PostStore) PostVotes() []models.PostVote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PostVote(nil), s.state.PostVotes...)
}

func (s *PostStore) VoteFor(postID int64) (models.PostVote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOfVote(s.state.PostVotes, postID); i >= 0 {
		return s.state.PostVotes[i], true
	}
	return models.PostVote{}, false
}

// ApplyVote resolves and applies a vote against the current vote records,
// preferring the stored copy of post over the one passed in. The visible
// list, the cache entry for communityID and the selected post are all patched
// in the same critical section. It returns the outcome and the post
// as it looks after the change.
func (s *PostStore) ApplyVote(post models.Post, communityID string, value VoteValue) (VoteOutcome, models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.findLocked(post.ID); ok {
		post = cur
	}

	var existing *models.PostVote
	if i := indexOfVote(s.state.PostVotes, post.ID); i >= 0 {
		v := s.state.PostVotes[i]
		existing = &v
	}

	post.CommunityID = firstNonEmpty(communityID, post.CommunityID)
	outcome := ResolveVote(existing, post, value)
	s.replaceVote(post.ID, outcome.Vote)

	post.VoteStatus += outcome.Delta
	s.patchPost(post.CommunityID, post.ID, func(p *models.Post) { p.VoteStatus += outcome.Delta })
	return outcome, post
}

// RevertVote undoes an outcome previously returned by ApplyVote.
func (s *PostStore) RevertVote(postID int64, communityID string, outcome VoteOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaceVote(postID, outcome.Previous)
	s.patchPost(communityID, postID, func(p *models.Post) { p.VoteStatus -= outcome.Delta })
}

// ConfirmVote records the upstream id of the current vote on postID.
func (s *PostStore) ConfirmVote(postID, voteID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOfVote(s.state.PostVotes, postID); i >= 0 {
		s.state.PostVotes[i].ID = voteID
	}
}

// InvalidateAll drops the cached post lists of every community.
func (s *PostStore) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PostsCache = map[string][]models.Post{}
	s.state.PostUpdateRequired = true
}

// RemovePost deletes postID from the visible list and the cache entry of
// communityID. It reports whether anything was removed.
func (s *PostStore) RemovePost(postID int64, communityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	if i := indexOfPost(s.state.Posts, postID); i >= 0 {
		s.state.Posts = append(s.state.Posts[:i:i], s.state.Posts[i+1:]...)
		removed = true
	}
	if cached, ok := s.state.PostsCache[communityID]; ok {
		if i := indexOfPost(cached, postID); i >= 0 {
			s.state.PostsCache[communityID] = append(cached[:i:i], cached[i+1:]...)
			removed = true
		}
	}
	if sp := s.state.SelectedPost; sp != nil && sp.ID == postID {
		s.state.SelectedPost = nil
		removed = true
	}
	return removed
}

// AdjustCommentCount moves the comment count of postID by delta everywhere the
// post is held and flags the session for a refetch.
func (s *PostStore) AdjustCommentCount(postID int64, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.patchPost("", postID, func(p *models.Post) {
		p.NumberOfComments += delta
		if p.NumberOfComments < 0 {
			p.NumberOfComments = 0
		}
	})
	for cid := range s.state.PostsCache {
		s.patchCache(cid, postID, func(p *models.Post) {
			p.NumberOfComments += delta
			if p.NumberOfComments < 0 {
				p.NumberOfComments = 0
			}
		})
	}
	s.state.PostUpdateRequired = true
}

// Reset returns the store to its initial state.
func (s *PostStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = PostState{
		PostsCache:         map[string][]models.Post{},
		PostUpdateRequired: true,
	}
}

// replaceVote sets the record for postID to v, or removes it when v is nil.
// Callers hold s.mu.
func (s *PostStore) replaceVote(postID int64, v *models.PostVote) {
	i := indexOfVote(s.state.PostVotes, postID)
	switch {
	case v == nil && i >= 0:
		s.state.PostVotes = append(s.state.PostVotes[:i:i], s.state.PostVotes[i+1:]...)
	case v != nil && i >= 0:
		s.state.PostVotes[i] = *v
	case v != nil:
		s.state.PostVotes = append(s.state.PostVotes, *v)
	}
}

// patchPost applies fn to postID in the visible list, the selected post and,
// when communityID is set, that community's cache entry. Callers hold s.mu.
func (s *PostStore) patchPost(communityID string, postID int64, fn func(*models.Post)) {
	if i := indexOfPost(s.state.Posts, postID); i >= 0 {
		fn(&s.state.Posts[i])
	}
	if sp := s.state.SelectedPost; sp != nil && sp.ID == postID {
		fn(sp)
	}
	if communityID != "" {
		s.patchCache(communityID, postID, fn)
	}
}

func (s *PostStore) patchCache(communityID string, postID int64, fn func(*models.Post)) {
	cached, ok := s.state.PostsCache[communityID]
	if !ok {
		return
	}
	if i := indexOfPost(cached, postID); i >= 0 {
		fn(&cached[i])
	}
}

func indexOfPost(posts []models.Post, id int64) int {
	for i := range posts {
		if posts[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfVote(votes []models.PostVote, postID int64) int {
	for i := range votes {
		if votes[i].PostID == postID {
			return i
		}
	}
	return -1
}

func clonePosts(posts []models.Post) []models.Post {
	if posts == nil {
		return nil
	}
	return append([]models.Post(nil), posts...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
