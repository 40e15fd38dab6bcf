package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"threadline/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSession_ClearAuthDropsUserState(t *testing.T) {
	s := newSession("s1", time.Now())
	s.SetAuth(models.User{ID: 1, Username: "gopher"}, Tokens{Access: "a", Refresh: "r"})
	s.Posts.SetPostVotes([]models.PostVote{{ID: 1, PostID: 1, VoteValue: 1}})
	s.Communities.SetSnippets([]models.CommunitySnippet{{CommunityID: "golang"}})
	require.True(t, s.Authenticated())

	s.ClearAuth()

	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())
	access, refresh := s.Tokens()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
	assert.Empty(t, s.Posts.PostVotes())
	snippets, fetched := s.Communities.Snippets()
	assert.Empty(t, snippets)
	assert.False(t, fetched)
}

func TestSession_UserIsACopy(t *testing.T) {
	s := newSession("s1", time.Now())
	s.SetUser(models.User{ID: 1, Username: "gopher"})

	u := s.User()
	u.Username = "changed"
	assert.Equal(t, "gopher", s.User().Username)
}

func TestSession_HookRunsOnEveryChange(t *testing.T) {
	s := newSession("s1", time.Now())
	calls := 0
	s.onChange = func(*Session) { calls++ }

	s.SetAuth(models.User{ID: 1}, Tokens{Access: "a", Refresh: "r"})
	s.SetAccessToken("b")
	s.SetUser(models.User{ID: 1, DisplayName: "G"})
	s.ClearAuth()

	assert.Equal(t, 4, calls)
}

func TestSession_State(t *testing.T) {
	s := newSession("s1", time.Now())
	s.Posts.SetCommunityPosts("golang", []models.Post{{ID: 1, CommunityID: "golang"}})

	st := s.State()
	assert.Equal(t, "s1", st.SessionID)
	assert.Nil(t, st.User)
	assert.Len(t, st.Posts.Posts, 1)
	assert.Equal(t, "public", st.Communities.CurrentCommunity.PrivacyType)
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("a-very-long-session-secret")
	require.NoError(t, err)

	sealed, err := s.Seal("token-value")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "token-value")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "token-value", plain)

	empty, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSealer_RejectsOtherSecret(t *testing.T) {
	a, err := NewSealer("a-very-long-session-secret")
	require.NoError(t, err)
	b, err := NewSealer("another-long-session-secret")
	require.NoError(t, err)

	sealed, err := a.Seal("token-value")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrSealed)
	_, err = a.Open("not base64 !")
	assert.ErrorIs(t, err, ErrSealed)
}

func TestNewSealer_ShortSecret(t *testing.T) {
	_, err := NewSealer("short")
	assert.Error(t, err)
}

func newTestManager(t *testing.T, repo Repository, ttl time.Duration) *Manager {
	t.Helper()
	return NewManager(repo, ManagerConfig{TTL: ttl, Logger: zaptest.NewLogger(t)})
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(t, NewMemoryRepository(), time.Hour)
	s := m.Create()

	got, err := m.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	_, err = m.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_PersistsAndRehydrates(t *testing.T) {
	repo := NewMemoryRepository()
	m := newTestManager(t, repo, time.Hour)
	s := m.Create()
	s.SetAuth(models.User{ID: 5, Username: "gopher"}, Tokens{Access: "a", Refresh: "r"})

	rec, err := repo.Load(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "gopher", rec.User.Username)
	assert.Equal(t, Tokens{Access: "a", Refresh: "r"}, rec.Tokens)

	restarted := newTestManager(t, repo, time.Hour)
	got, err := restarted.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, got.Authenticated())
	assert.Equal(t, int64(5), got.User().ID)

	// the hook is wired on rehydrated sessions too
	got.ClearAuth()
	_, err = repo.Load(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Destroy(t *testing.T) {
	repo := NewMemoryRepository()
	m := newTestManager(t, repo, time.Hour)
	s := m.Create()
	s.SetAuth(models.User{ID: 5}, Tokens{Access: "a", Refresh: "r"})

	require.NoError(t, m.Destroy(context.Background(), s.ID))

	assert.Equal(t, 0, m.Len())
	_, err := m.Get(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_EvictIdle(t *testing.T) {
	m := newTestManager(t, NewMemoryRepository(), time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	stale := m.Create()
	now = now.Add(2 * time.Minute)
	fresh := m.Create()

	assert.Equal(t, 1, m.evictIdle())
	assert.Equal(t, 1, m.Len())

	_, err := m.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	// anonymous sessions leave no record behind
	_, err = m.Get(context.Background(), stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_RunStopsWithContext(t *testing.T) {
	m := newTestManager(t, NewMemoryRepository(), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
