package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"threadline/api"
	"threadline/handlers"
	"threadline/metrics"
	"threadline/middleware"
	"threadline/services"
	"threadline/session"
	"threadline/websocket"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

type app struct {
	router *gin.Engine
	cookie *http.Cookie
}

func newApp(t *testing.T, upstream *gin.Engine) *app {
	t.Helper()
	logger := zaptest.NewLogger(t)
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	m := metrics.New()
	client, err := api.New(api.Config{BaseURL: srv.URL + "/api", HTTPClient: srv.Client(), Logger: logger, Metrics: m})
	require.NoError(t, err)

	hub := websocket.NewHub(logger, []string{"http://localhost:3000"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	sessions := session.NewManager(session.NewMemoryRepository(), session.ManagerConfig{TTL: time.Hour, Logger: logger, Metrics: m})
	svc := services.New(services.Deps{Client: client, Publisher: hub, Logger: logger, Metrics: m})

	return &app{router: SetupRouter(Config{
		Handler:        handlers.New(svc, sessions, logger),
		Sessions:       sessions,
		Hub:            hub,
		Metrics:        m,
		Limiter:        middleware.NewRateLimiter(1000, time.Minute),
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:3000"},
	})}
}

func (a *app) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if a.cookie != nil {
		r.AddCookie(a.cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, r)
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName {
			a.cookie = c
		}
	}
	return w
}

func fakeUpstream() *gin.Engine {
	up := gin.New()
	up.POST("/api/users/login/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": gin.H{"id": 42, "username": "gopher", "email": "g@example.com"}, "access": "a", "refresh": "r"})
	})
	up.GET("/api/posts/", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{{"id": 1, "communityId": "golang", "title": "generics", "voteStatus": 5}})
	})
	up.GET("/api/posts/votes/", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{})
	})
	up.POST("/api/posts/:id/vote/", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"message": "Vote created", "vote_status": 6, "id": 9})
	})
	return up
}

func TestRouter_Health(t *testing.T) {
	a := newApp(t, gin.New())
	w := a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRouter_Metrics(t *testing.T) {
	a := newApp(t, gin.New())
	w := a.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "threadline_active_sessions")
}

func TestRouter_UnknownAPIRoute(t *testing.T) {
	a := newApp(t, gin.New())
	w := a.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Endpoint not found")
}

func TestRouter_VoteRequiresLogin(t *testing.T) {
	a := newApp(t, fakeUpstream())
	w := a.do(t, http.MethodPost, "/api/posts/1/vote", gin.H{"vote_value": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_LoginBrowseVote(t *testing.T) {
	a := newApp(t, fakeUpstream())

	w := a.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": "g@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "gopher")
	require.NotNil(t, a.cookie)

	w = a.do(t, http.MethodGet, "/api/communities/golang/posts", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/posts/1/vote", gin.H{"vote_value": 1, "community_id": "golang"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var voted struct {
		Post struct {
			VoteStatus int `json:"voteStatus"`
		} `json:"post"`
		Vote struct {
			ID int64 `json:"id"`
		} `json:"vote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &voted))
	assert.Equal(t, 6, voted.Post.VoteStatus)
	assert.Equal(t, int64(9), voted.Vote.ID)

	w = a.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state session.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.NotNil(t, state.User)
	assert.Equal(t, "gopher", state.User.Username)
	require.Len(t, state.Posts.PostsCache["golang"], 1)
	assert.Equal(t, 6, state.Posts.PostsCache["golang"][0].VoteStatus)

	w = a.do(t, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, "/api/state", nil)
	assert.True(t, strings.Contains(w.Body.String(), `"user":null`))
}

func TestRouter_InvalidVoteValue(t *testing.T) {
	a := newApp(t, fakeUpstream())
	a.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": "g@example.com", "password": "secret1"})

	w := a.do(t, http.MethodPost, "/api/posts/1/vote", gin.H{"vote_value": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/api/posts/abc/vote", gin.H{"vote_value": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// request bodies use snake_case keys like the multipart forms
	w = a.do(t, http.MethodPost, "/api/posts/1/vote", gin.H{"voteValue": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "vote_value must be 1 or -1")
}

func TestRouter_UpstreamDown(t *testing.T) {
	var calls atomic.Int32
	up := gin.New()
	up.GET("/api/posts/", func(c *gin.Context) {
		calls.Add(1)
		c.String(http.StatusBadGateway, "<html>bad gateway</html>")
	})
	a := newApp(t, up)

	w := a.do(t, http.MethodGet, "/api/feed", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Error loading feed")
	assert.Equal(t, int32(1), calls.Load())
}
