package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"threadline/middleware"
	"threadline/session"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

type harness struct {
	hub    *Hub
	url    string
	cancel context.CancelFunc
	done   chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mgr := session.NewManager(session.NewMemoryRepository(), session.ManagerConfig{TTL: time.Hour, Logger: logger})
	hub := NewHub(logger, []string{"http://allowed.example"})

	router := gin.New()
	router.Use(middleware.Session(mgr, middleware.CookieConfig{}, logger))
	router.GET("/ws", hub.Handler())
	srv := httptest.NewServer(router)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		hub:    hub,
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		hub.Run(ctx)
		close(h.done)
	}()
	t.Cleanup(func() {
		h.stop()
		srv.Close()
	})
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.done
}

func dial(t *testing.T, url string, header http.Header) (*websocket.Conn, string) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var id string
	for _, c := range resp.Cookies() {
		if c.Name == middleware.CookieName {
			id = c.Value
		}
	}
	require.NotEmpty(t, id)
	return conn, id
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHub_ConnectSendsState(t *testing.T) {
	h := newHarness(t)
	conn, id := dial(t, h.url, nil)

	ev := readEvent(t, conn)
	assert.Equal(t, "connected", ev.Type)
	payload, ok := ev.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, id, payload["sessionId"])
}

func TestHub_UpgradeCarriesSessionCookie(t *testing.T) {
	h := newHarness(t)
	first, id := dial(t, h.url, nil)
	assert.Equal(t, id, readEvent(t, first).Payload.(map[string]any)["sessionId"])

	header := http.Header{}
	header.Add("Cookie", middleware.CookieName+"="+id)
	second, again := dial(t, h.url, header)
	readEvent(t, second)

	assert.Equal(t, id, again, "cookie from the upgrade must name the same session")
}

func TestHub_PublishReachesEverySessionTab(t *testing.T) {
	h := newHarness(t)
	first, id := dial(t, h.url, nil)
	readEvent(t, first)

	header := http.Header{}
	header.Add("Cookie", middleware.CookieName+"="+id)
	second, _ := dial(t, h.url, header)
	readEvent(t, second)

	other, _ := dial(t, h.url, nil)
	readEvent(t, other)

	require.Eventually(t, func() bool { return h.hub.Connections() == 3 }, time.Second, 10*time.Millisecond)

	h.hub.Publish(id, "posts", map[string]int{"count": 2})

	for _, conn := range []*websocket.Conn{first, second} {
		ev := readEvent(t, conn)
		assert.Equal(t, "posts", ev.Type)
		assert.Equal(t, map[string]any{"count": float64(2)}, ev.Payload)
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "another session must not receive the event")
}

func TestHub_PingPong(t *testing.T) {
	h := newHarness(t)
	conn, _ := dial(t, h.url, nil)
	readEvent(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readEvent(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "state"}))
	assert.Equal(t, "state", readEvent(t, conn).Type)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	h := newHarness(t)
	header := http.Header{}
	header.Set("Origin", "http://evil.example")

	_, resp, err := websocket.DefaultDialer.Dial(h.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_StopClosesConnections(t *testing.T) {
	h := newHarness(t)
	conn, _ := dial(t, h.url, nil)
	readEvent(t, conn)

	h.stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, h.hub.Connections())

	// publishing after stop does not block
	h.hub.Publish("anyone", "posts", nil)
}
