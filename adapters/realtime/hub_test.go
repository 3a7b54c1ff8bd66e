package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/stories-backend/pkg/logger"
)

func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.URL.Query().Get("user"))
		if err != nil {
			http.Error(w, "bad user", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, userID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + userID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env map[string]any
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHubBroadcastsOnlineUsersAndDelivers(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := newHubServer(t, hub)
	alice, bob := uuid.New(), uuid.New()

	a := dial(t, srv, alice)
	env := readEnvelope(t, a)
	assert.Equal(t, EventOnlineUsers, env["event"])
	assert.ElementsMatch(t, []any{alice.String()}, env["data"])

	b := dial(t, srv, bob)
	readEnvelope(t, b)
	env = readEnvelope(t, a)
	assert.ElementsMatch(t, []any{alice.String(), bob.String()}, env["data"])

	assert.True(t, hub.Deliver(alice, "story:viewed", map[string]string{"storyId": "s1"}))
	env = readEnvelope(t, a)
	assert.Equal(t, "story:viewed", env["event"])
	assert.Equal(t, map[string]any{"storyId": "s1"}, env["data"])

	assert.False(t, hub.Deliver(uuid.New(), "story:viewed", nil))

	require.NoError(t, b.Close())
	env = readEnvelope(t, a)
	assert.Equal(t, EventOnlineUsers, env["event"])
	assert.ElementsMatch(t, []any{alice.String()}, env["data"])
}

func TestHubNewerConnectionReplacesOlder(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := newHubServer(t, hub)
	alice := uuid.New()

	first := dial(t, srv, alice)
	readEnvelope(t, first)

	second := dial(t, srv, alice)
	readEnvelope(t, second)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	assert.Equal(t, []uuid.UUID{alice}, hub.OnlineUsers())
	assert.True(t, hub.Deliver(alice, "story:expired", nil))
	env := readEnvelope(t, second)
	assert.Equal(t, "story:expired", env["event"])
}
