package signal

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classrelay/internal/core/domain"
	"classrelay/internal/core/ports"
	"classrelay/internal/core/services"
	"classrelay/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testJWTSecret = "test-secret"

// testEnv runs all three namespaces behind a real HTTP server so tests
// exercise the full path: handshake, upgrade, pumps, handlers.
type testEnv struct {
	t        *testing.T
	srv      *httptest.Server
	auth     services.AuthService
	store    *memory.MessageStore
	rooms    ports.RoomRegistry
	presence ports.PresenceRegistry
	groups   *Hub
	chat     *Hub
	meetings *Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithOptions(t, DefaultOptions())
}

func newTestEnvWithOptions(t *testing.T, opts Options) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop().Sugar()
	auth := services.NewAuthService(testJWTSecret, time.Minute, time.Hour)
	store := memory.NewMessageStore()
	rooms := memory.NewRoomRegistry()
	presence := memory.NewPresenceRegistry()

	groups := NewHub("groups", opts, log, nil)
	chat := NewHub("chat", opts, log, nil)
	meetings := NewHub("meetings", opts, log, nil)

	gate := NewGate(auth, []string{"*"}, log, nil)

	router := gin.New()
	router.GET("/ws/groups", gate.Endpoint(groups, NewGroupChatRelay(groups, store, time.Second, log, nil)))
	router.GET("/ws/chat", gate.Endpoint(chat, NewChatPresence(chat, presence, store, time.Second, log, nil)))
	router.GET("/ws/meetings", gate.Endpoint(meetings, NewMeetingManager(meetings, rooms, log, nil)))

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		groups.CloseAll()
		chat.CloseAll()
		meetings.CloseAll()
		srv.Close()
	})

	return &testEnv{
		t:        t,
		srv:      srv,
		auth:     auth,
		store:    store,
		rooms:    rooms,
		presence: presence,
		groups:   groups,
		chat:     chat,
		meetings: meetings,
	}
}

func (e *testEnv) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
}

func (e *testEnv) token(userID, displayName string) string {
	e.t.Helper()
	token, err := e.auth.GenerateToken(domain.UserID(userID), displayName)
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) dial(path, userID, displayName string) *websocket.Conn {
	e.t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(e.wsURL(path)+"?token="+e.token(userID, displayName), nil)
	require.NoError(e.t, err, "dial %s as %s", path, userID)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	e.t.Cleanup(func() { ws.Close() })
	return ws
}

func sendEvent(t *testing.T, ws *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Envelope{Event: event, Data: data}))
}

func readEvent(t *testing.T, ws *websocket.Conn) (string, map[string]interface{}) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, ws.ReadJSON(&env))
	payload := map[string]interface{}{}
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &payload))
	}
	return env.Event, payload
}

func expectEvent(t *testing.T, ws *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	event, payload := readEvent(t, ws)
	require.Equal(t, want, event, "payload: %v", payload)
	return payload
}

// expectSilence asserts that nothing arrives within a short window. The
// timed-out read fails the websocket, so only call this as the last
// operation on ws.
func expectSilence(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var env Envelope
	err := ws.ReadJSON(&env)
	if err == nil {
		t.Fatalf("expected no event, got %q", env.Event)
	}
	netErr, ok := err.(net.Error)
	require.True(t, ok && netErr.Timeout(), "expected read timeout, got %v", err)
}

func scopeSize(h *Hub, scope string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scopes[scope])
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond, msg)
}
