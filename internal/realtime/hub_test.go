package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string, streams ...string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, streams, w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return hub.ConnectionCount(streams[0], userID) == 1
	}, time.Second, 10*time.Millisecond)
	return conn
}

func TestHubBroadcastToUser(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1", StreamNotifications)

	hub.BroadcastToUser(StreamNotifications, "user-2", Message{Event: "ignored"})
	hub.BroadcastToUser(StreamNotifications, "user-1", Message{Event: EventNotificationCreated, Data: map[string]string{"id": "n-1"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, StreamNotifications, msg.Stream)
	require.Equal(t, EventNotificationCreated, msg.Event)
}

func TestHubPingAndUnsubscribe(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1", StreamNotifications)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, EventPong, msg.Event)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "unsubscribe", "streams": []string{StreamNotifications}}))
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(StreamNotifications, "user-1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHubDetachesOnDisconnect(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1", StreamNotifications, StreamRequests)
	require.Equal(t, 1, hub.ConnectionCount(StreamRequests, "user-1"))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(StreamNotifications, "user-1") == 0 &&
			hub.ConnectionCount(StreamRequests, "user-1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHostHelpers(t *testing.T) {
	require.Equal(t, "example.com", hostWithoutPort("https://example.com:8443"))
	require.Equal(t, "localhost", hostWithoutPort("localhost:3000"))
	require.True(t, isLoopback("127.0.0.1"))
	require.True(t, isLoopback("localhost"))
	require.False(t, isLoopback("example.com"))
}
