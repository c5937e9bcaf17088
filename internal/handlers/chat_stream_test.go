package handlers_test

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/handlers/testutil"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/realtime"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/session"
)

type frame struct {
	Stream string          `json:"stream"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

func dial(t *testing.T, env *testutil.Env, path string, query url.Values) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)

	target := "ws" + strings.TrimPrefix(server.URL, "http") + path + "?" + query.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func chatView(t *testing.T, f frame) session.View {
	t.Helper()
	var view session.View
	require.NoError(t, json.Unmarshal(f.Data, &view))
	return view
}

func TestChatStreamVendorSession(t *testing.T) {
	env := testutil.NewEnv(t)
	env.ApproveClaim("agent-a", vendorID)
	created := createRequest(t, env, env.Token("cust-1", false))

	conn := dial(t, env, "/api/requests/"+created.ID+"/stream", url.Values{
		"access_token": {env.Token("agent-a", false)},
		"role":         {"vendor"},
	})

	readUntil(t, conn, func(f frame) bool {
		if f.Event != realtime.EventChatSnapshot {
			return false
		}
		view := chatView(t, f)
		return !view.Loading && view.Request != nil
	})

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "send", "text": "On our way"}))
	f := readUntil(t, conn, func(f frame) bool {
		return f.Event == realtime.EventChatSnapshot && chatView(t, f).CanComplete
	})
	view := chatView(t, f)
	require.Equal(t, models.StatusInProgress, view.Status)
	require.Equal(t, "agent-a", view.Request.Owner())

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "complete"}))
	readUntil(t, conn, func(f frame) bool {
		return f.Event == realtime.EventChatSnapshot && chatView(t, f).Status == models.StatusCompleted
	})

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "dance"}))
	f = readUntil(t, conn, func(f frame) bool { return f.Event == realtime.EventError })
	require.Contains(t, string(f.Data), "unknown action")
}

func TestChatStreamSwitchReleasesSubscriptions(t *testing.T) {
	env := testutil.NewEnv(t)
	customer := env.Token("cust-1", false)
	first := createRequest(t, env, customer)
	second := createRequest(t, env, customer)

	conn := dial(t, env, "/api/requests/"+first.ID+"/stream", url.Values{"access_token": {customer}})
	require.Eventually(t, func() bool {
		return env.Broker.SubscriberCount(changefeed.MessagesTopic(first.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "open", "request_id": second.ID}))
	readUntil(t, conn, func(f frame) bool {
		return f.Event == realtime.EventChatSnapshot && chatView(t, f).RequestID == second.ID && !chatView(t, f).Loading
	})
	require.Zero(t, env.Broker.SubscriberCount(changefeed.MessagesTopic(first.ID)))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return env.Broker.SubscriberCount(changefeed.MessagesTopic(second.ID)) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChatStreamRejectsOutsiders(t *testing.T) {
	env := testutil.NewEnv(t)
	created := createRequest(t, env, env.Token("cust-1", false))

	conn := dial(t, env, "/api/requests/"+created.ID+"/stream", url.Values{
		"access_token": {env.Token("stranger", false)},
		"role":         {"vendor"},
	})
	f := readUntil(t, conn, func(f frame) bool { return f.Event == realtime.EventError })
	require.Contains(t, string(f.Data), "FORBIDDEN")
}

func TestInboxStreamPushesRequestSnapshots(t *testing.T) {
	env := testutil.NewEnv(t)
	customer := env.Token("cust-1", false)

	conn := dial(t, env, "/api/notifications/stream", url.Values{
		"access_token": {customer},
		"role":         {"customer"},
	})
	readUntil(t, conn, func(f frame) bool { return f.Event == realtime.EventRequestsSnapshot })

	created := createRequest(t, env, customer)
	readUntil(t, conn, func(f frame) bool {
		if f.Event != realtime.EventRequestsSnapshot {
			return false
		}
		var list []models.ServiceRequest
		require.NoError(t, json.Unmarshal(f.Data, &list))
		return len(list) == 1 && list[0].ID == created.ID
	})
}
