package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel_tracker/internal/travel"
)

func startHub(t *testing.T, h *Hub, profileID uuid.UUID) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		h.Serve(conn, profileID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return h.Clients(profileID) >= 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestHub_DeliversProfileEvents(t *testing.T) {
	h := New(8)
	watched := uuid.New()
	conn := startHub(t, h, watched)

	require.NoError(t, h.Publish(context.Background(), travel.Event{Type: travel.EventLocationRecorded, ProfileID: uuid.New()}))
	require.NoError(t, h.Publish(context.Background(), travel.Event{Type: travel.EventCheckpointApproaching, ProfileID: watched}))
	require.NoError(t, h.Publish(context.Background(), travel.Event{Type: travel.EventNotificationSent, ProfileID: watched}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{travel.EventCheckpointApproaching, travel.EventNotificationSent} {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev travel.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, want, ev.Type)
		assert.Equal(t, watched, ev.ProfileID)
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	h := New(8)
	id := uuid.New()
	conn := startHub(t, h, id)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return h.Clients(id) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, h.Publish(context.Background(), travel.Event{ProfileID: id}))
}

func TestHub_PublishWithoutClients(t *testing.T) {
	assert.NoError(t, New(0).Publish(context.Background(), travel.Event{ProfileID: uuid.New()}))
}
