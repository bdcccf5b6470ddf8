package handler_test

import (
	"chatrelay/backend/internal/models"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, name string, data any) {
	t.Helper()
	ev, err := models.NewEvent(name, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ev))
}

// nextEvent reads frames until one named name arrives.
func nextEvent(t *testing.T, conn *websocket.Conn, name string) models.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var ev models.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Name == name {
			return ev
		}
	}
}

// waitOnline reads online sets until one lists exactly ids.
func waitOnline(t *testing.T, conn *websocket.Conn, ids ...string) {
	t.Helper()
	for {
		var users []models.OnlineUser
		require.NoError(t, nextEvent(t, conn, models.EventGetOnlineUsers).Decode(&users))
		if len(users) != len(ids) {
			continue
		}
		match := true
		for i, u := range users {
			if u.UserID != ids[i] {
				match = false
			}
		}
		if match {
			return
		}
	}
}

func TestWebSocket_RelayBetweenUsers(t *testing.T) {
	r, hub := setupRouter(t, new(MockStorage))
	srv := httptest.NewServer(r)
	defer srv.Close()

	connA := dial(t, srv, nil)
	connB := dial(t, srv, nil)

	emit(t, connA, models.EventAddNewUser, "A")
	waitOnline(t, connA, "A")
	emit(t, connB, models.EventAddNewUser, "B")
	waitOnline(t, connA, "A", "B")
	waitOnline(t, connB, "A", "B")
	assert.True(t, hub.IsOnline("A"))

	emit(t, connB, models.EventSendMessage, models.RelayMessage{
		ChatID: "C123", SenderID: "B", RecipientID: "A", Text: "hi",
	})

	var msg models.RelayMessage
	require.NoError(t, nextEvent(t, connA, models.EventGetMessage).Decode(&msg))
	assert.Equal(t, "C123", msg.ChatID)
	assert.Equal(t, "B", msg.SenderID)
	assert.Equal(t, "hi", msg.Text)

	var n models.Notification
	require.NoError(t, nextEvent(t, connA, models.EventGetNotification).Decode(&n))
	assert.Equal(t, "B", n.SenderID)
	assert.False(t, n.IsRead)

	// A leaves; B sees the shrunken set and messages to A are dropped.
	connA.Close()
	waitOnline(t, connB, "B")
	emit(t, connB, models.EventSendMessage, models.RelayMessage{ChatID: "C123", SenderID: "B", RecipientID: "A", Text: "gone?"})
	require.Eventually(t, func() bool { return !hub.IsOnline("A") }, time.Second, 10*time.Millisecond)
	assert.True(t, hub.IsOnline("B"))
}

func TestWebSocket_SenderDefaultsToRegisteredUser(t *testing.T) {
	r, _ := setupRouter(t, new(MockStorage))
	srv := httptest.NewServer(r)
	defer srv.Close()

	connA := dial(t, srv, nil)
	connB := dial(t, srv, nil)
	emit(t, connA, models.EventAddNewUser, "A")
	emit(t, connB, models.EventAddNewUser, "B")
	waitOnline(t, connA, "A", "B")

	// Malformed and unknown frames do not close the connection.
	require.NoError(t, connB.WriteMessage(websocket.TextMessage, []byte("{not json")))
	emit(t, connB, "typing", "A")
	emit(t, connB, models.EventSendMessage, map[string]string{"chatId": "C1", "recipientId": "A", "text": "yo"})

	var msg models.RelayMessage
	require.NoError(t, nextEvent(t, connA, models.EventGetMessage).Decode(&msg))
	assert.Equal(t, "B", msg.SenderID)
	assert.Equal(t, "yo", msg.Text)
}

func TestWebSocket_RejectsDisallowedOrigin(t *testing.T) {
	r, _ := setupRouter(t, new(MockStorage))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, srv, http.Header{"Origin": []string{"http://localhost:5173"}})
	emit(t, conn, models.EventAddNewUser, "A")
	waitOnline(t, conn, "A")
}
