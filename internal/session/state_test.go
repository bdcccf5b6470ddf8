package session_test

import (
	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/session"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userA = models.User{ID: "A", Name: "Ann"}
	userB = models.User{ID: "B", Name: "Bob"}
	userC = models.User{ID: "C", Name: "Cid"}

	chatAB = models.Chat{ID: "C123", Members: pq.StringArray{"A", "B"}}
	chatAC = models.Chat{ID: "C999", Members: pq.StringArray{"A", "C"}}
)

// viewing returns A's session with both chats loaded and chat open.
func viewing(chat models.Chat) session.State {
	return session.State{}.
		Login(userA).
		Connecting().
		Connected().
		SetChats([]models.Chat{chatAB, chatAC}, nil).
		SelectChat(chat).
		SetMessages(chat.ID, []models.Message{{ID: "m0", ChatID: chat.ID, SenderID: "A", Text: "earlier"}}, nil)
}

func TestState_MessageOnOpenChatProducesNoNotification(t *testing.T) {
	s := viewing(chatAB)

	msg := models.RelayMessage{ID: "m1", ChatID: "C123", SenderID: "B", RecipientID: "A", Text: "hi"}
	s = s.ReceiveMessage(msg)
	s = s.ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"})

	require.Len(t, s.Messages, 2)
	last := s.Messages[1]
	assert.Equal(t, "C123", last.ChatID)
	assert.Equal(t, "B", last.SenderID)
	assert.Equal(t, "hi", last.Text)
	assert.Empty(t, s.Notifications)
}

func TestState_MessageOnOtherChatPrependsNotification(t *testing.T) {
	s := viewing(chatAC).ReceiveNotification(models.Notification{SenderID: "C", ChatID: "C999"})
	require.Empty(t, s.Notifications)
	before := s.Messages

	s = s.ReceiveMessage(models.RelayMessage{ChatID: "C123", SenderID: "B", Text: "hi"})
	s = s.ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"})

	assert.Equal(t, before, s.Messages)
	require.Len(t, s.Notifications, 1)
	assert.Equal(t, "B", s.Notifications[0].SenderID)
	assert.False(t, s.Notifications[0].IsRead)

	s = s.ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"})
	require.Len(t, s.Notifications, 2)
	assert.Equal(t, 2, s.UnreadCount())
}

func TestState_NotificationWithoutChatIDMatchesBySender(t *testing.T) {
	s := viewing(chatAB)

	s = s.ReceiveNotification(models.Notification{SenderID: "B"})
	assert.Empty(t, s.Notifications)

	s = s.ReceiveNotification(models.Notification{SenderID: "C"})
	assert.Len(t, s.Notifications, 1)
}

func TestState_NoOpenChat(t *testing.T) {
	s := session.State{}.Login(userA)

	s = s.ReceiveMessage(models.RelayMessage{ChatID: "C123", SenderID: "B", Text: "hi"})
	s = s.ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"})

	assert.Empty(t, s.Messages)
	assert.Len(t, s.Notifications, 1)
}

func TestState_TransitionsDoNotMutateReceiver(t *testing.T) {
	s := viewing(chatAC).ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"})

	_ = s.MarkAllRead()
	_ = s.ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"})
	_ = s.ReceiveMessage(models.RelayMessage{ChatID: "C999", SenderID: "C", Text: "x"})

	require.Len(t, s.Notifications, 1)
	assert.False(t, s.Notifications[0].IsRead)
	assert.Len(t, s.Messages, 1)
}

func TestState_SelectChatMarksOtherMemberRead(t *testing.T) {
	s := viewing(chatAC).
		ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"}).
		ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"})
	require.Equal(t, 2, s.UnreadCount())

	s = s.SelectChat(chatAB)

	assert.Equal(t, 0, s.UnreadCount())
	assert.Empty(t, s.Messages)
	require.NotNil(t, s.CurrentChat)
	assert.Equal(t, "C123", s.CurrentChat.ID)
}

func TestState_SetMessagesIgnoresStaleFetch(t *testing.T) {
	s := viewing(chatAB)

	s = s.SetMessages("C999", []models.Message{{ID: "x"}}, nil)
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, "m0", s.Messages[0].ID)

	s = s.SetMessages("C123", nil, errors.New("boom"))
	assert.EqualError(t, s.MessagesErr, "boom")
	assert.Len(t, s.Messages, 1)
}

func TestState_AppendOwnMessage(t *testing.T) {
	s := viewing(chatAB)

	s = s.AppendOwnMessage(models.Message{ID: "m2", ChatID: "C123", SenderID: "A", Text: "yo"}, nil)
	assert.Len(t, s.Messages, 2)

	s = s.AppendOwnMessage(models.Message{}, errors.New("send failed"))
	assert.Len(t, s.Messages, 2)
	assert.Error(t, s.SendErr)
}

func TestState_ConnectionLifecycle(t *testing.T) {
	s := session.State{}
	assert.Equal(t, session.StatusIdle, s.Status)

	s = s.Login(userA).Connecting()
	assert.Equal(t, session.StatusConnecting, s.Status)

	s = s.Connected().SetOnlineUsers([]models.OnlineUser{{UserID: "B", SocketID: "s1"}})
	assert.True(t, s.IsOnline("B"))
	assert.False(t, s.IsOnline("C"))

	s = s.Disconnected()
	assert.Equal(t, "disconnected", s.Status.String())
	assert.False(t, s.IsOnline("B"))

	s = s.Logout()
	assert.Nil(t, s.User)
	assert.Equal(t, session.StatusIdle, s.Status)
}

func TestState_AddChatAndPotentialChats(t *testing.T) {
	s := session.State{}.Login(userA).SetChats([]models.Chat{chatAB}, nil)

	all := []models.User{userA, userB, userC}
	assert.Equal(t, []models.User{userC}, s.PotentialChats(all))

	s = s.AddChat(chatAC).AddChat(chatAC)
	assert.Len(t, s.Chats, 2)
	assert.Empty(t, s.PotentialChats(all))

	assert.Nil(t, session.State{}.PotentialChats(all))
}

func TestState_SetChatsKeepsListOnError(t *testing.T) {
	s := session.State{}.Login(userA).SetChats([]models.Chat{chatAB}, nil)

	s = s.SetChats(nil, errors.New("offline"))

	assert.Len(t, s.Chats, 1)
	assert.Error(t, s.ChatsErr)
}

func TestState_MarkReadOpensPairedChat(t *testing.T) {
	s := viewing(chatAC).
		ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"})

	s = s.MarkRead(s.Notifications[0])

	require.NotNil(t, s.CurrentChat)
	assert.Equal(t, "C123", s.CurrentChat.ID)
	assert.Equal(t, 0, s.UnreadCount())

	// Relayed messages from B are now suppressed.
	s = s.ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"})
	assert.Len(t, s.Notifications, 1)
}

func TestState_MarkReadOnOpenChatKeepsHistory(t *testing.T) {
	s := viewing(chatAC).
		ReceiveNotification(models.Notification{SenderID: "B", ChatID: "C123"})
	n := s.Notifications[0]

	s = s.MarkRead(n)
	s = s.SetMessages("C123", []models.Message{{ID: "m1", ChatID: "C123", SenderID: "B", Text: "hi"}}, nil)
	require.Len(t, s.Messages, 1)

	s = s.MarkRead(n)

	require.NotNil(t, s.CurrentChat)
	assert.Equal(t, "C123", s.CurrentChat.ID)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, "hi", s.Messages[0].Text)
	assert.Equal(t, 0, s.UnreadCount())
}

func TestState_UnreadFrom(t *testing.T) {
	s := session.State{}.Login(userA).
		ReceiveNotification(models.Notification{SenderID: "B"}).
		ReceiveNotification(models.Notification{SenderID: "C"}).
		ReceiveNotification(models.Notification{SenderID: "B"})

	fromB := s.UnreadFrom("B")
	assert.Len(t, fromB, 2)

	s = s.MarkReadForSender(fromB)
	assert.Empty(t, s.UnreadFrom("B"))
	assert.Len(t, s.UnreadFrom("C"), 1)
}
