// Package session holds the client-side view of one logged-in user: the open chat,
// its messages, the online set and the notification feed.
//
// Every transition is a value method that returns the next State and leaves the
// receiver untouched, so callers can test the flow without a live connection.
package session

import (
	"chatrelay/backend/internal/models"
)

// Status is the live-channel state of a session.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// State is one immutable snapshot of a client session.
type State struct {
	User          *models.User
	Status        Status
	Chats         []models.Chat
	CurrentChat   *models.Chat
	Messages      []models.Message
	OnlineUsers   []models.OnlineUser
	Notifications []models.Notification

	ChatsErr    error
	MessagesErr error
	SendErr     error
}

// Login binds the user; the connection is opened by the caller.
func (s State) Login(user models.User) State {
	return State{User: &user, Status: StatusIdle}
}

// Logout drops everything tied to the user.
func (s State) Logout() State {
	return State{}
}

func (s State) Connecting() State {
	s.Status = StatusConnecting
	return s
}

func (s State) Connected() State {
	s.Status = StatusConnected
	return s
}

// Disconnected keeps the loaded data; the online set is no longer known.
func (s State) Disconnected() State {
	s.Status = StatusDisconnected
	s.OnlineUsers = nil
	return s
}

// SetChats replaces the chat list after a fetch.
func (s State) SetChats(chats []models.Chat, err error) State {
	s.ChatsErr = err
	if err != nil {
		return s
	}
	s.Chats = append([]models.Chat(nil), chats...)
	return s
}

// AddChat appends a newly created chat unless it is already listed.
func (s State) AddChat(chat models.Chat) State {
	for _, c := range s.Chats {
		if c.ID == chat.ID {
			return s
		}
	}
	s.Chats = append(append([]models.Chat(nil), s.Chats...), chat)
	return s
}

// SelectChat opens chat, clears the message list for the history fetch and marks
// the other member's notifications read.
func (s State) SelectChat(chat models.Chat) State {
	s.CurrentChat = &chat
	s.Messages = nil
	s.MessagesErr = nil
	if s.User != nil {
		if other, ok := chat.OtherMember(s.User.ID); ok {
			s.Notifications = markSenderRead(other, s.Notifications)
		}
	}
	return s
}

// SetMessages stores the history of chatID. Results for a chat that is no longer
// open are discarded.
func (s State) SetMessages(chatID string, messages []models.Message, err error) State {
	if s.CurrentChat == nil || s.CurrentChat.ID != chatID {
		return s
	}
	s.MessagesErr = err
	if err != nil {
		return s
	}
	s.Messages = append([]models.Message(nil), messages...)
	return s
}

func (s State) SetOnlineUsers(users []models.OnlineUser) State {
	s.OnlineUsers = append([]models.OnlineUser(nil), users...)
	return s
}

// ReceiveMessage appends a relayed message when it belongs to the open chat.
func (s State) ReceiveMessage(msg models.RelayMessage) State {
	if s.CurrentChat == nil || s.CurrentChat.ID != msg.ChatID {
		return s
	}
	s.Messages = append(append([]models.Message(nil), s.Messages...), msg.Message())
	return s
}

// ReceiveNotification prepends an unread notification unless it concerns the open chat.
func (s State) ReceiveNotification(n models.Notification) State {
	if s.isChatOpen(n) {
		return s
	}
	n.IsRead = false
	s.Notifications = append([]models.Notification{n}, s.Notifications...)
	return s
}

// AppendOwnMessage adds a message the user just sent to the open chat.
func (s State) AppendOwnMessage(msg models.Message, err error) State {
	s.SendErr = err
	if err != nil || s.CurrentChat == nil || s.CurrentChat.ID != msg.ChatID {
		return s
	}
	s.Messages = append(append([]models.Message(nil), s.Messages...), msg)
	return s
}

func (s State) MarkAllRead() State {
	s.Notifications = MarkAllRead(s.Notifications)
	return s
}

// MarkRead marks every notification of target's sender read and opens the chat
// pairing the user with that sender, if one exists and is not already open.
func (s State) MarkRead(target models.Notification) State {
	if s.User == nil {
		return s
	}
	chat, list := MarkRead(target, s.Chats, s.User.ID, s.Notifications)
	if chat != nil && (s.CurrentChat == nil || s.CurrentChat.ID != chat.ID) {
		s = s.SelectChat(*chat)
	}
	s.Notifications = list
	return s
}

func (s State) MarkReadForSender(batch []models.Notification) State {
	s.Notifications = MarkReadForSender(batch, s.Notifications)
	return s
}

// UnreadCount counts unread notifications.
func (s State) UnreadCount() int {
	n := 0
	for _, item := range s.Notifications {
		if !item.IsRead {
			n++
		}
	}
	return n
}

// UnreadFrom returns the unread notifications sent by senderID.
func (s State) UnreadFrom(senderID string) []models.Notification {
	var out []models.Notification
	for _, item := range s.Notifications {
		if !item.IsRead && item.SenderID == senderID {
			out = append(out, item)
		}
	}
	return out
}

func (s State) IsOnline(userID string) bool {
	for _, u := range s.OnlineUsers {
		if u.UserID == userID {
			return true
		}
	}
	return false
}

// PotentialChats lists the users the current user has no chat with yet.
func (s State) PotentialChats(users []models.User) []models.User {
	if s.User == nil {
		return nil
	}
	var out []models.User
	for _, u := range users {
		if u.ID == s.User.ID {
			continue
		}
		exists := false
		for _, c := range s.Chats {
			if c.Pairs(s.User.ID, u.ID) {
				exists = true
				break
			}
		}
		if !exists {
			out = append(out, u)
		}
	}
	return out
}

// isChatOpen matches by chat id and falls back to the sender being the other
// member of the open chat for notifications without one.
func (s State) isChatOpen(n models.Notification) bool {
	if s.CurrentChat == nil {
		return false
	}
	if n.ChatID != "" {
		return n.ChatID == s.CurrentChat.ID
	}
	if s.User == nil {
		return false
	}
	other, ok := s.CurrentChat.OtherMember(s.User.ID)
	return ok && other == n.SenderID
}
