package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names exchanged over the live channel.
const (
	EventAddNewUser      = "addNewUser"
	EventGetOnlineUsers  = "getOnlineUsers"
	EventSendMessage     = "sendMessage"
	EventGetMessage      = "getMessage"
	EventGetNotification = "getNotification"
)

// Event is the envelope of every WebSocket frame: {"event": "...", "data": ...}.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes data into an envelope.
func NewEvent(name string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Event{Name: name, Data: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.Name)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Name, err)
	}
	return nil
}

// RelayMessage is a message as forwarded over the live channel, not the durable record.
type RelayMessage struct {
	ID          string    `json:"_id,omitempty"`
	ChatID      string    `json:"chatId"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId,omitempty"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Message returns the durable shape of the relayed message.
func (m RelayMessage) Message() Message {
	return Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.CreatedAt,
	}
}

// Notification tells a recipient that SenderID wrote to them.
type Notification struct {
	SenderID string    `json:"senderId"`
	ChatID   string    `json:"chatId,omitempty"`
	IsRead   bool      `json:"isRead"`
	Date     time.Time `json:"date"`
}

// OnlineUser is one entry of the online set broadcast by getOnlineUsers.
type OnlineUser struct {
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`
}
