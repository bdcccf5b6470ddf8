package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is the durable record of a chat message.
type Message struct {
	ID       string `gorm:"primaryKey" json:"_id" bson:"_id"`
	ChatID   string `gorm:"type:text;not null;index:idx_chat_msg" json:"chatId" bson:"chatId"`
	SenderID string `gorm:"type:text;not null" json:"senderId" bson:"senderId"`
	Text     string `gorm:"type:text;not null" json:"text" bson:"text"`

	CreatedAt time.Time `gorm:"index:idx_chat_msg" json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// BeforeCreate assigns a UUID when ID is not set yet.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Relay converts the durable record into the live payload addressed to recipientID.
func (m Message) Relay(recipientID string) RelayMessage {
	return RelayMessage{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		RecipientID: recipientID,
		Text:        m.Text,
		CreatedAt:   m.CreatedAt,
	}
}
