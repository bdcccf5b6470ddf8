package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Chat is a one-to-one conversation. Members always holds exactly two user ids.
type Chat struct {
	ID      string         `gorm:"primaryKey" json:"_id" bson:"_id"`
	Members pq.StringArray `gorm:"type:text[];not null" json:"members" bson:"members"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// NewChat builds an unsaved chat between two users.
func NewChat(firstID, secondID string) *Chat {
	return &Chat{Members: pq.StringArray{firstID, secondID}}
}

// BeforeCreate assigns a UUID when ID is not set yet.
func (c *Chat) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// HasMember reports whether userID takes part in the chat.
func (c Chat) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// OtherMember returns the member that is not userID.
// ok is false when userID is not a member.
func (c Chat) OtherMember(userID string) (other string, ok bool) {
	if !c.HasMember(userID) {
		return "", false
	}
	for _, m := range c.Members {
		if m != userID {
			return m, true
		}
	}
	// chat with oneself
	return userID, true
}

// Pairs reports whether every member of the chat is one of a or b.
func (c Chat) Pairs(a, b string) bool {
	if len(c.Members) == 0 {
		return false
	}
	for _, m := range c.Members {
		if m != a && m != b {
			return false
		}
	}
	return true
}
