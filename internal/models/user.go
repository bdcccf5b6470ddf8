package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account of the chat application.
// The same struct is stored by the SQL store (gorm tags) and the document store (bson tags).
type User struct {
	ID       string `gorm:"primaryKey" json:"_id" bson:"_id"`
	Name     string `gorm:"type:text;not null" json:"name" bson:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email" bson:"email"`
	Password string `gorm:"type:text;not null" json:"-" bson:"password"` // bcrypt hash

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// BeforeCreate is a GORM hook that assigns a UUID when ID is not set yet.
// The document store calls it directly with a nil *gorm.DB.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
