package storage

import (
	"chatrelay/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicate      = errors.New("record already exists")
	ErrInvalidMembers = errors.New("a chat needs two different member ids")
)

// Storage is the durable store of users, chats and messages.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// CreateChat returns the existing chat between the two users, or creates one.
	// created reports which of the two happened.
	CreateChat(ctx context.Context, firstID, secondID string) (chat *models.Chat, created bool, err error)
	FindChat(ctx context.Context, firstID, secondID string) (*models.Chat, error)
	GetChatByID(ctx context.Context, chatID string) (*models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)

	CreateMessage(ctx context.Context, chatID, senderID, text string) (*models.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

// Service is the PostgreSQL implementation of Storage.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Migrate creates or updates the tables.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.Message{},
	)
}

func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	if _, err := s.GetUserByEmail(ctx, user.Email); err == nil {
		return ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		return gormErr(err)
	}
	return nil
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, gormErr(err)
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, gormErr(err)
	}
	return &user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	if err := s.DB.WithContext(ctx).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, gormErr(err)
	}
	return users, nil
}

func (s *Service) CreateChat(ctx context.Context, firstID, secondID string) (*models.Chat, bool, error) {
	if !validPair(firstID, secondID) {
		return nil, false, ErrInvalidMembers
	}

	existing, err := s.FindChat(ctx, firstID, secondID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	chat := models.NewChat(firstID, secondID)
	if err := s.DB.WithContext(ctx).Create(chat).Error; err != nil {
		return nil, false, gormErr(err)
	}
	return chat, true, nil
}

// FindChat looks for a chat whose members contain both ids.
func (s *Service) FindChat(ctx context.Context, firstID, secondID string) (*models.Chat, error) {
	if !validPair(firstID, secondID) {
		return nil, ErrInvalidMembers
	}
	var chat models.Chat
	err := s.DB.WithContext(ctx).
		Where("members @> ?::text[]", pq.StringArray{firstID, secondID}).
		Order("created_at asc").
		First(&chat).Error
	if err != nil {
		return nil, gormErr(err)
	}
	return &chat, nil
}

func (s *Service) GetChatByID(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	if err := s.DB.WithContext(ctx).Where("id = ?", chatID).First(&chat).Error; err != nil {
		return nil, gormErr(err)
	}
	return &chat, nil
}

func (s *Service) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	chats := make([]models.Chat, 0)
	err := s.DB.WithContext(ctx).
		Where("? = ANY(members)", userID).
		Order("created_at asc").
		Find(&chats).Error
	if err != nil {
		return nil, gormErr(err)
	}
	return chats, nil
}

func (s *Service) CreateMessage(ctx context.Context, chatID, senderID, text string) (*models.Message, error) {
	msg := &models.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, gormErr(err)
	}
	return msg, nil
}

// ListMessages returns the chat history, oldest first.
func (s *Service) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	err := s.DB.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, gormErr(err)
	}
	return messages, nil
}

// gormErr maps gorm errors onto the package sentinels.
func gormErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return fmt.Errorf("postgres: %w", err)
	}
}

// validPair reports whether two ids can form a chat. Containment queries would
// match any chat of a for the pair (a, a), so self-chats are rejected.
func validPair(firstID, secondID string) bool {
	return firstID != "" && secondID != "" && firstID != secondID
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
