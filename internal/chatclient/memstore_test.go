package chatclient_test

import (
	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/storage"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory storage.Storage for end-to-end client tests.
type memStore struct {
	mu       sync.Mutex
	users    []models.User
	chats    []models.Chat
	messages []models.Message
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return storage.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	m.users = append(m.users, *user)
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) ListUsers(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.User(nil), m.users...), nil
}

func (m *memStore) CreateChat(ctx context.Context, firstID, secondID string) (*models.Chat, bool, error) {
	chat, err := m.FindChat(ctx, firstID, secondID)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	chat = models.NewChat(firstID, secondID)
	chat.ID = uuid.NewString()
	m.chats = append(m.chats, *chat)
	return chat, true, nil
}

func (m *memStore) FindChat(_ context.Context, firstID, secondID string) (*models.Chat, error) {
	if firstID == "" || secondID == "" || firstID == secondID {
		return nil, storage.ErrInvalidMembers
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chats {
		if c.HasMember(firstID) && c.HasMember(secondID) {
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) GetChatByID(_ context.Context, chatID string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chats {
		if c.ID == chatID {
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) ListChats(_ context.Context, userID string) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Chat{}
	for _, c := range m.chats {
		if c.HasMember(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) CreateMessage(_ context.Context, chatID, senderID, text string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := models.Message{ID: uuid.NewString(), ChatID: chatID, SenderID: senderID, Text: text, CreatedAt: time.Now().UTC()}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *memStore) ListMessages(_ context.Context, chatID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Message{}
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out, nil
}
