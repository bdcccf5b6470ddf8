package chathub_test

import (
	"chatrelay/backend/internal/models"
	"context"
	"sync"
)

type MockClient struct {
	connID string

	mu     sync.Mutex
	userID string
	closed bool

	RecvChannel chan models.Event
}

func newMockClient(connID string) *MockClient {
	return newMockClientWithBuffer(connID, 64)
}

func newMockClientWithBuffer(connID string, size int) *MockClient {
	return &MockClient{
		connID:      connID,
		RecvChannel: make(chan models.Event, size),
	}
}

func (c *MockClient) GetConnID() string { return c.connID }

func (c *MockClient) GetUserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *MockClient) SetUserID(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

func (c *MockClient) GetSendChannel() chan<- models.Event {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		panic("client closed twice")
	}
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain returns every event queued so far.
func (c *MockClient) drain() []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-c.RecvChannel:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// recordingMirror remembers every online set the hub published.
type recordingMirror struct {
	mu   sync.Mutex
	sets [][]string
	err  error
}

func (m *recordingMirror) SetOnline(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = append(m.sets, append([]string(nil), ids...))
	return m.err
}

func (m *recordingMirror) last() ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sets) == 0 {
		return nil, false
	}
	return m.sets[len(m.sets)-1], true
}
