package chathub

import (
	"chatrelay/backend/internal/logger"
	"chatrelay/backend/internal/models"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	ConnID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.Event

	maxMessageSize int64

	mu     sync.RWMutex
	userID string
}

// NewWebSocketClient wraps an upgraded connection.
func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, sendBuffer int, maxMessageSize int64) *WebSocketClient {
	return &WebSocketClient{
		ConnID:         uuid.NewString(),
		Conn:           conn,
		Hub:            hub,
		Send:           make(chan models.Event, sendBuffer),
		maxMessageSize: maxMessageSize,
	}
}

func (c *WebSocketClient) GetConnID() string                   { return c.ConnID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

func (c *WebSocketClient) GetUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *WebSocketClient) SetUserID(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

// Run attaches the connection to the hub and starts the pumps.
func (c *WebSocketClient) Run() {
	if !c.Hub.Connect(c) {
		c.Conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which then closes the socket.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	if c.maxMessageSize > 0 {
		c.Conn.SetReadLimit(c.maxMessageSize)
	}
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read failed", zap.String("conn", c.ConnID), zap.Error(err))
			}
			return
		}

		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Warn("malformed frame", zap.String("conn", c.ConnID), zap.Error(err))
			continue
		}

		if !c.dispatch(ev) {
			return
		}
	}
}

// dispatch handles one inbound event. It returns false once the hub has stopped.
func (c *WebSocketClient) dispatch(ev models.Event) bool {
	switch ev.Name {
	case models.EventAddNewUser:
		var userID string
		if err := ev.Decode(&userID); err != nil {
			logger.Warn("bad addNewUser payload", zap.String("conn", c.ConnID), zap.Error(err))
			return true
		}
		userID = strings.TrimSpace(userID)
		if userID == "" {
			return true
		}
		return c.Hub.Register(userID, c)

	case models.EventSendMessage:
		var msg models.RelayMessage
		if err := ev.Decode(&msg); err != nil {
			logger.Warn("bad sendMessage payload", zap.String("conn", c.ConnID), zap.Error(err))
			return true
		}
		if msg.SenderID == "" {
			msg.SenderID = c.GetUserID()
		}
		if msg.RecipientID == "" {
			logger.Debug("sendMessage without recipientId ignored", zap.String("conn", c.ConnID))
			return true
		}
		return c.Hub.Relay(msg, msg.RecipientID)

	default:
		logger.Debug("unknown event ignored", zap.String("conn", c.ConnID), zap.String("event", ev.Name))
		return true
	}
}

// writePump writes one text frame per event and keeps the connection alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(ev); err != nil {
				logger.Debug("websocket write failed", zap.String("conn", c.ConnID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
