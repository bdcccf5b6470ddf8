package handler

import (
	"chatrelay/backend/internal/chathub"
	"chatrelay/backend/internal/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServeWebSocket upgrades the request to the event channel. The connection has no
// identity until it sends addNewUser.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn("websocket upgrade failed", zap.String("remote", c.ClientIP()), zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, h.Relay.SendBuffer, h.Relay.MaxMessageSize)
	logger.Debug("websocket connected", zap.String("conn", client.ConnID), zap.String("remote", c.ClientIP()))
	client.Run()
}

// OnlineUsers returns the current online set.
func (h *Handler) OnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hub.OnlineUsers())
}

func (h *Handler) Welcome(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to our chat app APIs...")
}
