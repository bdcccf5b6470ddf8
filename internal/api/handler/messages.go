package handler

import (
	"chatrelay/backend/internal/models"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type createMessageRequest struct {
	ChatID   string `json:"chatId"`
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
}

// CreateMessage stores a message. Live delivery is the sender's job over the event channel.
func (h *Handler) CreateMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ChatID) == "" || strings.TrimSpace(req.SenderID) == "" {
		badRequest(c, "chatId and senderId are required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(c, "text must not be empty")
		return
	}

	msg, err := h.Store.CreateMessage(c.Request.Context(), req.ChatID, req.SenderID, req.Text)
	if err != nil {
		respondError(c, err, "Failed to create message")
		return
	}
	c.JSON(http.StatusOK, msg)
}

// ListMessages returns the history of a chat in creation order.
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.Store.ListMessages(c.Request.Context(), c.Param("chatId"))
	if err != nil {
		respondError(c, err, "Failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}
