package handler

import (
	"chatrelay/backend/internal/logger"
	"chatrelay/backend/internal/models"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createChatRequest struct {
	FirstID  string `json:"firstId"`
	SecondID string `json:"secondId"`
}

// CreateChat returns the chat pairing the two users, creating it when missing.
func (h *Handler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	req.FirstID = strings.TrimSpace(req.FirstID)
	req.SecondID = strings.TrimSpace(req.SecondID)
	if req.FirstID == "" || req.SecondID == "" {
		badRequest(c, "firstId and secondId are required")
		return
	}
	if req.FirstID == req.SecondID {
		badRequest(c, "A chat needs two different users")
		return
	}

	chat, created, err := h.Store.CreateChat(c.Request.Context(), req.FirstID, req.SecondID)
	if err != nil {
		respondError(c, err, "Failed to create chat")
		return
	}
	if created {
		logger.Info("chat created", zap.String("chat", chat.ID), zap.Strings("members", chat.Members))
	}
	c.JSON(http.StatusOK, chat)
}

// ListChats returns every chat the user is a member of.
func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.Store.ListChats(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err, "Failed to list chats")
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	c.JSON(http.StatusOK, chats)
}

// FindChat returns the chat pairing firstId and secondId.
func (h *Handler) FindChat(c *gin.Context) {
	chat, err := h.Store.FindChat(c.Request.Context(), c.Param("firstId"), c.Param("secondId"))
	if err != nil {
		respondError(c, err, "Chat not found")
		return
	}
	c.JSON(http.StatusOK, chat)
}
