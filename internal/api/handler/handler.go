package handler

import (
	"chatrelay/backend/internal/chathub"
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/logger"
	"chatrelay/backend/internal/storage"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler serves the REST API and the event channel.
type Handler struct {
	Hub   *chathub.ManagerService
	Store storage.Storage
	Auth  config.AuthConfig
	Relay config.RelayConfig

	origins  originPolicy
	upgrader websocket.Upgrader
}

func NewHandler(hub *chathub.ManagerService, store storage.Storage, cfg *config.Config) *Handler {
	h := &Handler{
		Hub:     hub,
		Store:   store,
		Auth:    cfg.Auth,
		Relay:   cfg.Relay,
		origins: newOriginPolicy(cfg.Server.AllowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// respondError writes {"error": msg} with a status derived from err.
func respondError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrInvalidMembers):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger.Error("store request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
