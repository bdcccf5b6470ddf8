package handler

import (
	"chatrelay/backend/internal/logger"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires every route of the service.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), h.cors())

	r.GET("/", h.Welcome)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api")
	{
		users := api.Group("/users")
		users.POST("/register", h.Register)
		users.POST("/login", h.Login)
		users.GET("/me", h.Me)
		users.GET("/find/:userId", h.FindUser)
		users.GET("", h.ListUsers)

		chats := api.Group("/chats")
		chats.POST("", h.CreateChat)
		chats.GET("/:userId", h.ListChats)
		chats.GET("/find/:firstId/:secondId", h.FindChat)

		messages := api.Group("/messages")
		messages.POST("", h.CreateMessage)
		messages.GET("/:chatId", h.ListMessages)

		api.GET("/online", h.OnlineUsers)
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote", c.ClientIP()),
		)
	}
}

func (h *Handler) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && h.origins.allows(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
