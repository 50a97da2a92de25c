package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-ai/internal/common"
	"github.com/suPer8Hu/chat-ai/internal/httpapi/handlers"
	"github.com/suPer8Hu/chat-ai/internal/httpapi/middleware"
	"github.com/suPer8Hu/chat-ai/internal/logging"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, jwtSecret string, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(logging.GinLogger(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	// users
	r.POST("/register", h.Register)
	r.GET("/verify-email", h.VerifyEmail)
	r.POST("/login", h.Login)

	// chat (JWT required)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(jwtSecret))
	authGroup.GET("/conversations", h.ListConversations)
	authGroup.DELETE("/conversations/:id", h.DeleteConversation)
	authGroup.POST("/chat", h.Chat)
	authGroup.POST("/get-messages", h.GetMessages)
	authGroup.POST("/timetrack-query", h.TimeTrackQuery)
	return r
}
