package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-ai/internal/chat"
	"github.com/suPer8Hu/chat-ai/internal/common"
	"github.com/suPer8Hu/chat-ai/internal/httpapi/middleware"
	"github.com/suPer8Hu/chat-ai/internal/users"
	"go.uber.org/zap"
)

type Handler struct {
	Users   *users.Service
	ChatSvc *chat.Service
	Log     *zap.Logger
}

func NewHandler(usersSvc *users.Service, chatSvc *chat.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Users: usersSvc, ChatSvc: chatSvc, Log: log}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

// internalError logs err, reports it to Sentry and answers 500 with a generic message.
func (h *Handler) internalError(c *gin.Context, op string, err error, msg string) {
	h.Log.Error(op,
		zap.Error(err),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	middleware.ReportError(c, err)
	_ = c.Error(err)
	common.Fail(c, http.StatusInternalServerError, msg)
}

func userIDFromContext(c *gin.Context) (string, bool) {
	return middleware.UserID(c)
}
