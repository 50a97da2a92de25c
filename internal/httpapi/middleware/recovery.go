package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-ai/internal/common"
	"go.uber.org/zap"
)

// Recovery turns a panic into a 500 and reports it to Sentry when a client is configured.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", GetRequestID(c)),
					zap.Stack("stack"),
				)
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetTag("request_id", GetRequestID(c))
				hub.Scope().SetRequest(c.Request)
				hub.Recover(fmt.Errorf("panic: %v", rec))

				common.Fail(c, http.StatusInternalServerError, "internal server error")
			}
		}()
		c.Next()
	}
}

// ReportError sends err to Sentry tagged with the request id.
func ReportError(c *gin.Context, err error) {
	hub := sentry.CurrentHub().Clone()
	hub.Scope().SetTag("request_id", GetRequestID(c))
	hub.Scope().SetRequest(c.Request)
	hub.CaptureException(err)
}
