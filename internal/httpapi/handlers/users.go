package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-ai/internal/common"
	"github.com/suPer8Hu/chat-ai/internal/httpapi/middleware"
	"github.com/suPer8Hu/chat-ai/internal/users"
	"go.uber.org/zap"
)

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	_, err := h.Users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	switch {
	case err == nil:
		common.Created(c, gin.H{"message": "Registration successful. Please check your email to verify your account."})
	case errors.Is(err, users.ErrValidation):
		common.Fail(c, http.StatusBadRequest, "username, email and password are required")
	case errors.Is(err, users.ErrEmailTaken):
		common.Fail(c, http.StatusConflict, "email already registered")
	default:
		h.internalError(c, "register failed", err, "registration failed")
	}
}

var verifyPage = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 40px;">
<h1>{{.Title}}</h1>
<p>{{.Body}}</p>
</body></html>
`))

func renderVerifyPage(c *gin.Context, status int, title, body string) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = verifyPage.Execute(c.Writer, struct{ Title, Body string }{title, body})
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		renderVerifyPage(c, http.StatusBadRequest, "Verification failed", "The verification link is missing its token.")
		return
	}

	err := h.Users.Verify(c.Request.Context(), token)
	switch {
	case err == nil:
		renderVerifyPage(c, http.StatusOK, "Email verified", "Your email has been verified. You can now log in.")
	case errors.Is(err, users.ErrValidation):
		renderVerifyPage(c, http.StatusBadRequest, "Verification failed", "The verification link is missing its token.")
	case errors.Is(err, users.ErrVerificationNotFound):
		renderVerifyPage(c, http.StatusNotFound, "Verification failed", "This verification link is invalid or has already been used.")
	default:
		h.Log.Error("verify email failed", zap.Error(err), zap.String("request_id", middleware.GetRequestID(c)))
		middleware.ReportError(c, err)
		renderVerifyPage(c, http.StatusInternalServerError, "Verification failed", "Something went wrong. Please try again later.")
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		common.OK(c, gin.H{
			"userId":   res.UserID,
			"username": res.Username,
			"token":    res.Token,
		})
	case errors.Is(err, users.ErrValidation):
		common.Fail(c, http.StatusBadRequest, "email and password are required")
	case errors.Is(err, users.ErrInvalidCredentials):
		common.Fail(c, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, users.ErrEmailNotVerified):
		common.Fail(c, http.StatusForbidden, "email not verified")
	case errors.Is(err, users.ErrTooManyAttempts):
		common.Fail(c, http.StatusTooManyRequests, "too many failed login attempts, try again later")
	default:
		h.internalError(c, "login failed", err, "login failed")
	}
}
