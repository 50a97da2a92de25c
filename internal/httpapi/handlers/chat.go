package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-ai/internal/chat"
	"github.com/suPer8Hu/chat-ai/internal/common"
)

type conversationView struct {
	ID        uint64 `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func (h *Handler) ListConversations(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "unauthenticated")
		return
	}

	convs, err := h.ChatSvc.ListConversations(c.Request.Context(), uid)
	if err != nil {
		h.internalError(c, "list conversations failed", err, "failed to list conversations")
		return
	}

	out := make([]conversationView, 0, len(convs))
	for _, cv := range convs {
		out = append(out, conversationView{
			ID:        cv.ID,
			Title:     cv.Title,
			CreatedAt: cv.CreatedAt.UTC().Format(timeLayout),
			UpdatedAt: cv.UpdatedAt.UTC().Format(timeLayout),
		})
	}
	common.OK(c, gin.H{"conversations": out})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "unauthenticated")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.Fail(c, http.StatusBadRequest, "invalid conversation id")
		return
	}

	if err := h.ChatSvc.DeleteConversation(c.Request.Context(), uid, id); err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			common.Fail(c, http.StatusNotFound, "conversation not found")
			return
		}
		h.internalError(c, "delete conversation failed", err, "failed to delete conversation")
		return
	}
	common.OK(c, gin.H{"message": "Conversation deleted"})
}

type chatReq struct {
	Message        string  `json:"message"`
	ConversationID *uint64 `json:"conversationId"`
}

func (h *Handler) Chat(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	reply, err := h.ChatSvc.SendMessage(c.Request.Context(), uid, req.ConversationID, req.Message)
	if err != nil {
		h.chatError(c, "chat failed", err)
		return
	}
	writeReply(c, reply)
}

type timeTrackReq struct {
	QueryType      string  `json:"queryType"`
	ProjectName    string  `json:"projectName"`
	ConversationID *uint64 `json:"conversationId"`
}

func (h *Handler) TimeTrackQuery(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req timeTrackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	reply, err := h.ChatSvc.SendTimeTrackQuery(c.Request.Context(), uid, req.ConversationID, chat.TimeTrackQuery{
		Type:        req.QueryType,
		ProjectName: req.ProjectName,
	})
	if err != nil {
		h.chatError(c, "timetrack query failed", err)
		return
	}
	writeReply(c, reply)
}

type historyReq struct {
	ConversationID *uint64 `json:"conversationId"`
}

func (h *Handler) GetMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req historyReq
	if err := c.ShouldBindJSON(&req); err != nil || req.ConversationID == nil {
		common.Fail(c, http.StatusBadRequest, "conversationId is required")
		return
	}

	turns, err := h.ChatSvc.History(c.Request.Context(), uid, *req.ConversationID)
	if err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			common.Fail(c, http.StatusNotFound, "conversation not found")
			return
		}
		h.internalError(c, "get messages failed", err, "failed to fetch messages")
		return
	}
	if turns == nil {
		turns = []chat.Turn{}
	}
	common.OK(c, gin.H{"chatHistory": turns})
}

func (h *Handler) chatError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, "Message is required")
	case errors.Is(err, chat.ErrInvalidQueryType):
		common.Fail(c, http.StatusBadRequest, "invalid queryType")
	case errors.Is(err, chat.ErrConversationNotFound):
		common.Fail(c, http.StatusNotFound, "conversation not found")
	case errors.Is(err, chat.ErrUpstream):
		h.internalError(c, op, err, "Failed to process request")
	default:
		h.internalError(c, op, err, "internal error")
	}
}

func writeReply(c *gin.Context, r *chat.Reply) {
	common.OK(c, gin.H{
		"response":          r.Response,
		"conversationId":    r.ConversationID,
		"conversationTitle": r.ConversationTitle,
	})
}
