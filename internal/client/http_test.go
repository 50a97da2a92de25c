package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	c := New(srv.URL + "/")
	t.Cleanup(func() {
		c.HTTP.CloseIdleConnections()
		srv.Close()
	})
	return c
}

func TestClient_Chat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "hi", body["message"])
		require.EqualValues(t, 7, body["conversationId"])

		_, _ = w.Write([]byte(`{"response":"hello","conversationId":7,"conversationTitle":"hi"}`))
	})

	id := uint64(7)
	reply, err := c.Chat(context.Background(), "tok", &id, "hi")
	require.NoError(t, err)
	require.Equal(t, Reply{Response: "hello", ConversationID: 7, ConversationTitle: "hi"}, *reply)
}

func TestClient_ListConversationsAndHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/conversations":
			_, _ = w.Write([]byte(`{"conversations":[{"id":3,"title":"t","created_at":"2025-01-02T03:04:05.000Z","updated_at":"2025-01-02T03:04:06.000Z"}]}`))
		case "/get-messages":
			_, _ = w.Write([]byte(`{"chatHistory":[{"id":1,"conversation_id":3,"message":"m","reply":"r","created_at":"2025-01-02T03:04:05Z"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	convs, err := c.ListConversations(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, uint64(3), convs[0].ID)
	require.Equal(t, 6, convs[0].UpdatedAt.Second())

	turns, err := c.History(ctx, "tok", 3)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "r", turns[0].Reply)
}

func TestClient_Errors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/conversations":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthenticated"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"conversation not found"}`))
		}
	})
	ctx := context.Background()

	_, err := c.ListConversations(ctx, "")
	require.ErrorIs(t, err, ErrUnauthorized)

	err = c.DeleteConversation(ctx, "tok", 9)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "conversation not found", apiErr.Message)
	require.False(t, errors.Is(err, ErrUnauthorized))
}

func TestClient_LoginRegisterVerify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/register":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"message":"check your mail"}`))
		case "/verify-email":
			require.Equal(t, "a b", r.URL.Query().Get("token"))
			_, _ = w.Write([]byte(`<html>ok</html>`))
		case "/login":
			_, _ = w.Write([]byte(`{"userId":"u","username":"alice","token":"jwt"}`))
		}
	})
	ctx := context.Background()

	msg, err := c.Register(ctx, "alice", "a@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "check your mail", msg)

	require.NoError(t, c.Verify(ctx, "a b"))

	res, err := c.Login(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "jwt", res.Token)
}
