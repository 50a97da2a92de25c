package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chat-ai/internal/ai"
	"github.com/suPer8Hu/chat-ai/internal/chat"
	"github.com/suPer8Hu/chat-ai/internal/db"
	"github.com/suPer8Hu/chat-ai/internal/email"
	"github.com/suPer8Hu/chat-ai/internal/httpapi/handlers"
	"github.com/suPer8Hu/chat-ai/internal/users"
	"go.uber.org/zap"
)

const testSecret = "router-secret"

type outbox struct {
	mu   sync.Mutex
	sent []email.Message
}

func (o *outbox) Send(ctx context.Context, m email.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

func (o *outbox) tokenFor(t *testing.T, to string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range o.sent {
		if m.To != to {
			continue
		}
		_, rest, ok := strings.Cut(m.HTML, "verify-email?token=")
		require.True(t, ok)
		tok, _, _ := strings.Cut(rest, `"`)
		return tok
	}
	t.Fatalf("no mail sent to %s", to)
	return ""
}

type stubTimeTrack struct{ err error }

func (s stubTimeTrack) CurrentAbsences(ctx context.Context) (string, error) {
	return "No workers are currently absent.", s.err
}

func (s stubTimeTrack) ProjectInfo(ctx context.Context, name string) (string, error) {
	return "Project " + name, s.err
}

type testServer struct {
	r    *gin.Engine
	box  *outbox
	fail bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	gdb, err := db.Connect("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	ts := &testServer{box: &outbox{}}
	provider := ai.ProviderFunc(func(ctx context.Context, msgs []ai.Message) (string, error) {
		if ts.fail {
			return "", errors.New("model offline")
		}
		return "echo: " + msgs[len(msgs)-1].Content, nil
	})

	usersSvc := users.NewService(gdb, ts.box, nil, users.Config{
		JWTSecret:           testSecret,
		JWTTTL:              time.Hour,
		VerificationBaseURL: "http://localhost:8000",
	}, nil)
	chatSvc := chat.NewService(chat.NewRepo(gdb), provider, chat.WithTimeTrack(stubTimeTrack{}))

	ts.r = NewRouter(handlers.NewHandler(usersSvc, chatSvc, zap.NewNop()), testSecret, zap.NewNop())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// signUp registers, verifies and logs in a user, returning the session token.
func (ts *testServer) signUp(t *testing.T, username, addr string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/register", "", gin.H{"username": username, "email": addr, "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/verify-email?token="+ts.box.tokenFor(t, addr), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/login", "", gin.H{"email": addr, "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, username, body["username"])
	require.NotEmpty(t, body["userId"])
	return body["token"].(string)
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/ping", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestRegistrationFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/register", "", gin.H{"username": "ann", "email": "ann@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/register", "", gin.H{"username": "ann", "email": "ann@example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/register", "", gin.H{"username": "ann2", "email": "ANN@example.com", "password": "pw"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/login", "", gin.H{"email": "ann@example.com", "password": "pw"})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"error":"email not verified"}`, w.Body.String())

	w = ts.do(t, http.MethodPost, "/login", "", gin.H{"email": "ann@example.com", "password": "bad"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/verify-email", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	token := ts.box.tokenFor(t, "ann@example.com")
	w = ts.do(t, http.MethodGet, "/verify-email?token="+token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")

	w = ts.do(t, http.MethodGet, "/verify-email?token="+token, "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/login", "", gin.H{"email": "ann@example.com", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthGate(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/conversations", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/conversations", "garbage", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestChatFlow(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.signUp(t, "bea", "bea@example.com")

	w := ts.do(t, http.MethodPost, "/chat", tok, gin.H{"message": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/chat", tok, gin.H{"message": "What is the weather like today in Berlin"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode(t, w)
	require.Equal(t, "echo: What is the weather like today in Berlin", first["response"])
	require.Equal(t, "What is the weather like...", first["conversationTitle"])
	convID := first["conversationId"].(float64)

	w = ts.do(t, http.MethodPost, "/chat", tok, gin.H{"message": "and tomorrow?", "conversationId": convID})
	require.Equal(t, http.StatusOK, w.Code)
	second := decode(t, w)
	require.Equal(t, convID, second["conversationId"])
	require.Equal(t, "What is the weather like...", second["conversationTitle"])

	w = ts.do(t, http.MethodPost, "/timetrack-query", tok, gin.H{"queryType": "absences"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "TimeTrack: Absences", decode(t, w)["conversationTitle"])

	w = ts.do(t, http.MethodPost, "/timetrack-query", tok, gin.H{"queryType": "weather"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/conversations", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Conversations []struct {
			ID        uint64 `json:"id"`
			Title     string `json:"title"`
			CreatedAt string `json:"created_at"`
			UpdatedAt string `json:"updated_at"`
		} `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Conversations, 2)
	require.Equal(t, "TimeTrack: Absences", list.Conversations[0].Title)

	w = ts.do(t, http.MethodPost, "/get-messages", tok, gin.H{"conversationId": convID})
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		ChatHistory []chat.Turn `json:"chatHistory"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.ChatHistory, 2)
	require.Equal(t, "and tomorrow?", hist.ChatHistory[1].Message)

	w = ts.do(t, http.MethodPost, "/get-messages", tok, gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// another user sees none of it
	other := ts.signUp(t, "cid", "cid@example.com")
	w = ts.do(t, http.MethodPost, "/get-messages", other, gin.H{"conversationId": convID})
	require.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodPost, "/chat", other, gin.H{"message": "hi", "conversationId": convID})
	require.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/conversations/%d", int(convID)), other, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodDelete, "/conversations/abc", tok, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/conversations/%d", int(convID)), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodPost, "/get-messages", tok, gin.H{"conversationId": convID})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat_UpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.signUp(t, "dee", "dee@example.com")
	ts.fail = true

	w := ts.do(t, http.MethodPost, "/chat", tok, gin.H{"message": "hello"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"Failed to process request"}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/conversations", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"conversations":[]}`, w.Body.String())
}

func TestNoRoute(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":"route not found"}`, w.Body.String())
}
