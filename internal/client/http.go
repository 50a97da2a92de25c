// Package client talks to the chat API and keeps the client-side view of a
// user's conversations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized is returned when the API rejects the session token as missing (401).
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status=%d: %s", e.Status, e.Message)
}

type Conversation struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Turn struct {
	ID             uint64    `json:"id"`
	ConversationID uint64    `json:"conversation_id"`
	Message        string    `json:"message"`
	Reply          string    `json:"reply"`
	CreatedAt      time.Time `json:"created_at"`
}

type LoginResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Reply is the answer to a chat or TimeTrack request.
type Reply struct {
	Response          string `json:"response"`
	ConversationID    uint64 `json:"conversationId"`
	ConversationTitle string `json:"conversationTitle"`
}

// Backend is the part of the API the Store depends on.
type Backend interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	ListConversations(ctx context.Context, token string) ([]Conversation, error)
	DeleteConversation(ctx context.Context, token string, id uint64) error
	History(ctx context.Context, token string, conversationID uint64) ([]Turn, error)
	Chat(ctx context.Context, token string, conversationID *uint64, message string) (*Reply, error)
	TimeTrack(ctx context.Context, token string, conversationID *uint64, queryType, projectName string) (*Reply, error)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &out)
	return out.Message, err
}

// Verify follows the verification link for token.
func (c *Client) Verify(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, "/verify-email?token="+url.QueryEscape(token), "", nil, nil)
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListConversations(ctx context.Context, token string) ([]Conversation, error) {
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) DeleteConversation(ctx context.Context, token string, id uint64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/conversations/%d", id), token, nil, nil)
}

func (c *Client) History(ctx context.Context, token string, conversationID uint64) ([]Turn, error) {
	var out struct {
		ChatHistory []Turn `json:"chatHistory"`
	}
	if err := c.do(ctx, http.MethodPost, "/get-messages", token, map[string]any{
		"conversationId": conversationID,
	}, &out); err != nil {
		return nil, err
	}
	return out.ChatHistory, nil
}

func (c *Client) Chat(ctx context.Context, token string, conversationID *uint64, message string) (*Reply, error) {
	body := map[string]any{"message": message}
	if conversationID != nil {
		body["conversationId"] = *conversationID
	}
	var out Reply
	if err := c.do(ctx, http.MethodPost, "/chat", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TimeTrack(ctx context.Context, token string, conversationID *uint64, queryType, projectName string) (*Reply, error) {
	body := map[string]any{"queryType": queryType}
	if projectName != "" {
		body["projectName"] = projectName
	}
	if conversationID != nil {
		body["conversationId"] = *conversationID
	}
	var out Reply
	if err := c.do(ctx, http.MethodPost, "/timetrack-query", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		apiErr := &APIError{Status: resp.StatusCode, Message: msg}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
