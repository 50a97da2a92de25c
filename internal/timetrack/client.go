// Package timetrack reads users, absences and projects from the TimeTrack API and
// renders them as chat replies.
package timetrack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type User struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type Absence struct {
	ID              int    `json:"id"`
	From            string `json:"from"`
	To              string `json:"to"`
	AbsenceType     int    `json:"absenceType"`
	AbsenceTypeName string `json:"absenceTypeName"`
	Status          int    `json:"status"`
	User            string `json:"user"`
	UserID          int    `json:"user_id"`
}

type Project struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Client struct {
	BaseURL   string
	APIKey    string
	APISecret string
	HTTP      *http.Client
	Now       func() time.Time
}

func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		APISecret: apiSecret,
		HTTP:      &http.Client{Timeout: 20 * time.Second},
		Now:       time.Now,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.BaseURL != "" && c.APIKey != "" && c.APISecret != ""
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.get(ctx, "/users", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch timetrack users: %w", err)
	}
	return out, nil
}

func (c *Client) Absences(ctx context.Context, startDate, endDate string) ([]Absence, error) {
	q := url.Values{}
	if startDate != "" {
		q.Set("startDate", startDate)
	}
	if endDate != "" {
		q.Set("endDate", endDate)
	}
	var out []Absence
	if err := c.get(ctx, "/absences", q, &out); err != nil {
		return nil, fmt.Errorf("fetch timetrack absences: %w", err)
	}
	return out, nil
}

func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.get(ctx, "/projects", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch timetrack projects: %w", err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := strings.TrimRight(c.BaseURL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-TimeTrack-Api-Key", c.APIKey)
	req.Header.Set("X-TimeTrack-Api-Secret", c.APISecret)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
