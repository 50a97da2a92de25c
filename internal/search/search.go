// Package search queries an Azure Cognitive Search index for knowledge-base passages.
package search

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

const (
	apiVersion = "2023-11-01"
	topResults = 5
)

// Document is one search hit reduced to the text used as model context.
type Document struct {
	Content string
}

type Client struct {
	Endpoint string
	Key      string
	Index    string
	HTTP     *http.Client
}

func NewClient(endpoint, key, index string) *Client {
	return &Client{
		Endpoint: endpoint,
		Key:      key,
		Index:    index,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether endpoint, key and index are all set.
func (c *Client) Configured() bool {
	return c != nil && c.Endpoint != "" && c.Key != "" && c.Index != ""
}

type searchResp struct {
	Value []map[string]any `json:"value"`
}

func (c *Client) Search(ctx context.Context, query string) ([]Document, error) {
	u := fmt.Sprintf("%s/indexes/%s/docs?api-version=%s&search=%s&$top=%d",
		strings.TrimRight(c.Endpoint, "/"),
		url.PathEscape(c.Index),
		apiVersion,
		url.QueryEscape(query),
		topResults,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.Key)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("search: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded searchResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	docs := make([]Document, 0, len(decoded.Value))
	for _, v := range decoded.Value {
		docs = append(docs, Document{Content: documentText(v)})
	}
	return docs, nil
}

// documentText picks the first text field the index schema provides and falls
// back to the whole document as JSON.
func documentText(doc map[string]any) string {
	for _, key := range []string{"content", "text", "description"} {
		if s, ok := doc[key].(string); ok && s != "" {
			return s
		}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	return string(b)
}

// BuildContext renders hits as numbered sources for a system prompt.
func BuildContext(docs []Document) string {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "[Source %d]: %s\n\n", i+1, d.Content)
	}
	return b.String()
}
