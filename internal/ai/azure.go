package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AzureOpenAIProvider calls a chat deployment of Azure OpenAI.
type AzureOpenAIProvider struct {
	Endpoint    string
	APIKey      string
	Deployment  string
	APIVersion  string
	MaxTokens   int
	Temperature float64
	Client      *http.Client
}

func NewAzureOpenAIProvider(endpoint, apiKey, deployment, apiVersion string) *AzureOpenAIProvider {
	if apiVersion == "" {
		apiVersion = "2024-02-01"
	}
	return &AzureOpenAIProvider{
		Endpoint:    endpoint,
		APIKey:      apiKey,
		Deployment:  deployment,
		APIVersion:  apiVersion,
		MaxTokens:   800,
		Temperature: 0.3,
		Client:      &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *AzureOpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if strings.TrimSpace(p.Endpoint) == "" || strings.TrimSpace(p.Deployment) == "" {
		return "", errors.New("azure: endpoint and deployment are required")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("azure: api key is required")
	}

	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(p.Endpoint, "/"),
		url.PathEscape(p.Deployment),
		url.QueryEscape(p.APIVersion),
	)
	temp := p.Temperature

	var decoded completionResp
	if err := postJSON(ctx, p.Client, "azure", u, map[string]string{"api-key": p.APIKey}, completionReq{
		Messages:    messages,
		MaxTokens:   p.MaxTokens,
		Temperature: &temp,
	}, &decoded); err != nil {
		return "", err
	}
	return decoded.content("azure")
}
