// pkg/sitrep/llm.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sitrep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// Generation parameters, shared by every provider: short reports,
	// low creativity.
	maxTokens   = 150
	temperature = 0.3

	// LocalTimeout bounds on-prem inference; small models on modest
	// hardware can legitimately take over a minute.
	LocalTimeout = 90 * time.Second
	// CloudTimeout bounds hosted-API inference.
	CloudTimeout = 30 * time.Second
)

var errEmptyResponse = errors.New("empty response from model")

// Client is an outbound LLM call: unreliable, deadline-bounded RPC.
type Client interface {
	Generate(ctx context.Context, system, user string) (string, error)
	Model() string
	Timeout() time.Duration
}

// OllamaClient drives a local Ollama server's generate endpoint.
type OllamaClient struct {
	Endpoint string // e.g. http://localhost:11434/api/generate
	Name     string // model name, e.g. llama3.1
	HTTP     *http.Client
}

func NewOllamaClient(endpoint, model string) *OllamaClient {
	return &OllamaClient{Endpoint: endpoint, Name: model, HTTP: &http.Client{}}
}

func (c *OllamaClient) Model() string          { return c.Name }
func (c *OllamaClient) Timeout() time.Duration { return LocalTimeout }

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (c *OllamaClient) Generate(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:   c.Name,
		System:  system,
		Prompt:  user,
		Stream:  false,
		Options: ollamaOptions{Temperature: temperature, NumPredict: maxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(raw))
	}

	var or ollamaResponse
	if err := json.Unmarshal(raw, &or); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if or.Error != "" {
		return "", fmt.Errorf("model error: %s", or.Error)
	}
	if strings.TrimSpace(or.Response) == "" {
		return "", errEmptyResponse
	}
	return strings.TrimSpace(or.Response), nil
}

// OpenAIClient drives the hosted chat-completions API.
type OpenAIClient struct {
	Endpoint string // defaults to the public API when empty
	APIKey   string
	Name     string
	HTTP     *http.Client
}

const openAIDefaultEndpoint = "https://api.openai.com/v1/chat/completions"

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{Endpoint: openAIDefaultEndpoint, APIKey: apiKey, Name: model, HTTP: &http.Client{}}
}

func (c *OpenAIClient) Model() string          { return c.Name }
func (c *OpenAIClient) Timeout() time.Duration { return CloudTimeout }

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) Generate(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.Name,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = openAIDefaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("API error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", errEmptyResponse
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}
