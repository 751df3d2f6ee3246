// pkg/sitrep/llm_test.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sitrep

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaResponse{Response: "  All assets nominal.  "})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1")
	text, err := c.Generate(context.Background(), "system prompt", "DATA:\nAsset: UAV-1")
	require.NoError(t, err)
	assert.Equal(t, "All assets nominal.", text)

	assert.Equal(t, "llama3.1", got.Model)
	assert.Equal(t, "system prompt", got.System)
	assert.False(t, got.Stream)
	assert.Equal(t, maxTokens, got.Options.NumPredict)
	assert.Equal(t, temperature, got.Options.Temperature)
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1")
	_, err := c.Generate(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestOllamaEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Response: "   "})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1")
	_, err := c.Generate(context.Background(), "sys", "usr")
	assert.ErrorIs(t, err, errEmptyResponse)
}

func TestOllamaContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, "sys", "usr")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestOpenAIGenerate(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "SITREP follows."}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-4o")
	c.Endpoint = srv.URL
	text, err := c.Generate(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "SITREP follows.", text)

	assert.Equal(t, "Bearer sk-test", auth)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, maxTokens, got.MaxTokens)
}

func TestOpenAIAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limited"},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-4o")
	c.Endpoint = srv.URL
	_, err := c.Generate(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
