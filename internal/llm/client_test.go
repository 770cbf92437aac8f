package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, name string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(name,
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithRetries(1, time.Millisecond),
		WithTimeout(2*time.Second),
	)
	require.NoError(t, err)
	return c
}

func writeChoice(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
		"usage": map[string]int{"total_tokens": 42},
	})
}

func TestPromptMessages(t *testing.T) {
	p := Prompt{
		System:   "You are a tour guide.",
		History:  []Exchange{{Utterance: "where am i", Response: "Over San Antonio."}},
		Question: "what river is that",
	}
	msgs := p.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, Message{Role: "system", Content: "You are a tour guide."}, msgs[0])
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, Message{Role: "user", Content: "what river is that"}, msgs[3])

	assert.Len(t, Prompt{Question: "hi"}.Messages(), 1)
}

func TestClientComplete(t *testing.T) {
	c := newTestClient(t, ProviderOpenAI, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, 150, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		writeChoice(w, "  That is the San Antonio River.  ")
	})

	text, err := c.Complete(context.Background(), Prompt{System: "sys", Question: "what river is that"})
	require.NoError(t, err)
	assert.Equal(t, "That is the San Antonio River.", text)
	assert.Equal(t, ProviderOpenAI, c.Name())
}

func TestClientGrokDefaults(t *testing.T) {
	cfg := DefaultConfig(ProviderGrok)
	assert.Equal(t, "https://api.x.ai/v1", cfg.BaseURL)
	assert.Equal(t, "grok-beta", cfg.Model)

	c := newTestClient(t, ProviderGrok, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "grok-beta", req.Model)
		writeChoice(w, "ok")
	})
	_, err := c.Complete(context.Background(), Prompt{Question: "hi"})
	require.NoError(t, err)
}

func TestNewClientErrors(t *testing.T) {
	_, err := NewClient(ProviderOpenAI)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = NewClient("claude", WithAPIKey("k"))
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, ProviderOpenAI, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeChoice(w, "second time lucky")
	})

	text, err := c.Complete(context.Background(), Prompt{Question: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "second time lucky", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, ProviderOpenAI, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","code":"invalid_api_key"}}`))
	})

	_, err := c.Complete(context.Background(), Prompt{Question: "hi"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "bad key", apiErr.Message)
	assert.Equal(t, "invalid_api_key", apiErr.Code)
	assert.False(t, apiErr.IsRetryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientEmptyChoices(t *testing.T) {
	c := newTestClient(t, ProviderOpenAI, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Complete(context.Background(), Prompt{Question: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClientHonoursContext(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, ProviderOpenAI, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, Prompt{Question: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIErrorRetryable(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{400, false},
		{401, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status}
		assert.Equal(t, tt.retryable, err.IsRetryable(), "status %d", tt.status)
	}
}
