package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fwojciec/chatstream"
	csjson "github.com/fwojciec/chatstream/json"
	"github.com/fwojciec/chatstream/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeXAI serves a fixed SSE stream and records the prompts it receives.
type fakeXAI struct {
	mu      sync.Mutex
	prompts []string
	auth    string
}

func (f *fakeXAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.auth = r.Header.Get("Authorization")
	for _, m := range body.Messages {
		if m.Role == "user" {
			f.prompts = append(f.prompts, m.Content)
		}
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	events := []string{
		`{"id":"r1","model":"grok-4","created":1,"choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"}}]}`,
		`{"id":"r1","model":"grok-4","created":1,"choices":[{"index":0,"delta":{"content":" world"}}]}`,
		`{"id":"r1","model":"grok-4","created":1,"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`{"id":"r1","model":"grok-4","created":1,"choices":[],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
	}
	for _, e := range events {
		fmt.Fprintf(w, "data: %s\n\n", e)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func (f *fakeXAI) prompt(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.prompts, 1)
	return f.prompts[0]
}

func (f *fakeXAI) authorization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth
}

func TestChat(t *testing.T) {
	t.Parallel()

	t.Run("streams content and saves chunks", func(t *testing.T) {
		t.Parallel()

		fake := &fakeXAI{}
		srv := httptest.NewServer(fake)
		t.Cleanup(srv.Close)
		path := filepath.Join(t.TempDir(), "capture.jsonl")

		out, err := execute(t, "", "chat",
			"--provider", "xai", "--api-key", "xai-test", "--base-url", srv.URL,
			"--chunks", path, "say", "hello")
		require.NoError(t, err)

		assert.Equal(t, "Hello world\n\n", out)
		assert.Equal(t, "say hello", fake.prompt(t))
		assert.Equal(t, "Bearer xai-test", fake.authorization())

		chunks, err := csjson.LoadChunks(path)
		require.NoError(t, err)
		resp := chatstream.Assemble(chunks)
		require.NotNil(t, resp)
		assert.Equal(t, "Hello world", resp.Outputs[0].Content)
		assert.Equal(t, chatstream.FinishStop, resp.Outputs[0].FinishReason)
		assert.Equal(t, 5, resp.Usage.TotalTokens)
	})

	t.Run("reads prompt from stdin", func(t *testing.T) {
		t.Parallel()

		fake := &fakeXAI{}
		srv := httptest.NewServer(fake)
		t.Cleanup(srv.Close)

		_, err := execute(t, "from stdin\n", "chat",
			"--provider", "xai", "--api-key", "xai-test", "--base-url", srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "from stdin", fake.prompt(t))
	})

	t.Run("captured chunks replay to the same output", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(&fakeXAI{})
		t.Cleanup(srv.Close)
		path := filepath.Join(t.TempDir(), "capture.jsonl")

		live, err := execute(t, "", "chat", "--mode", "buffered",
			"--provider", "xai", "--api-key", "xai-test", "--base-url", srv.URL,
			"--chunks", path, "hi")
		require.NoError(t, err)

		replayed, err := execute(t, "", "replay", "--mode", "buffered", path)
		require.NoError(t, err)
		assert.Equal(t, live, replayed)
		assert.Contains(t, replayed, "Content:\nHello world\n")
	})

	t.Run("http error is reported", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"bad key"}`)
		}))
		t.Cleanup(srv.Close)

		_, err := execute(t, "", "chat",
			"--provider", "xai", "--api-key", "nope", "--base-url", srv.URL, "hi")
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "401"), err.Error())
	})

	t.Run("missing prompt", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "", "chat", "--provider", "xai", "--api-key", "xai-test")
		assert.ErrorContains(t, err, "no prompt")
	})
}

// executeWithProvider runs the root command with p standing in for the
// resolved provider.
func executeWithProvider(t *testing.T, p chatstream.Provider, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmdWith(func(context.Context, providerConfig) (chatstream.Provider, error) {
		return p, nil
	})
	return executeCmd(t, cmd, "", args...)
}

func twoOutputChunks() []chatstream.Chunk {
	return []chatstream.Chunk{
		{ID: "r1", TotalOutputs: 2, Outputs: []chatstream.OutputDelta{
			{Index: 0, Content: "A"},
			{Index: 1, Content: "B"},
		}},
		{
			ID:           "r1",
			TotalOutputs: 2,
			Outputs: []chatstream.OutputDelta{
				{Index: 0, FinishReason: chatstream.FinishStop},
				{Index: 1, FinishReason: chatstream.FinishStop},
			},
			Usage: &chatstream.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
		},
	}
}

func TestChat_Provider(t *testing.T) {
	t.Parallel()

	t.Run("request is built from flags", func(t *testing.T) {
		t.Parallel()

		var got chatstream.Request
		p := &mock.Provider{StreamFn: func(_ context.Context, req chatstream.Request) (chatstream.Source, error) {
			got = req
			return chatstream.NewReplaySource(twoOutputChunks()), nil
		}}

		out, err := executeWithProvider(t, p, "chat", "--mode", "buffered",
			"-n", "2", "--max-tokens", "64", "--temperature", "0.5",
			"-s", "be brief", "-m", "grok-test", "hi")
		require.NoError(t, err)

		assert.Equal(t, "grok-test", got.Model)
		assert.Equal(t, "be brief", got.SystemPrompt)
		assert.Equal(t, 2, got.N)
		assert.Equal(t, 64, got.MaxTokens)
		require.NotNil(t, got.Temperature)
		assert.InDelta(t, 0.5, *got.Temperature, 0)
		assert.Equal(t, []chatstream.Message{{Role: chatstream.RoleUser, Text: "hi"}}, got.Messages)

		assert.Contains(t, out, "--- Output 0 ---\nContent:\nA\n")
		assert.Contains(t, out, "--- Output 1 ---\nContent:\nB\n")
	})

	t.Run("temperature defaults to provider", func(t *testing.T) {
		t.Parallel()

		var got chatstream.Request
		p := &mock.Provider{StreamFn: func(_ context.Context, req chatstream.Request) (chatstream.Source, error) {
			got = req
			return chatstream.NewReplaySource(nil), nil
		}}

		_, err := executeWithProvider(t, p, "chat", "hi")
		require.NoError(t, err)
		assert.Nil(t, got.Temperature)
		assert.Equal(t, 1, got.Outputs())
	})

	t.Run("declared outputs reject a wider stream", func(t *testing.T) {
		t.Parallel()

		p := &mock.Provider{StreamFn: func(context.Context, chatstream.Request) (chatstream.Source, error) {
			return chatstream.NewReplaySource(twoOutputChunks()), nil
		}}

		_, err := executeWithProvider(t, p, "chat", "hi")
		require.ErrorIs(t, err, chatstream.ErrProtocol)
	})

	t.Run("stream error is wrapped", func(t *testing.T) {
		t.Parallel()

		p := &mock.Provider{StreamFn: func(context.Context, chatstream.Request) (chatstream.Source, error) {
			return nil, errors.New("quota exceeded")
		}}

		_, err := executeWithProvider(t, p, "chat", "hi")
		assert.EqualError(t, err, "stream: quota exceeded")
	})

	t.Run("partial chunks are saved and the source closed", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "partial.jsonl")
		calls := 0
		closed := false
		src := &mock.Source{
			NextFn: func() (chatstream.Chunk, error) {
				calls++
				if calls == 1 {
					return chatstream.Chunk{Outputs: []chatstream.OutputDelta{{Index: 0, Content: "par"}}}, nil
				}
				return chatstream.Chunk{}, errors.New("connection reset")
			},
			CloseFn: func() error {
				closed = true
				return nil
			},
		}
		p := &mock.Provider{StreamFn: func(context.Context, chatstream.Request) (chatstream.Source, error) {
			return src, nil
		}}

		out, err := executeWithProvider(t, p, "chat", "--chunks", path, "hi")
		require.ErrorIs(t, err, chatstream.ErrTransport)
		assert.Equal(t, "par", out)
		assert.True(t, closed)

		chunks, err := csjson.LoadChunks(path)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "par", chunks[0].Outputs[0].Content)
	})
}
