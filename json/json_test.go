package json_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/chatstream"
	csjson "github.com/fwojciec/chatstream/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChunks() []chatstream.Chunk {
	created := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	return []chatstream.Chunk{
		{
			ID:                "resp_1",
			Model:             "grok-4",
			Created:           created,
			SystemFingerprint: "fp_1",
			Position:          1,
			TotalOutputs:      2,
			Outputs: []chatstream.OutputDelta{
				{Index: 0, Role: chatstream.RoleAssistant, Reasoning: "think"},
				{Index: 1, Content: "X"},
			},
		},
		{
			Position: 2,
			Outputs: []chatstream.OutputDelta{{
				Index:     0,
				Content:   "Hello",
				ToolCalls: []chatstream.ToolCall{{ID: "c1", Kind: chatstream.ToolCallClient, Name: "get_weather", Arguments: `{"city":"Paris"}`}},
				Citations: []chatstream.InlineCitation{{ID: "1", StartIndex: 0, EndIndex: 5, URL: "https://x.ai"}},
			}},
		},
		{
			Position: 3,
			Outputs: []chatstream.OutputDelta{
				{Index: 0, FinishReason: chatstream.FinishToolCalls},
				{Index: 1, FinishReason: chatstream.FinishStop},
			},
			Usage:     &chatstream.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, ReasoningTokens: 2},
			Citations: []string{"https://x.ai"},
		},
	}
}

func TestMarshalChunk_RoundTrip(t *testing.T) {
	t.Parallel()
	for i, c := range sampleChunks() {
		data, err := csjson.MarshalChunk(c)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "\n")

		got, err := csjson.UnmarshalChunk(data)
		require.NoError(t, err, "chunk %d", i)
		assert.Equal(t, c, got)
	}
}

func TestMarshalChunk_WireFormat(t *testing.T) {
	t.Parallel()
	data, err := csjson.MarshalChunk(chatstream.Chunk{
		Outputs: []chatstream.OutputDelta{{Index: 0, Content: "hi", FinishReason: chatstream.FinishStop}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"outputs":[{"index":0,"content":"hi","finish_reason":"stop"}]}`, string(data))
}

func TestUnmarshalChunk_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "invalid json", input: `{`, wantErr: "unmarshal chunk"},
		{name: "unsupported version", input: `{"v":2}`, wantErr: "unsupported chunk version: 2"},
		{name: "unknown finish reason", input: `{"v":1,"outputs":[{"index":0,"finish_reason":"exploded"}]}`, wantErr: "unknown finish reason"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := csjson.UnmarshalChunk([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("wraps sentinel", func(t *testing.T) {
		t.Parallel()
		_, err := csjson.UnmarshalChunk([]byte(`{"v":1,"outputs":[{"index":0,"finish_reason":"nope"}]}`))
		assert.ErrorIs(t, err, chatstream.ErrUnknownFinishReason)
	})
}

func TestEncoderDecoder(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	enc := csjson.NewEncoder(&buf)
	for _, c := range sampleChunks() {
		require.NoError(t, enc.Encode(c))
	}
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	got, err := csjson.NewDecoder(&buf).DecodeAll()
	require.NoError(t, err)
	assert.Equal(t, sampleChunks(), got)
}

func TestDecoder_ReportsFailingChunk(t *testing.T) {
	t.Parallel()
	input := `{"v":1,"id":"a"}` + "\n" + `{"v":9}` + "\n"
	dec := csjson.NewDecoder(strings.NewReader(input))
	_, err := dec.Decode()
	require.NoError(t, err)
	_, err = dec.Decode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 1")
}

func TestSource(t *testing.T) {
	t.Parallel()

	t.Run("replays through Process and Assemble", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		enc := csjson.NewEncoder(&buf)
		for _, c := range sampleChunks() {
			require.NoError(t, enc.Encode(c))
		}

		src := csjson.NewSource(&buf)
		defer src.Close()
		chunks, err := chatstream.Process(t.Context(), src, chatstream.NopConsumer{})
		require.NoError(t, err)

		resp := chatstream.Assemble(chunks)
		require.NotNil(t, resp)
		require.Len(t, resp.Outputs, 2)
		assert.Equal(t, "Hello", resp.Outputs[0].Content)
		assert.Equal(t, "X", resp.Outputs[1].Content)
		assert.Equal(t, 15, resp.Usage.TotalTokens)
	})

	t.Run("closes underlying reader once", func(t *testing.T) {
		t.Parallel()
		rc := &countingCloser{Reader: strings.NewReader("")}
		src := csjson.NewSource(rc)
		require.NoError(t, src.Close())
		require.NoError(t, src.Close())
		assert.Equal(t, 1, rc.closes)

		_, err := src.Next()
		assert.ErrorIs(t, err, chatstream.ErrSourceClosed)
	})

	t.Run("empty input is EOF", func(t *testing.T) {
		t.Parallel()
		src := csjson.NewSource(strings.NewReader(""))
		_, err := src.Next()
		assert.ErrorIs(t, err, io.EOF)
	})
}

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func TestSaveLoadChunks(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "captures", "run.jsonl")
		require.NoError(t, csjson.SaveChunks(path, sampleChunks()))

		got, err := csjson.LoadChunks(path)
		require.NoError(t, err)
		assert.Equal(t, sampleChunks(), got)

		_, err = os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
	})

	t.Run("open replays file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "run.jsonl")
		require.NoError(t, csjson.SaveChunks(path, sampleChunks()[:1]))

		src, err := csjson.Open(path)
		require.NoError(t, err)
		defer src.Close()
		c, err := src.Next()
		require.NoError(t, err)
		assert.Equal(t, "resp_1", c.ID)
		_, err = src.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("failed save removes temp file", func(t *testing.T) {
		t.Parallel()
		// A non-empty directory at path makes the final rename fail.
		path := filepath.Join(t.TempDir(), "run.jsonl")
		require.NoError(t, os.MkdirAll(filepath.Join(path, "keep"), 0o700))

		err := csjson.SaveChunks(path, sampleChunks())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rename temp file")

		_, err = os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err), "temp file should be removed")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := csjson.LoadChunks(filepath.Join(t.TempDir(), "missing.jsonl"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read file")
	})
}

func TestMarshalResponse_RoundTrip(t *testing.T) {
	t.Parallel()
	resp := chatstream.Assemble(sampleChunks())
	require.NotNil(t, resp)

	data, err := csjson.MarshalResponse(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"finish_reason": "tool_calls"`)

	got, err := csjson.UnmarshalResponse(data)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestMarshalResponse_Nil(t *testing.T) {
	t.Parallel()
	_, err := csjson.MarshalResponse(nil)
	assert.Error(t, err)
}
