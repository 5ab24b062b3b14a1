// Package xai implements [chatstream.Provider] for the xAI chat completions
// API.
//
// It posts a streaming request to the OpenAI-compatible endpoint and converts
// each server-sent event into a [chatstream.Chunk], delivered through the
// pull-based [chatstream.Source] interface.
package xai

import "encoding/json"

const (
	defaultBaseURL  = "https://api.x.ai"
	defaultModel    = "grok-4"
	completionsPath = "/v1/chat/completions"
	doneSentinel    = "[DONE]"
)

// apiRequest is the JSON body sent to the chat completions endpoint.
type apiRequest struct {
	Model         string            `json:"model"`
	Messages      []apiMessage      `json:"messages"`
	Stream        bool              `json:"stream"`
	StreamOptions *apiStreamOptions `json:"stream_options,omitempty"`
	N             int               `json:"n,omitempty"`
	MaxTokens     int               `json:"max_tokens,omitempty"`
	Temperature   *float64          `json:"temperature,omitempty"`
}

type apiStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SSE payload types.

type sseChunk struct {
	ID                string      `json:"id"`
	Object            string      `json:"object"`
	Created           int64       `json:"created"`
	Model             string      `json:"model"`
	SystemFingerprint string      `json:"system_fingerprint"`
	Choices           []sseChoice `json:"choices"`
	Usage             *sseUsage   `json:"usage"`
	Citations         []string    `json:"citations"`
	// Error is set when the server aborts the stream mid-flight.
	Error json.RawMessage `json:"error,omitempty"`
}

type sseChoice struct {
	Index        int      `json:"index"`
	Delta        sseDelta `json:"delta"`
	FinishReason *string  `json:"finish_reason"`
}

type sseDelta struct {
	Role             string        `json:"role,omitempty"`
	Content          string        `json:"content,omitempty"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
	EncryptedContent string        `json:"encrypted_content,omitempty"`
	ToolCalls        []sseToolCall `json:"tool_calls,omitempty"`
}

// sseToolCall is a tool call fragment. Only the first fragment of a call
// carries ID and name; later fragments are keyed by Index.
type sseToolCall struct {
	Index    int             `json:"index"`
	ID       string          `json:"id,omitempty"`
	Type     string          `json:"type,omitempty"`
	Function sseToolFunction `json:"function"`
}

type sseToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type sseUsage struct {
	PromptTokens            int                `json:"prompt_tokens"`
	CompletionTokens        int                `json:"completion_tokens"`
	TotalTokens             int                `json:"total_tokens"`
	NumSourcesUsed          int                `json:"num_sources_used"`
	PromptTokensDetails     *ssePromptDetails  `json:"prompt_tokens_details"`
	CompletionTokensDetails *sseCompletionInfo `json:"completion_tokens_details"`
}

type ssePromptDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

type sseCompletionInfo struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

// apiError is the error detail in either of the two shapes the API uses:
// a bare string or an object with a message.
type apiError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// apiErrorResponse is the JSON body returned on non-200 HTTP responses.
type apiErrorResponse struct {
	Code  string          `json:"code"`
	Error json.RawMessage `json:"error"`
}
