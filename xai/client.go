package xai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fwojciec/chatstream"
)

// Interface compliance check.
var _ chatstream.Provider = (*Client)(nil)

// Client implements [chatstream.Provider] for the xAI chat completions API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new xAI [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream sends a streaming request to the chat completions endpoint and
// returns a [chatstream.Source] yielding one chunk per server-sent event.
func (c *Client) Stream(ctx context.Context, req chatstream.Request) (chatstream.Source, error) {
	body, err := buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("xai: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("xai: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("xai request", "model", req.Model, "outputs", req.Outputs())
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("xai: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}

	return newStream(ctx, resp.Body, req.Outputs()), nil
}

func buildRequestBody(req chatstream.Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	apiReq := apiRequest{
		Model:         model,
		Messages:      convertMessages(req.SystemPrompt, req.Messages),
		Stream:        true,
		StreamOptions: &apiStreamOptions{IncludeUsage: true},
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
	}
	if n := req.Outputs(); n > 1 {
		apiReq.N = n
	}
	return json.Marshal(apiReq)
}

func convertMessages(system string, msgs []chatstream.Message) []apiMessage {
	result := make([]apiMessage, 0, len(msgs)+1)
	if system != "" {
		result = append(result, apiMessage{Role: string(chatstream.RoleSystem), Content: system})
	}
	for _, m := range msgs {
		role := m.Role
		if role == "" {
			role = chatstream.RoleUser
		}
		result = append(result, apiMessage{Role: string(role), Content: m.Text})
	}
	return result
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("xai: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || len(apiErr.Error) == 0 {
		return fmt.Errorf("xai: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("xai: HTTP %d: %s", resp.StatusCode, describeError(apiErr.Error))
}

// describeError renders an error payload that is either a string or an object.
func describeError(raw json.RawMessage) string {
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	var e apiError
	if err := json.Unmarshal(raw, &e); err == nil && e.Message != "" {
		if e.Type != "" {
			return e.Type + ": " + e.Message
		}
		return e.Message
	}
	return string(raw)
}
