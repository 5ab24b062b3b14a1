package gemini

import (
	"context"
	"fmt"

	"github.com/fwojciec/chatstream"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ chatstream.Provider = (*Client)(nil)

// Client implements [chatstream.Provider] for the Google Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the default model ID used when a request names none.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		client: gc,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Stream sends a streaming request to the Gemini API and returns a
// [chatstream.Source] yielding one chunk per response.
func (c *Client) Stream(ctx context.Context, req chatstream.Request) (chatstream.Source, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	contents := ConvertMessages(req.Messages)
	config := BuildConfig(req)

	seq := c.client.Models.GenerateContentStream(ctx, model, contents, config)
	return NewSourceFromIter(ctx, seq, req.Outputs()), nil
}

// BuildConfig converts request parameters to a generation config. System
// prompt and system-role messages become the system instruction.
// Exported for testing.
func BuildConfig(req chatstream.Request) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
		},
	}
	if n := req.Outputs(); n > 1 {
		config.CandidateCount = int32(n)
	}

	var system []*genai.Part
	if req.SystemPrompt != "" {
		system = append(system, &genai.Part{Text: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		if m.Role == chatstream.RoleSystem {
			system = append(system, &genai.Part{Text: m.Text})
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{Parts: system}
	}

	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}

	return config
}

// ConvertMessages converts conversation turns to genai Contents. System-role
// messages are skipped; BuildConfig carries them.
// Exported for testing.
func ConvertMessages(msgs []chatstream.Message) []*genai.Content {
	var result []*genai.Content
	for _, m := range msgs {
		var role string
		switch m.Role {
		case chatstream.RoleSystem:
			continue
		case chatstream.RoleAssistant:
			role = "model"
		default:
			role = "user"
		}
		result = append(result, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}
	return result
}
