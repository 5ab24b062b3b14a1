package mock

import "github.com/fwojciec/chatstream"

// Interface compliance check.
var _ chatstream.Consumer = (*Consumer)(nil)

// Consumer is a test double for chatstream.Consumer.
// Every function field is nil-safe: an unset callback returns nil, so tests
// set only the callbacks they observe.
type Consumer struct {
	OnChunkFn             func(chunk chatstream.Chunk) error
	OnReasoningTokenFn    func(out chatstream.OutputContext, token string) error
	OnReasoningCompleteFn func(out chatstream.OutputContext) error
	OnContentTokenFn      func(out chatstream.OutputContext, token string) error
	OnContentCompleteFn   func(out chatstream.OutputContext) error
	OnInlineCitationsFn   func(out chatstream.OutputContext, citations []chatstream.InlineCitation) error
	OnClientToolCallsFn   func(out chatstream.OutputContext, calls []chatstream.ToolCall) error
	OnServerToolCallsFn   func(out chatstream.OutputContext, calls []chatstream.ToolCall) error
	OnUsageFn             func(usage chatstream.Usage) error
	OnCitationsFn         func(citations []string) error
}

func (c *Consumer) OnChunk(chunk chatstream.Chunk) error {
	if c.OnChunkFn == nil {
		return nil
	}
	return c.OnChunkFn(chunk)
}

func (c *Consumer) OnReasoningToken(out chatstream.OutputContext, token string) error {
	if c.OnReasoningTokenFn == nil {
		return nil
	}
	return c.OnReasoningTokenFn(out, token)
}

func (c *Consumer) OnReasoningComplete(out chatstream.OutputContext) error {
	if c.OnReasoningCompleteFn == nil {
		return nil
	}
	return c.OnReasoningCompleteFn(out)
}

func (c *Consumer) OnContentToken(out chatstream.OutputContext, token string) error {
	if c.OnContentTokenFn == nil {
		return nil
	}
	return c.OnContentTokenFn(out, token)
}

func (c *Consumer) OnContentComplete(out chatstream.OutputContext) error {
	if c.OnContentCompleteFn == nil {
		return nil
	}
	return c.OnContentCompleteFn(out)
}

func (c *Consumer) OnInlineCitations(out chatstream.OutputContext, citations []chatstream.InlineCitation) error {
	if c.OnInlineCitationsFn == nil {
		return nil
	}
	return c.OnInlineCitationsFn(out, citations)
}

func (c *Consumer) OnClientToolCalls(out chatstream.OutputContext, calls []chatstream.ToolCall) error {
	if c.OnClientToolCallsFn == nil {
		return nil
	}
	return c.OnClientToolCallsFn(out, calls)
}

func (c *Consumer) OnServerToolCalls(out chatstream.OutputContext, calls []chatstream.ToolCall) error {
	if c.OnServerToolCallsFn == nil {
		return nil
	}
	return c.OnServerToolCallsFn(out, calls)
}

func (c *Consumer) OnUsage(usage chatstream.Usage) error {
	if c.OnUsageFn == nil {
		return nil
	}
	return c.OnUsageFn(usage)
}

func (c *Consumer) OnCitations(citations []string) error {
	if c.OnCitationsFn == nil {
		return nil
	}
	return c.OnCitationsFn(citations)
}
