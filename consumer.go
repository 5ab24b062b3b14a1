package chatstream

// Consumer receives callbacks while a stream is processed. For every chunk the
// processor calls, in order:
//
//  1. OnChunk, once.
//  2. Per output delta, ascending by index: OnReasoningToken,
//     OnReasoningComplete, OnContentToken, OnContentComplete,
//     OnInlineCitations, OnClientToolCalls, OnServerToolCalls.
//  3. On the terminal chunk only: OnUsage, then OnCitations.
//
// A non-nil error from any method aborts processing and is returned to the
// caller of Process unchanged. Embed NopConsumer to implement only the
// callbacks you need.
type Consumer interface {
	OnChunk(chunk Chunk) error
	OnReasoningToken(out OutputContext, token string) error
	OnReasoningComplete(out OutputContext) error
	OnContentToken(out OutputContext, token string) error
	OnContentComplete(out OutputContext) error
	OnInlineCitations(out OutputContext, citations []InlineCitation) error
	OnClientToolCalls(out OutputContext, calls []ToolCall) error
	OnServerToolCalls(out OutputContext, calls []ToolCall) error
	OnUsage(usage Usage) error
	OnCitations(citations []string) error
}

// Flusher is implemented by consumers that emit buffered output. Process
// calls Flush once after a clean end of stream.
type Flusher interface {
	Flush() error
}

// NopConsumer implements every Consumer method as a no-op.
type NopConsumer struct{}

func (NopConsumer) OnChunk(Chunk) error { return nil }
func (NopConsumer) OnReasoningToken(OutputContext, string) error { return nil }
func (NopConsumer) OnReasoningComplete(OutputContext) error { return nil }
func (NopConsumer) OnContentToken(OutputContext, string) error { return nil }
func (NopConsumer) OnContentComplete(OutputContext) error { return nil }
func (NopConsumer) OnInlineCitations(OutputContext, []InlineCitation) error { return nil }
func (NopConsumer) OnClientToolCalls(OutputContext, []ToolCall) error { return nil }
func (NopConsumer) OnServerToolCalls(OutputContext, []ToolCall) error { return nil }
func (NopConsumer) OnUsage(Usage) error { return nil }
func (NopConsumer) OnCitations([]string) error { return nil }

// Interface compliance check.
var _ Consumer = NopConsumer{}
