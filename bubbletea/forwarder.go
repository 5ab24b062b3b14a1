package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/chatstream"
)

var _ chatstream.Consumer = (*Forwarder)(nil)

// Forwarder is a chatstream.Consumer that turns callbacks into Bubble Tea
// messages. Sends block until the receiver is ready or ctx is done, in which
// case the callback returns ctx.Err() and processing stops.
type Forwarder struct {
	ctx context.Context
	ch  chan<- tea.Msg
}

// NewForwarder returns a Forwarder that sends to ch.
func NewForwarder(ctx context.Context, ch chan<- tea.Msg) *Forwarder {
	return &Forwarder{ctx: ctx, ch: ch}
}

func (f *Forwarder) send(msg tea.Msg) error {
	select {
	case f.ch <- msg:
		return nil
	case <-f.ctx.Done():
		return f.ctx.Err()
	}
}

func (f *Forwarder) OnChunk(chunk chatstream.Chunk) error {
	return f.send(ChunkMsg{Chunk: chunk})
}

func (f *Forwarder) OnReasoningToken(out chatstream.OutputContext, token string) error {
	return f.send(TokenMsg{Output: out.OutputIndex, Phase: PhaseReasoning, Text: token})
}

func (f *Forwarder) OnReasoningComplete(out chatstream.OutputContext) error {
	return f.send(PhaseDoneMsg{Output: out.OutputIndex, Phase: PhaseReasoning})
}

func (f *Forwarder) OnContentToken(out chatstream.OutputContext, token string) error {
	return f.send(TokenMsg{Output: out.OutputIndex, Phase: PhaseContent, Text: token})
}

func (f *Forwarder) OnContentComplete(out chatstream.OutputContext) error {
	return f.send(PhaseDoneMsg{Output: out.OutputIndex, Phase: PhaseContent})
}

func (f *Forwarder) OnInlineCitations(out chatstream.OutputContext, citations []chatstream.InlineCitation) error {
	return f.send(InlineCitationsMsg{Output: out.OutputIndex, Citations: citations})
}

func (f *Forwarder) OnClientToolCalls(out chatstream.OutputContext, calls []chatstream.ToolCall) error {
	return f.send(ToolCallsMsg{Output: out.OutputIndex, Calls: calls})
}

func (f *Forwarder) OnServerToolCalls(out chatstream.OutputContext, calls []chatstream.ToolCall) error {
	return f.send(ToolCallsMsg{Output: out.OutputIndex, Calls: calls})
}

func (f *Forwarder) OnUsage(usage chatstream.Usage) error {
	return f.send(UsageMsg{Usage: usage})
}

func (f *Forwarder) OnCitations(citations []string) error {
	return f.send(CitationsMsg{URLs: citations})
}
