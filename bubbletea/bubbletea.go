// Package bubbletea provides a Bubble Tea viewer for multi-output chat
// streams.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/chatstream"
)

// StreamFunc processes one stream, driving c as chunks arrive. It blocks until
// the stream ends or ctx is cancelled. Implementations typically call
// chatstream.Process with c.
type StreamFunc func(ctx context.Context, c chatstream.Consumer) error

// Run creates and runs the Bubble Tea program with the alternate screen and
// any extra opts. The stream runs under ctx. Run blocks until the program
// exits and the stream function has returned. It returns ctx.Err() if ctx was
// cancelled, otherwise the stream error, if any.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	m.parent = ctx
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	stop := context.AfterFunc(ctx, p.Quit)
	defer stop()

	final, err := p.Run()
	fm, ok := final.(Model)
	if ok {
		fm.stop()
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ok {
		return fm.Err()
	}
	return nil
}

// Phase names the part of an output a message refers to.
type Phase int

const (
	PhaseReasoning Phase = iota
	PhaseContent
)

// ChunkMsg carries a raw chunk, delivered before any of its deltas.
type ChunkMsg struct {
	Chunk chatstream.Chunk
}

// TokenMsg carries one reasoning or content fragment of an output.
type TokenMsg struct {
	Output int
	Phase  Phase
	Text   string
}

// PhaseDoneMsg signals that a phase of an output has completed.
type PhaseDoneMsg struct {
	Output int
	Phase  Phase
}

// ToolCallsMsg carries tool-call fragments of an output.
type ToolCallsMsg struct {
	Output int
	Calls  []chatstream.ToolCall
}

// InlineCitationsMsg carries inline citations of an output.
type InlineCitationsMsg struct {
	Output    int
	Citations []chatstream.InlineCitation
}

// UsageMsg carries the stream's token usage.
type UsageMsg struct {
	Usage chatstream.Usage
}

// CitationsMsg carries the stream-level citation URLs.
type CitationsMsg struct {
	URLs []string
}

// DoneMsg signals that the stream has ended.
type DoneMsg struct {
	Err error
}
