package chatstream

import (
	"context"
	"io"
)

// Source delivers chunks in send order using a pull-based iterator.
// Next returns io.EOF once the stream has ended normally; any other error is
// an abnormal termination. Cancellation flows through the context the Source
// was created with.
type Source interface {
	Next() (Chunk, error)
	Close() error
}

// Provider is a strategy interface for services that stream chat completions.
type Provider interface {
	Stream(ctx context.Context, req Request) (Source, error)
}

// Request carries what an adapter needs to issue one streaming call.
// Zero values select the provider's defaults.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	N            int      // number of parallel outputs; 0 = one
	MaxTokens    int      // 0 = provider default
	Temperature  *float64 // nil = provider default
}

// Outputs returns the number of outputs the request asks for.
func (r Request) Outputs() int {
	if r.N < 1 {
		return 1
	}
	return r.N
}

// Message is one plain-text conversation turn.
type Message struct {
	Role Role
	Text string
}

// replaySource yields a captured chunk sequence.
type replaySource struct {
	chunks []Chunk
	pos    int
	closed bool
}

// NewReplaySource returns a Source that yields chunks in order and then
// io.EOF. The slice is not copied.
func NewReplaySource(chunks []Chunk) Source {
	return &replaySource{chunks: chunks}
}

func (s *replaySource) Next() (Chunk, error) {
	if s.closed {
		return Chunk{}, ErrSourceClosed
	}
	if s.pos >= len(s.chunks) {
		return Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *replaySource) Close() error {
	s.closed = true
	return nil
}
