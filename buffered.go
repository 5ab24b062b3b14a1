package chatstream

import (
	"fmt"
	"io"
	"strings"
)

// BufferedOption configures a BufferedConsumer.
type BufferedOption func(*BufferedConsumer)

// WithContentRenderer sets a function applied to each output's complete
// content before it is written, for example a markdown renderer.
func WithContentRenderer(fn func(string) string) BufferedOption {
	return func(c *BufferedConsumer) {
		c.render = fn
	}
}

// WithHeader sets the function producing the line that opens each output
// block. The default is "--- Output N ---".
func WithHeader(fn func(index int) string) BufferedOption {
	return func(c *BufferedConsumer) {
		c.header = fn
	}
}

// BufferedConsumer accumulates text per output and writes every output as a
// labeled block, ordered by index, once the stream has ended. Nothing is
// written while chunks are arriving, so concurrent outputs never interleave.
type BufferedConsumer struct {
	NopConsumer
	w       io.Writer
	render  func(string) string
	header  func(int) string
	outputs []*outputBuffer
}

type outputBuffer struct {
	seen      bool
	reasoning strings.Builder
	content   strings.Builder
	calls     []string
	finish    FinishReason
}

// NewBufferedConsumer returns a consumer that flushes to w after the stream.
func NewBufferedConsumer(w io.Writer, opts ...BufferedOption) *BufferedConsumer {
	c := &BufferedConsumer{
		w:      w,
		header: func(i int) string { return fmt.Sprintf("--- Output %d ---", i) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *BufferedConsumer) buffer(index int) *outputBuffer {
	for len(c.outputs) <= index {
		c.outputs = append(c.outputs, &outputBuffer{})
	}
	b := c.outputs[index]
	b.seen = true
	return b
}

// OnChunk records finish reasons, which callbacks do not carry.
func (c *BufferedConsumer) OnChunk(chunk Chunk) error {
	for _, d := range chunk.Outputs {
		if d.Index < 0 {
			continue
		}
		b := c.buffer(d.Index)
		if d.Finished() {
			b.finish = d.FinishReason
		}
	}
	return nil
}

func (c *BufferedConsumer) OnReasoningToken(out OutputContext, token string) error {
	c.buffer(out.OutputIndex).reasoning.WriteString(token)
	return nil
}

func (c *BufferedConsumer) OnContentToken(out OutputContext, token string) error {
	c.buffer(out.OutputIndex).content.WriteString(token)
	return nil
}

func (c *BufferedConsumer) OnClientToolCalls(out OutputContext, calls []ToolCall) error {
	b := c.buffer(out.OutputIndex)
	for _, tc := range calls {
		if tc.Name != "" {
			b.calls = append(b.calls, tc.Name)
		}
	}
	return nil
}

// Flush writes every buffered output and resets the buffers.
func (c *BufferedConsumer) Flush() error {
	var sb strings.Builder
	for i, b := range c.outputs {
		if !b.seen {
			continue
		}
		fmt.Fprintf(&sb, "\n%s\n", c.header(i))
		if b.reasoning.Len() > 0 {
			fmt.Fprintf(&sb, "Reasoning:\n%s\n\n", b.reasoning.String())
		}
		if b.content.Len() > 0 {
			content := b.content.String()
			if c.render != nil {
				content = c.render(content)
			}
			fmt.Fprintf(&sb, "Content:\n%s\n\n", content)
		}
		if len(b.calls) > 0 {
			fmt.Fprintf(&sb, "Tool calls: %s\n", strings.Join(b.calls, ", "))
		}
		fmt.Fprintf(&sb, "Finish reason: %s\n", b.finish)
	}
	c.outputs = nil
	_, err := io.WriteString(c.w, sb.String())
	return err
}

var (
	_ Consumer = (*BufferedConsumer)(nil)
	_ Flusher  = (*BufferedConsumer)(nil)
)
