package chatstream

import "io"

// LiveConsumer streams the tokens of output 0 to a writer as they arrive.
// Tokens of other outputs are ignored. A blank line separates the reasoning
// and content phases.
type LiveConsumer struct {
	NopConsumer
	w io.Writer
}

// NewLiveConsumer returns a consumer that writes output 0 to w.
func NewLiveConsumer(w io.Writer) *LiveConsumer {
	return &LiveConsumer{w: w}
}

func (c *LiveConsumer) OnReasoningToken(out OutputContext, token string) error {
	return c.token(out, token)
}

func (c *LiveConsumer) OnReasoningComplete(out OutputContext) error {
	return c.separator(out, out.Reasoning)
}

func (c *LiveConsumer) OnContentToken(out OutputContext, token string) error {
	return c.token(out, token)
}

func (c *LiveConsumer) OnContentComplete(out OutputContext) error {
	return c.separator(out, out.Content)
}

func (c *LiveConsumer) token(out OutputContext, token string) error {
	if out.OutputIndex != 0 {
		return nil
	}
	_, err := io.WriteString(c.w, token)
	return err
}

// separator ends a phase that produced text. Phases that completed without
// any token write nothing.
func (c *LiveConsumer) separator(out OutputContext, phase PhaseState) error {
	if out.OutputIndex != 0 || phase != PhasePending {
		return nil
	}
	_, err := io.WriteString(c.w, "\n\n")
	return err
}

var _ Consumer = (*LiveConsumer)(nil)
