package chatstream

import (
	"strings"
	"time"
)

// Response is the complete result folded from a chunk sequence, equivalent to
// what a non-streaming call returns.
type Response struct {
	ID                string
	Model             string
	Created           time.Time
	SystemFingerprint string
	Outputs           []Output // ascending by Index
	Usage             *Usage   // nil when no chunk carried usage
	Citations         []string
}

// Output is the accumulated result for one output index.
type Output struct {
	Index            int
	Role             Role
	Reasoning        string
	Content          string
	EncryptedContent string
	ToolCalls        []ToolCall // one entry per call ID, in first-seen order
	Citations        []InlineCitation
	FinishReason     FinishReason
}

// Assemble folds a captured chunk sequence into one Response. It returns nil
// for an empty sequence. Assemble is pure: equal inputs give equal results and
// the chunks are not modified.
//
// Response metadata comes from the first chunk. Usage and stream citations
// come from the terminal chunk: the first one carrying usage, or the last
// chunk when none does. Outputs cover every index up to the largest reported
// TotalOutputs or observed index, so silent outputs appear with empty fields.
// Deltas with a negative index or one of at least MaxOutputs are skipped.
func Assemble(chunks []Chunk) *Response {
	if len(chunks) == 0 {
		return nil
	}

	first := chunks[0]
	var acc []*accumulator
	terminal := len(chunks) - 1
	usageSeen := false

	for i, chunk := range chunks {
		if n := min(chunk.TotalOutputs, MaxOutputs); n > len(acc) {
			acc = growAccumulators(acc, n)
		}
		for _, d := range chunk.Outputs {
			if d.Index < 0 || d.Index >= MaxOutputs {
				continue
			}
			if d.Index >= len(acc) {
				acc = growAccumulators(acc, d.Index+1)
			}
			acc[d.Index].add(d)
		}
		if chunk.Usage != nil && !usageSeen {
			usageSeen = true
			terminal = i
		}
	}

	resp := &Response{
		ID:                first.ID,
		Model:             first.Model,
		Created:           first.Created,
		SystemFingerprint: first.SystemFingerprint,
		Outputs:           make([]Output, len(acc)),
	}
	for i, a := range acc {
		resp.Outputs[i] = a.output(i)
	}

	last := chunks[terminal]
	if last.Usage != nil {
		u := *last.Usage
		resp.Usage = &u
	}
	if len(last.Citations) > 0 {
		resp.Citations = append([]string(nil), last.Citations...)
	}
	return resp
}

// accumulator collects the deltas of one output during a single Assemble call.
type accumulator struct {
	role      Role
	reasoning strings.Builder
	content   strings.Builder
	encrypted strings.Builder
	calls     []*callBuilder
	callIndex map[string]int
	citations []InlineCitation
	finish    FinishReason
}

type callBuilder struct {
	call ToolCall
	args strings.Builder
}

func growAccumulators(acc []*accumulator, n int) []*accumulator {
	for len(acc) < n {
		acc = append(acc, &accumulator{callIndex: make(map[string]int)})
	}
	return acc
}

func (a *accumulator) add(d OutputDelta) {
	if d.Role != "" {
		a.role = d.Role
	}
	a.reasoning.WriteString(d.Reasoning)
	a.content.WriteString(d.Content)
	a.encrypted.WriteString(d.EncryptedContent)
	for _, tc := range d.ToolCalls {
		a.addCall(tc)
	}
	a.citations = append(a.citations, d.Citations...)
	if d.FinishReason != FinishNone {
		a.finish = d.FinishReason
	}
}

// addCall merges a fragment into the call sharing its ID. A fragment without
// an ID continues the most recent call.
func (a *accumulator) addCall(tc ToolCall) {
	var b *callBuilder
	switch i, ok := a.callIndex[tc.ID]; {
	case ok:
		b = a.calls[i]
	case tc.ID == "" && len(a.calls) > 0:
		b = a.calls[len(a.calls)-1]
	default:
		b = &callBuilder{call: ToolCall{ID: tc.ID, Kind: tc.Kind}}
		a.callIndex[tc.ID] = len(a.calls)
		a.calls = append(a.calls, b)
	}
	if b.call.Name == "" {
		b.call.Name = tc.Name
	}
	if b.call.Kind == "" {
		b.call.Kind = tc.Kind
	}
	if tc.Status != "" {
		b.call.Status = tc.Status
	}
	b.args.WriteString(tc.Arguments)
}

func (a *accumulator) output(index int) Output {
	out := Output{
		Index:            index,
		Role:             a.role,
		Reasoning:        a.reasoning.String(),
		Content:          a.content.String(),
		EncryptedContent: a.encrypted.String(),
		Citations:        a.citations,
		FinishReason:     a.finish,
	}
	if len(a.calls) > 0 {
		out.ToolCalls = make([]ToolCall, len(a.calls))
		for i, b := range a.calls {
			call := b.call
			call.Arguments = b.args.String()
			out.ToolCalls[i] = call
		}
	}
	return out
}
