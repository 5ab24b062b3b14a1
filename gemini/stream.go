package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strconv"
	"time"

	"github.com/fwojciec/chatstream"
	"google.golang.org/genai"
)

// streamState tracks where the source is in its lifecycle.
type streamState int

const (
	stateNew streamState = iota
	stateStreaming
	stateComplete
	stateError
	stateClosed
)

// stream implements [chatstream.Source] by wrapping the genai SDK's streaming
// iterator. Each response becomes a chunk as soon as it arrives. Gemini may
// repeat finish reasons and usage on intermediate responses, so those are
// held back and sent on a trailing chunk once the iterator ends.
type stream struct {
	ctx      context.Context
	pull     func() (*genai.GenerateContentResponse, error, bool)
	stop     func()
	state    streamState
	outputs  int
	position int64

	// Metadata of the latest response, repeated on the trailing chunk.
	id      string
	model   string
	created time.Time

	finish    []chatstream.FinishReason // per candidate, last seen
	sawCall   []bool                    // per candidate, a function call was seen
	usage     *genai.GenerateContentResponseUsageMetadata
	citations []string
	seen      map[string]bool
	calls     int

	err error
}

// Interface compliance check.
var _ chatstream.Source = (*stream)(nil)

// NewSourceFromIter creates a [chatstream.Source] from a genai streaming
// iterator. outputs is the requested candidate count, reported on every
// chunk. Exported for testing with fake iterators.
func NewSourceFromIter(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error], outputs int) chatstream.Source {
	next, stop := iter.Pull2(seq)
	return &stream{
		ctx:     ctx,
		pull:    next,
		stop:    stop,
		state:   stateNew,
		outputs: outputs,
		seen:    make(map[string]bool),
	}
}

func (s *stream) Next() (chatstream.Chunk, error) {
	switch s.state {
	case stateComplete:
		return chatstream.Chunk{}, io.EOF
	case stateError:
		return chatstream.Chunk{}, s.err
	case stateClosed:
		return chatstream.Chunk{}, chatstream.ErrSourceClosed
	}
	s.state = stateStreaming

	resp, err, ok := s.pull()
	switch {
	case !ok:
		if err := s.ctx.Err(); err != nil {
			s.terminate(err)
			return chatstream.Chunk{}, s.err
		}
		s.state = stateComplete
		if chunk, ok := s.trailer(); ok {
			return chunk, nil
		}
		return chatstream.Chunk{}, io.EOF
	case err != nil:
		s.terminate(fmt.Errorf("gemini: %w", err))
		return chatstream.Chunk{}, s.err
	}

	chunk, err := s.convert(resp)
	if err != nil {
		s.terminate(err)
		return chatstream.Chunk{}, s.err
	}
	return chunk, nil
}

func (s *stream) Close() error {
	if s.state != stateClosed {
		s.state = stateClosed
		s.stop()
	}
	return nil
}

// terminate records a terminal error, preferring the context's error when
// the request was cancelled.
func (s *stream) terminate(err error) {
	s.state = stateError
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		s.err = ctxErr
		return
	}
	s.err = err
}

func (s *stream) convert(resp *genai.GenerateContentResponse) (chatstream.Chunk, error) {
	s.position++
	if resp.ResponseID != "" {
		s.id = resp.ResponseID
	}
	if resp.ModelVersion != "" {
		s.model = resp.ModelVersion
	}
	if !resp.CreateTime.IsZero() {
		s.created = resp.CreateTime
	}
	chunk := chatstream.Chunk{
		ID:           resp.ResponseID,
		Model:        resp.ModelVersion,
		Created:      resp.CreateTime,
		Position:     s.position,
		TotalOutputs: s.outputs,
	}
	if resp.UsageMetadata != nil {
		s.usage = resp.UsageMetadata
	}

	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		d, err := s.convertCandidate(cand)
		if err != nil {
			return chatstream.Chunk{}, err
		}
		chunk.Outputs = append(chunk.Outputs, d)
	}
	return chunk, nil
}

func (s *stream) convertCandidate(cand *genai.Candidate) (chatstream.OutputDelta, error) {
	idx := int(cand.Index)
	if idx < 0 || idx >= chatstream.MaxOutputs {
		return chatstream.OutputDelta{}, fmt.Errorf("gemini: candidate index %d: %w", idx, chatstream.ErrProtocol)
	}
	s.grow(idx + 1)
	d := chatstream.OutputDelta{Index: idx}

	if cand.Content != nil {
		if cand.Content.Role == "model" {
			d.Role = chatstream.RoleAssistant
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			switch {
			case part.FunctionCall != nil:
				tc, err := s.convertCall(part.FunctionCall)
				if err != nil {
					return chatstream.OutputDelta{}, err
				}
				d.ToolCalls = append(d.ToolCalls, tc)
				s.sawCall[idx] = true
			case part.Thought:
				d.Reasoning += part.Text
			default:
				d.Content += part.Text
			}
		}
	}

	if cand.CitationMetadata != nil {
		for i, c := range cand.CitationMetadata.Citations {
			if c == nil {
				continue
			}
			d.Citations = append(d.Citations, chatstream.InlineCitation{
				ID:         strconv.Itoa(i + 1),
				StartIndex: int(c.StartIndex),
				EndIndex:   int(c.EndIndex),
				URL:        c.URI,
			})
		}
	}
	if gm := cand.GroundingMetadata; gm != nil {
		for _, gc := range gm.GroundingChunks {
			if gc != nil && gc.Web != nil && gc.Web.URI != "" && !s.seen[gc.Web.URI] {
				s.seen[gc.Web.URI] = true
				s.citations = append(s.citations, gc.Web.URI)
			}
		}
	}

	if cand.FinishReason != "" && cand.FinishReason != genai.FinishReasonUnspecified {
		s.finish[idx] = mapFinishReason(cand.FinishReason)
	}
	return d, nil
}

func (s *stream) convertCall(fc *genai.FunctionCall) (chatstream.ToolCall, error) {
	args := "{}"
	if len(fc.Args) > 0 {
		data, err := json.Marshal(fc.Args)
		if err != nil {
			return chatstream.ToolCall{}, fmt.Errorf("gemini: marshal arguments for %s: %w", fc.Name, err)
		}
		args = string(data)
	}
	s.calls++
	id := fc.ID
	if id == "" {
		id = "call_" + strconv.Itoa(s.calls)
	}
	return chatstream.ToolCall{
		ID:        id,
		Kind:      chatstream.ToolCallClient,
		Name:      fc.Name,
		Arguments: args,
	}, nil
}

// trailer builds the chunk that closes the stream with the held-back finish
// reasons, usage and grounding citations. It reports false when there is
// nothing to send.
func (s *stream) trailer() (chatstream.Chunk, bool) {
	chunk := chatstream.Chunk{
		ID:           s.id,
		Model:        s.model,
		Created:      s.created,
		Position:     s.position + 1,
		TotalOutputs: s.outputs,
		Citations:    s.citations,
	}
	for idx, fr := range s.finish {
		if fr == chatstream.FinishNone {
			continue
		}
		if fr == chatstream.FinishStop && s.sawCall[idx] {
			fr = chatstream.FinishToolCalls
		}
		chunk.Outputs = append(chunk.Outputs, chatstream.OutputDelta{Index: idx, FinishReason: fr})
	}
	if u := s.usage; u != nil {
		chunk.Usage = &chatstream.Usage{
			PromptTokens:       int(u.PromptTokenCount),
			CompletionTokens:   int(u.CandidatesTokenCount),
			TotalTokens:        int(u.TotalTokenCount),
			ReasoningTokens:    int(u.ThoughtsTokenCount),
			CachedPromptTokens: int(u.CachedContentTokenCount),
		}
	}
	if len(chunk.Outputs) == 0 && chunk.Usage == nil && len(chunk.Citations) == 0 {
		return chatstream.Chunk{}, false
	}
	s.position++
	return chunk, true
}

func (s *stream) grow(n int) {
	for len(s.finish) < n {
		s.finish = append(s.finish, chatstream.FinishNone)
		s.sawCall = append(s.sawCall, false)
	}
}

func mapFinishReason(fr genai.FinishReason) chatstream.FinishReason {
	switch fr {
	case genai.FinishReasonStop:
		return chatstream.FinishStop
	case genai.FinishReasonMaxTokens:
		return chatstream.FinishMaxLen
	default:
		return chatstream.FinishInvalid
	}
}
