package xai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fwojciec/chatstream"
)

// streamState tracks where the stream is in its lifecycle.
type streamState int

const (
	stateNew streamState = iota
	stateStreaming
	stateComplete
	stateError
	stateClosed
)

// maxLineSize bounds one SSE line. Tool arguments can make single events
// much larger than bufio's default.
const maxLineSize = 1 << 20

// stream implements [chatstream.Source] by parsing SSE events from an HTTP
// response body.
type stream struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	ctx      context.Context
	state    streamState
	outputs  int
	position int64
	calls    map[callKey]string // tool call index to call ID, per output
	err      error              // terminal error, if any
}

type callKey struct {
	output int
	index  int
}

// Interface compliance check.
var _ chatstream.Source = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser, outputs int) *stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &stream{
		body:    body,
		scanner: scanner,
		ctx:     ctx,
		state:   stateNew,
		outputs: outputs,
		calls:   make(map[callKey]string),
	}
}

// Next reads the next chunk from the SSE stream.
// Returns io.EOF after the [DONE] sentinel.
func (s *stream) Next() (chatstream.Chunk, error) {
	switch s.state {
	case stateComplete:
		return chatstream.Chunk{}, io.EOF
	case stateError:
		return chatstream.Chunk{}, s.err
	case stateClosed:
		return chatstream.Chunk{}, chatstream.ErrSourceClosed
	}

	data, err := s.readSSEEvent()
	if err != nil {
		s.terminate(err)
		return chatstream.Chunk{}, s.err
	}
	s.state = stateStreaming

	if data == doneSentinel {
		s.state = stateComplete
		return chatstream.Chunk{}, io.EOF
	}

	chunk, err := s.convert(data)
	if err != nil {
		s.terminate(err)
		return chatstream.Chunk{}, s.err
	}
	return chunk, nil
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	return s.body.Close()
}

// terminate records a terminal error.
func (s *stream) terminate(err error) {
	s.state = stateError
	switch {
	case s.ctx.Err() != nil:
		s.err = s.ctx.Err()
	case errors.Is(err, io.EOF):
		// The server must send [DONE]; a bare EOF means the stream was cut.
		s.err = errors.New("xai: unexpected end of stream")
	default:
		s.err = err
	}
}

// readSSEEvent reads lines until a complete SSE event is assembled and
// returns its data payload.
func (s *stream) readSSEEvent() (string, error) {
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			// Empty line signals end of event.
			if dataBuf.Len() > 0 {
				return dataBuf.String(), nil
			}
			continue
		}

		if data, ok := strings.CutPrefix(line, "data:"); ok {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(data, " "))
		}
		// Ignore comments (lines starting with ':') and other fields.
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("xai: %w", err)
	}
	if dataBuf.Len() > 0 {
		return dataBuf.String(), nil
	}
	return "", io.EOF
}

// convert maps one SSE payload to a chunk.
func (s *stream) convert(data string) (chatstream.Chunk, error) {
	var evt sseChunk
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return chatstream.Chunk{}, fmt.Errorf("xai: failed to parse chunk: %w", err)
	}
	if len(evt.Error) > 0 && string(evt.Error) != "null" {
		return chatstream.Chunk{}, fmt.Errorf("xai: %s", describeError(evt.Error))
	}

	s.position++
	chunk := chatstream.Chunk{
		ID:                evt.ID,
		Model:             evt.Model,
		SystemFingerprint: evt.SystemFingerprint,
		Position:          s.position,
		TotalOutputs:      s.outputs,
		Usage:             convertUsage(evt.Usage),
		Citations:         evt.Citations,
	}
	if evt.Created > 0 {
		chunk.Created = time.Unix(evt.Created, 0).UTC()
	}
	for _, ch := range evt.Choices {
		chunk.Outputs = append(chunk.Outputs, s.convertChoice(ch))
	}
	return chunk, nil
}

func (s *stream) convertChoice(ch sseChoice) chatstream.OutputDelta {
	d := chatstream.OutputDelta{
		Index:            ch.Index,
		Role:             chatstream.Role(ch.Delta.Role),
		Reasoning:        ch.Delta.ReasoningContent,
		Content:          ch.Delta.Content,
		EncryptedContent: ch.Delta.EncryptedContent,
	}
	for _, tc := range ch.Delta.ToolCalls {
		key := callKey{output: ch.Index, index: tc.Index}
		id := tc.ID
		if id != "" {
			s.calls[key] = id
		} else {
			id = s.calls[key]
		}
		d.ToolCalls = append(d.ToolCalls, chatstream.ToolCall{
			ID:        id,
			Kind:      chatstream.ToolCallClient,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if ch.FinishReason != nil {
		d.FinishReason = mapFinishReason(*ch.FinishReason)
	}
	return d
}

// mapFinishReason maps a wire finish reason. Unrecognized non-empty values
// still end the output and map to FinishInvalid.
func mapFinishReason(raw string) chatstream.FinishReason {
	fr, err := chatstream.ParseFinishReason(raw)
	if err != nil {
		return chatstream.FinishInvalid
	}
	return fr
}

func convertUsage(u *sseUsage) *chatstream.Usage {
	if u == nil {
		return nil
	}
	usage := &chatstream.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		NumSourcesUsed:   u.NumSourcesUsed,
	}
	if u.PromptTokensDetails != nil {
		usage.CachedPromptTokens = u.PromptTokensDetails.CachedTokens
	}
	if u.CompletionTokensDetails != nil {
		usage.ReasoningTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	return usage
}
