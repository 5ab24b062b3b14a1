package chatstream

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
)

// ProcessOption configures a single Process invocation.
type ProcessOption func(*processConfig)

type processConfig struct {
	logger  *slog.Logger
	outputs int
}

// WithLogger sets the logger for stream diagnostics. If nil or not set,
// records are discarded.
func WithLogger(l *slog.Logger) ProcessOption {
	return func(c *processConfig) {
		c.logger = l
	}
}

// WithOutputs declares the number of outputs up front, for sources that never
// report it. A chunk reporting a different count is a protocol error.
func WithOutputs(n int) ProcessOption {
	return func(c *processConfig) {
		c.outputs = n
	}
}

// Process drains src, driving c as chunks arrive, and returns every chunk it
// processed so the sequence can be passed to Assemble. Process does not close
// src.
//
// Errors:
//   - source failures are wrapped with ErrTransport;
//   - contract violations, including output counts or indices beyond
//     MaxOutputs, are wrapped with ErrProtocol;
//   - consumer errors are returned unchanged;
//   - if ctx is done, Process stops without further callbacks and returns
//     ctx.Err() with no chunks.
//
// On transport, protocol and consumer errors the returned slice holds the
// chunks fully processed before the failure.
func Process(ctx context.Context, src Source, c Consumer, opts ...ProcessOption) ([]Chunk, error) {
	var cfg processConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.outputs > MaxOutputs {
		return nil, fmt.Errorf("%d outputs declared, limit is %d: %w", cfg.outputs, MaxOutputs, ErrProtocol)
	}
	p := newProcessor(c, cfg)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := src.Next()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.logger.Debug("source failed", "chunks", len(p.chunks), "error", err)
			return p.chunks, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if err := p.handle(chunk); err != nil {
			return p.chunks, err
		}
	}

	if err := p.finish(); err != nil {
		return p.chunks, err
	}
	return p.chunks, nil
}

// processor owns the per-stream state of one Process call.
type processor struct {
	consumer Consumer
	logger   *slog.Logger

	// table is indexed by output index. While fixed is false the output count
	// is unknown and the table grows to cover the highest index seen.
	table []phases
	fixed bool

	chunks   []Chunk
	position int64
	trailed  bool
}

func newProcessor(c Consumer, cfg processConfig) *processor {
	p := &processor{consumer: c, logger: cfg.logger}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.outputs > 0 {
		p.table = make([]phases, cfg.outputs)
		p.fixed = true
	}
	return p
}

func (p *processor) handle(chunk Chunk) error {
	if err := p.validate(chunk); err != nil {
		p.logger.Warn("inconsistent chunk", "chunk", len(p.chunks), "error", err)
		return err
	}

	if err := p.consumer.OnChunk(chunk); err != nil {
		return err
	}
	for _, d := range byIndex(chunk.Outputs) {
		if err := p.dispatch(d); err != nil {
			return err
		}
	}
	if chunk.Terminal() && !p.trailed {
		if err := p.trailers(chunk); err != nil {
			return err
		}
	}

	p.chunks = append(p.chunks, chunk)
	p.logger.Debug("chunk processed",
		"position", chunk.Position,
		"outputs", len(chunk.Outputs),
		"terminal", chunk.Terminal())
	return nil
}

// validate checks chunk against the stream contract and sizes the phase table.
func (p *processor) validate(chunk Chunk) error {
	n := len(p.chunks)
	if n > 0 && chunk.Position < p.position {
		return fmt.Errorf("chunk %d: position %d precedes %d: %w", n, chunk.Position, p.position, ErrProtocol)
	}
	p.position = chunk.Position

	if total := chunk.TotalOutputs; total > 0 {
		switch {
		case total > MaxOutputs:
			return fmt.Errorf("chunk %d: output count %d exceeds %d: %w", n, total, MaxOutputs, ErrProtocol)
		case p.fixed && total != len(p.table):
			return fmt.Errorf("chunk %d: output count changed from %d to %d: %w", n, len(p.table), total, ErrProtocol)
		case !p.fixed && total < len(p.table):
			return fmt.Errorf("chunk %d: output count %d below observed index %d: %w", n, total, len(p.table)-1, ErrProtocol)
		case !p.fixed:
			p.grow(total)
			p.fixed = true
		}
	}

	for _, d := range chunk.Outputs {
		switch {
		case d.Index < 0:
			return fmt.Errorf("chunk %d: negative output index %d: %w", n, d.Index, ErrProtocol)
		case d.Index >= MaxOutputs:
			return fmt.Errorf("chunk %d: output index %d exceeds %d: %w", n, d.Index, MaxOutputs-1, ErrProtocol)
		case d.Index >= len(p.table) && p.fixed:
			return fmt.Errorf("chunk %d: output index %d out of range [0, %d): %w", n, d.Index, len(p.table), ErrProtocol)
		case d.Index >= len(p.table):
			p.grow(d.Index + 1)
		}
	}
	return nil
}

func (p *processor) grow(n int) {
	for len(p.table) < n {
		p.table = append(p.table, phases{})
	}
}

// dispatch runs the per-output callbacks for one delta.
func (p *processor) dispatch(d OutputDelta) error {
	st := &p.table[d.Index]

	if d.Reasoning != "" && st.reasoning.begin() {
		if err := p.consumer.OnReasoningToken(p.context(d.Index), d.Reasoning); err != nil {
			return err
		}
	}
	// Content starting ends reasoning, as does the output finishing.
	if (d.Finished() || d.Content != "") && st.reasoning != PhaseComplete {
		if err := p.consumer.OnReasoningComplete(p.context(d.Index)); err != nil {
			return err
		}
		st.reasoning = PhaseComplete
	}

	if d.Content != "" && st.content.begin() {
		if err := p.consumer.OnContentToken(p.context(d.Index), d.Content); err != nil {
			return err
		}
	}
	if d.Finished() && st.content != PhaseComplete {
		if err := p.consumer.OnContentComplete(p.context(d.Index)); err != nil {
			return err
		}
		st.content = PhaseComplete
	}

	if len(d.Citations) > 0 {
		if err := p.consumer.OnInlineCitations(p.context(d.Index), d.Citations); err != nil {
			return err
		}
	}
	if calls := d.ClientToolCalls(); len(calls) > 0 {
		if err := p.consumer.OnClientToolCalls(p.context(d.Index), calls); err != nil {
			return err
		}
	}
	if calls := d.ServerToolCalls(); len(calls) > 0 {
		if err := p.consumer.OnServerToolCalls(p.context(d.Index), calls); err != nil {
			return err
		}
	}
	return nil
}

func (p *processor) context(index int) OutputContext {
	st := p.table[index]
	return OutputContext{
		TotalOutputs: len(p.table),
		OutputIndex:  index,
		Reasoning:    st.reasoning,
		Content:      st.content,
	}
}

// trailers fires the stream-level callbacks. It runs at most once per stream.
func (p *processor) trailers(chunk Chunk) error {
	p.trailed = true
	if chunk.Usage != nil {
		if err := p.consumer.OnUsage(*chunk.Usage); err != nil {
			return err
		}
	}
	if len(chunk.Citations) > 0 {
		if err := p.consumer.OnCitations(chunk.Citations); err != nil {
			return err
		}
	}
	return nil
}

// finish runs after a clean end of stream. Without a usage-bearing chunk the
// last chunk is terminal.
func (p *processor) finish() error {
	if !p.trailed && len(p.chunks) > 0 {
		if err := p.trailers(p.chunks[len(p.chunks)-1]); err != nil {
			return err
		}
	}
	if f, ok := p.consumer.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	p.logger.Debug("stream ended", "chunks", len(p.chunks), "outputs", len(p.table))
	return nil
}

// byIndex returns deltas ordered by output index, keeping arrival order for
// equal indices. The input is not modified.
func byIndex(deltas []OutputDelta) []OutputDelta {
	less := func(a, b OutputDelta) int { return cmp.Compare(a.Index, b.Index) }
	if slices.IsSortedFunc(deltas, less) {
		return deltas
	}
	sorted := slices.Clone(deltas)
	slices.SortStableFunc(sorted, less)
	return sorted
}
