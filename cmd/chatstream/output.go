package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fwojciec/chatstream"
	bt "github.com/fwojciec/chatstream/bubbletea"
	"github.com/fwojciec/chatstream/goldmark"
	csjson "github.com/fwojciec/chatstream/json"
	"github.com/spf13/cobra"
)

// render drains src through the consumer selected by --mode and returns the
// processed chunks. outputs is the requested output count, or 0 if unknown.
func (a *app) render(cmd *cobra.Command, src chatstream.Source, outputs int) ([]chatstream.Chunk, error) {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	theme := chatstream.DefaultTheme()

	opts := []chatstream.ProcessOption{chatstream.WithLogger(a.logger)}
	if outputs > 0 {
		opts = append(opts, chatstream.WithOutputs(outputs))
	}

	switch mode := a.v.GetString("mode"); mode {
	case "live":
		return chatstream.Process(ctx, src, chatstream.NewLiveConsumer(w), opts...)

	case "buffered":
		var bopts []chatstream.BufferedOption
		if a.v.GetBool("markdown") {
			bopts = append(bopts, chatstream.WithContentRenderer(goldmark.ContentRenderer(a.width(w), theme)))
		}
		return chatstream.Process(ctx, src, chatstream.NewBufferedConsumer(w, bopts...), opts...)

	case "tui":
		var (
			mu     sync.Mutex
			chunks []chatstream.Chunk
		)
		stream := func(ctx context.Context, c chatstream.Consumer) error {
			got, err := chatstream.Process(ctx, src, c, opts...)
			mu.Lock()
			chunks = got
			mu.Unlock()
			return err
		}
		err := bt.Run(ctx, bt.New(stream, theme))
		mu.Lock()
		defer mu.Unlock()
		return chunks, err

	default:
		return nil, fmt.Errorf("unknown mode %q: must be live, buffered or tui", mode)
	}
}

// report logs the stream summary and, with --json, prints the assembled
// response.
func (a *app) report(w io.Writer, chunks []chatstream.Chunk) error {
	resp := chatstream.Assemble(chunks)
	if resp == nil {
		a.logger.Warn("stream produced no chunks")
		return nil
	}

	attrs := []any{"chunks", len(chunks), "outputs", len(resp.Outputs)}
	if resp.Usage != nil {
		attrs = append(attrs,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"total_tokens", resp.Usage.TotalTokens)
	}
	a.logger.Info("stream complete", attrs...)

	if !a.v.GetBool("json") {
		return nil
	}
	data, err := csjson.MarshalResponse(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
