// Command chatstream streams chat completions and renders every output as it
// arrives.
//
// Usage:
//
//	XAI_API_KEY=xai-... chatstream chat [flags] [prompt]
//	GEMINI_API_KEY=...  chatstream chat --provider gemini -n 2 "Name a color"
//	chatstream replay [flags] 'captures/**/*.jsonl'
//
// Every flag can also be set through a CHATSTREAM_ environment variable, for
// example CHATSTREAM_MODE=buffered or CHATSTREAM_LOG_JSON=true.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatstream: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}
