package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/chatstream"
	csjson "github.com/fwojciec/chatstream/json"
	"github.com/spf13/cobra"
)

const chatLongDesc = `Send one prompt to a provider and stream the response.

The prompt is taken from the arguments, or from stdin when no arguments are
given. With -n greater than one the provider generates that many outputs in
parallel; live mode prints only the first, buffered and tui modes show all.

Use --chunks to capture the raw chunk sequence as JSON Lines for "replay".`

func newChatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send a prompt and stream the response",
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.chat(cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringP("provider", "p", "", "Provider: xai, gemini (auto-detected from env vars if omitted)")
	f.StringP("model", "m", "", "Model ID (default: provider default)")
	f.IntP("n", "n", 1, "Number of parallel outputs")
	f.Int("max-tokens", 0, "Maximum tokens per output (default: provider default)")
	f.Float64("temperature", -1, "Sampling temperature (negative: provider default)")
	f.StringP("system", "s", "", "System prompt")
	f.String("api-key", "", "API key (overrides the provider's env var)")
	f.String("base-url", "", "xAI API base URL")
	f.String("chunks", "", "Save the streamed chunks to this JSON Lines file")
	return cmd
}

func (a *app) chat(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	provider, err := a.resolve(cmd.Context(), providerConfig{
		name:      a.v.GetString("provider"),
		apiKey:    a.v.GetString("api-key"),
		xaiKey:    a.v.GetString("xai-api-key"),
		geminiKey: a.v.GetString("gemini-api-key"),
		model:     a.v.GetString("model"),
		baseURL:   a.v.GetString("base-url"),
		logger:    a.logger,
	})
	if err != nil {
		return err
	}

	req := chatstream.Request{
		Model:        a.v.GetString("model"),
		SystemPrompt: a.v.GetString("system"),
		Messages:     []chatstream.Message{{Role: chatstream.RoleUser, Text: prompt}},
		N:            a.v.GetInt("n"),
		MaxTokens:    a.v.GetInt("max-tokens"),
	}
	if t := a.v.GetFloat64("temperature"); t >= 0 {
		req.Temperature = &t
	}

	src, err := provider.Stream(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	defer src.Close()

	chunks, err := a.render(cmd, src, req.Outputs())

	// Chunks processed before a failure are saved too.
	if path := a.v.GetString("chunks"); path != "" && len(chunks) > 0 {
		if saveErr := csjson.SaveChunks(path, chunks); saveErr != nil {
			err = errors.Join(err, fmt.Errorf("save chunks: %w", saveErr))
		} else {
			a.logger.Info("chunks saved", "path", path, "chunks", len(chunks))
		}
	}
	if err != nil {
		return err
	}
	return a.report(cmd.OutOrStdout(), chunks)
}

// readPrompt joins args, falling back to all of r when there are none.
func readPrompt(r io.Reader, args []string) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && r != nil {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return "", errors.New("no prompt: pass it as arguments or on stdin")
	}
	return prompt, nil
}
