package main

import (
	"fmt"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	csjson "github.com/fwojciec/chatstream/json"
	"github.com/spf13/cobra"
)

func newReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <pattern>...",
		Short: "Replay captured chunk files",
		Long: `Replay chunk sequences captured with "chat --chunks" through the same
consumers used for live streams. Patterns support ** (captures/**/*.jsonl);
matching files are replayed one after another in lexical order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.replay(cmd, args)
		},
	}
}

func (a *app) replay(cmd *cobra.Command, patterns []string) error {
	paths, err := expandPatterns(patterns)
	if err != nil {
		return err
	}
	for _, path := range paths {
		a.logger.Debug("replaying", "path", path)
		if err := a.replayFile(cmd, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func (a *app) replayFile(cmd *cobra.Command, path string) error {
	src, err := csjson.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	chunks, err := a.render(cmd, src, 0)
	if err != nil {
		return err
	}
	return a.report(cmd.OutOrStdout(), chunks)
}

// expandPatterns resolves glob patterns to a deduplicated list of files.
// A pattern matching nothing is an error.
func expandPatterns(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		slices.Sort(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	return paths, nil
}
