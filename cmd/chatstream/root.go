package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultWidth = 80

// app holds state shared by all subcommands of one invocation.
type app struct {
	v       *viper.Viper
	logger  *slog.Logger
	resolve providerResolver
}

// newViper returns a viper instance reading CHATSTREAM_ environment variables.
// Flag names map to keys verbatim; dashes become underscores in the
// environment.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CHATSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Provider keys keep their conventional names.
	_ = v.BindEnv("xai-api-key", "XAI_API_KEY")
	_ = v.BindEnv("gemini-api-key", "GEMINI_API_KEY")
	return v
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(resolveProvider)
}

// newRootCmdWith builds the command tree with resolve constructing providers.
func newRootCmdWith(resolve providerResolver) *cobra.Command {
	a := &app{v: newViper(), logger: slog.New(slog.DiscardHandler), resolve: resolve}

	root := &cobra.Command{
		Use:           "chatstream",
		Short:         "Stream chat completions with multiple parallel outputs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Flags take precedence over the environment once bound.
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			a.logger = newLogger(cmd.ErrOrStderr(), a.v.GetBool("debug"), a.v.GetBool("log-json"))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("mode", "live", "Output mode: live, buffered, tui")
	pf.Bool("markdown", false, "Render content as markdown (buffered mode)")
	pf.Bool("json", false, "Print the assembled response as JSON after the stream ends")
	pf.Int("width", 0, "Render width (default: terminal width)")
	pf.Bool("debug", false, "Enable debug logging")
	pf.Bool("log-json", false, "Write logs as JSON")

	root.AddCommand(newChatCmd(a), newReplayCmd(a))
	return root
}

// newLogger builds the CLI logger. Human-readable output uses the
// charmbracelet/log handler; jsonOutput switches to slog's JSON handler.
func newLogger(w io.Writer, debug, jsonOutput bool) *slog.Logger {
	if jsonOutput {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return slog.New(log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "chatstream",
	}))
}

// width returns the render width: the --width flag, the terminal width of w,
// or defaultWidth.
func (a *app) width(w io.Writer) int {
	if n := a.v.GetInt("width"); n > 0 {
		return n
	}
	if f, ok := w.(*os.File); ok {
		if n, _, err := term.GetSize(f.Fd()); err == nil && n > 0 {
			return n
		}
	}
	return defaultWidth
}
