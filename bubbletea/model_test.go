package bubbletea_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/fwojciec/chatstream"
	bt "github.com/fwojciec/chatstream/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func content(m bt.Model) string {
	return ansi.Strip(bt.RenderContent(m))
}

func status(m bt.Model) string {
	return ansi.Strip(bt.StatusLine(m))
}

func TestNew(t *testing.T) {
	t.Parallel()

	m := bt.New(nopStream, chatstream.DefaultTheme())

	assert.False(t, m.Running())
	assert.NoError(t, m.Err())
	assert.Zero(t, m.Outputs())
	assert.Equal(t, "Initializing...", m.View())
}

func TestModel_Update(t *testing.T) {
	t.Parallel()

	t.Run("window size initializes viewport", func(t *testing.T) {
		t.Parallel()

		m := initModel(t)

		assert.Equal(t, 80, m.Viewport.Width)
		assert.Equal(t, 22, m.Viewport.Height) // 24 - status(1) - border(1)
		assert.NotEqual(t, "Initializing...", m.View())
	})

	t.Run("resize updates viewport dimensions", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t), tea.WindowSizeMsg{Width: 120, Height: 40})

		assert.Equal(t, 120, m.Viewport.Width)
		assert.Equal(t, 38, m.Viewport.Height)
	})

	t.Run("tokens create outputs on demand", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t),
			bt.TokenMsg{Output: 1, Phase: bt.PhaseContent, Text: "second"},
		)

		assert.Equal(t, 2, m.Outputs())
		assert.Equal(t, 0, m.Active())
		assert.Contains(t, content(m), "Output 1")
		assert.NotContains(t, content(m), "second")
	})

	t.Run("chunk reporting total outputs sizes the view", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t), bt.ChunkMsg{Chunk: chatstream.Chunk{TotalOutputs: 3}})

		assert.Equal(t, 3, m.Outputs())
		assert.Contains(t, status(m), " 1  2  3 ")
	})

	t.Run("content is raw while streaming and rendered when complete", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t),
			bt.TokenMsg{Phase: bt.PhaseContent, Text: "some "},
			bt.TokenMsg{Phase: bt.PhaseContent, Text: "**bold**"},
		)
		assert.Contains(t, content(m), "some **bold**")

		m = updateModel(t, m, bt.PhaseDoneMsg{Phase: bt.PhaseContent})
		assert.Contains(t, content(m), "some bold")
		assert.NotContains(t, content(m), "**")
	})

	t.Run("reasoning starts collapsed and tab expands it", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t),
			bt.TokenMsg{Phase: bt.PhaseReasoning, Text: "let me think"},
		)
		assert.Contains(t, content(m), "▶ Reasoning... (12 chars)")
		assert.NotContains(t, content(m), "let me think")

		m = updateModel(t, m,
			bt.PhaseDoneMsg{Phase: bt.PhaseReasoning},
			tea.KeyMsg{Type: tea.KeyTab},
		)
		assert.Contains(t, content(m), "▼ Reasoning")
		assert.NotContains(t, content(m), "Reasoning...")
		assert.Contains(t, content(m), "let me think")
	})

	t.Run("reasoning size counts graphemes", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t),
			bt.TokenMsg{Phase: bt.PhaseReasoning, Text: "🇵🇱 é"},
			bt.PhaseDoneMsg{Phase: bt.PhaseReasoning},
		)
		assert.Contains(t, content(m), "▶ Reasoning (3 chars)")
	})

	t.Run("finish reason shown in header", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t), bt.ChunkMsg{Chunk: chatstream.Chunk{
			Outputs: []chatstream.OutputDelta{{Index: 0, FinishReason: chatstream.FinishStop}},
		}})

		assert.Contains(t, content(m), "Output 1 stop")
	})

	t.Run("tool call fragments merge by id", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t),
			bt.ToolCallsMsg{Calls: []chatstream.ToolCall{{ID: "c1", Name: "search", Arguments: `{"q":`}}},
			bt.ToolCallsMsg{Calls: []chatstream.ToolCall{{ID: "c1", Arguments: `"go"}`}}},
			bt.ToolCallsMsg{Calls: []chatstream.ToolCall{{ID: "s1", Kind: chatstream.ToolCallServer, Name: "web_search"}}},
		)

		got := content(m)
		assert.Contains(t, got, `→ search({"q":"go"})`)
		assert.Contains(t, got, "⚙ web_search()")
	})

	t.Run("long tool call preview is truncated", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModelWithSize(t, 20, 10),
			bt.ToolCallsMsg{Calls: []chatstream.ToolCall{{ID: "c1", Name: "search", Arguments: strings.Repeat("x", 50)}}},
		)

		for _, line := range strings.Split(content(m), "\n") {
			if strings.HasPrefix(line, "→") {
				assert.True(t, strings.HasSuffix(line, "…"))
				assert.LessOrEqual(t, ansi.StringWidth(line), 20)
			}
		}
	})

	t.Run("citations are listed", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t),
			bt.TokenMsg{Phase: bt.PhaseContent, Text: "cited"},
			bt.InlineCitationsMsg{Citations: []chatstream.InlineCitation{{ID: "1", URL: "https://a.example"}}},
			bt.CitationsMsg{URLs: []string{"https://b.example"}},
		)

		got := content(m)
		assert.Contains(t, got, "[1] https://a.example")
		assert.Contains(t, got, "Sources")
		assert.Contains(t, got, "1. https://b.example")
	})

	t.Run("arrows and digits switch outputs", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t),
			bt.TokenMsg{Output: 0, Phase: bt.PhaseContent, Text: "first"},
			bt.TokenMsg{Output: 1, Phase: bt.PhaseContent, Text: "second"},
		)
		assert.Contains(t, content(m), "first")

		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRight})
		assert.Equal(t, 1, m.Active())
		assert.Contains(t, content(m), "Output 2")
		assert.Contains(t, content(m), "second")

		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRight})
		assert.Equal(t, 0, m.Active())

		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyLeft})
		assert.Equal(t, 1, m.Active())

		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
		assert.Equal(t, 0, m.Active())

		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("9")})
		assert.Equal(t, 0, m.Active())
	})

	t.Run("usage shown in status line when done", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t),
			bt.UsageMsg{Usage: chatstream.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
			bt.DoneMsg{},
		)

		assert.Contains(t, status(m), "10 prompt · 5 completion · 15 total tokens")
	})

	t.Run("done with error shows error", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t), bt.DoneMsg{Err: errors.New("boom")})

		assert.EqualError(t, m.Err(), "boom")
		assert.Contains(t, status(m), "Error: boom")
	})

	t.Run("done with cancellation is not an error", func(t *testing.T) {
		t.Parallel()

		m := updateModel(t, initModel(t), bt.DoneMsg{Err: context.Canceled})

		assert.NoError(t, m.Err())
	})

	t.Run("ctrl+c when idle quits", func(t *testing.T) {
		t.Parallel()

		_, cmd := initModel(t).Update(tea.KeyMsg{Type: tea.KeyCtrlC})

		require.NotNil(t, cmd)
		_, isQuit := cmd().(tea.QuitMsg)
		assert.True(t, isQuit)
	})

	t.Run("q when idle quits", func(t *testing.T) {
		t.Parallel()

		_, cmd := initModel(t).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

		require.NotNil(t, cmd)
		_, isQuit := cmd().(tea.QuitMsg)
		assert.True(t, isQuit)
	})

	t.Run("ctrl+c while running cancels instead of quitting", func(t *testing.T) {
		t.Parallel()

		m := initModel(t)
		m = updateModel(t, m, m.Init()())
		require.True(t, m.Running())

		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		assert.Nil(t, cmd)
		model, ok := updated.(bt.Model)
		require.True(t, ok)
		assert.True(t, model.Running())
	})
}

func TestModel_Program(t *testing.T) {
	t.Parallel()

	t.Run("streams every output and reports usage", func(t *testing.T) {
		t.Parallel()

		chunks := []chatstream.Chunk{
			{TotalOutputs: 2, Outputs: []chatstream.OutputDelta{
				{Index: 0, Content: "Hello!"},
				{Index: 1, Content: "Howdy!"},
			}},
			{TotalOutputs: 2, Outputs: []chatstream.OutputDelta{
				{Index: 0, FinishReason: chatstream.FinishStop},
				{Index: 1, FinishReason: chatstream.FinishStop},
			}, Usage: &chatstream.Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}},
		}
		m := bt.New(replayStream(chunks), chatstream.DefaultTheme())
		tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

		teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
			return bytes.Contains(out, []byte("Hello!")) &&
				bytes.Contains(out, []byte("6 total tokens"))
		}, teatest.WithDuration(5*time.Second))

		tm.Send(tea.KeyMsg{Type: tea.KeyRight})
		teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
			return bytes.Contains(out, []byte("Howdy!"))
		}, teatest.WithDuration(5*time.Second))

		tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

		fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
		final, ok := fm.(bt.Model)
		require.True(t, ok)
		assert.False(t, final.Running())
		assert.NoError(t, final.Err())
		assert.Equal(t, 2, final.Outputs())
		assert.Equal(t, 1, final.Active())
	})

	t.Run("stream error is shown", func(t *testing.T) {
		t.Parallel()

		failing := func(context.Context, chatstream.Consumer) error {
			return errors.New("connection reset")
		}
		tm := teatest.NewTestModel(t, bt.New(failing, chatstream.DefaultTheme()),
			teatest.WithInitialTermSize(80, 24),
		)

		teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
			return bytes.Contains(out, []byte("Error: connection reset"))
		}, teatest.WithDuration(5*time.Second))

		tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})

		fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
		final, ok := fm.(bt.Model)
		require.True(t, ok)
		assert.EqualError(t, final.Err(), "connection reset")
	})
}
