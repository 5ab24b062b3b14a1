package bubbletea_test

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/chatstream"
	bt "github.com/fwojciec/chatstream/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwarder(t *testing.T) {
	t.Parallel()

	t.Run("translates callbacks into messages", func(t *testing.T) {
		t.Parallel()

		ch := make(chan tea.Msg, 16)
		f := bt.NewForwarder(t.Context(), ch)
		out := chatstream.OutputContext{TotalOutputs: 2, OutputIndex: 1}
		calls := []chatstream.ToolCall{{ID: "c1", Name: "search"}}
		cites := []chatstream.InlineCitation{{ID: "1", URL: "https://a.example"}}

		require.NoError(t, f.OnChunk(chatstream.Chunk{ID: "x"}))
		require.NoError(t, f.OnReasoningToken(out, "hmm"))
		require.NoError(t, f.OnReasoningComplete(out))
		require.NoError(t, f.OnContentToken(out, "hi"))
		require.NoError(t, f.OnContentComplete(out))
		require.NoError(t, f.OnInlineCitations(out, cites))
		require.NoError(t, f.OnClientToolCalls(out, calls))
		require.NoError(t, f.OnServerToolCalls(out, calls))
		require.NoError(t, f.OnUsage(chatstream.Usage{TotalTokens: 3}))
		require.NoError(t, f.OnCitations([]string{"https://b.example"}))
		close(ch)

		var got []tea.Msg
		for msg := range ch {
			got = append(got, msg)
		}
		assert.Equal(t, []tea.Msg{
			bt.ChunkMsg{Chunk: chatstream.Chunk{ID: "x"}},
			bt.TokenMsg{Output: 1, Phase: bt.PhaseReasoning, Text: "hmm"},
			bt.PhaseDoneMsg{Output: 1, Phase: bt.PhaseReasoning},
			bt.TokenMsg{Output: 1, Phase: bt.PhaseContent, Text: "hi"},
			bt.PhaseDoneMsg{Output: 1, Phase: bt.PhaseContent},
			bt.InlineCitationsMsg{Output: 1, Citations: cites},
			bt.ToolCallsMsg{Output: 1, Calls: calls},
			bt.ToolCallsMsg{Output: 1, Calls: calls},
			bt.UsageMsg{Usage: chatstream.Usage{TotalTokens: 3}},
			bt.CitationsMsg{URLs: []string{"https://b.example"}},
		}, got)
	})

	t.Run("cancelled context aborts send", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		f := bt.NewForwarder(ctx, make(chan tea.Msg))

		err := f.OnContentToken(chatstream.OutputContext{}, "lost")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
