package bubbletea

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/goldmark"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// outputPane accumulates what the viewer shows for a single output.
type outputPane struct {
	reasoning     strings.Builder
	content       strings.Builder
	reasoningDone bool
	contentDone   bool
	calls         []chatstream.ToolCall
	citations     []chatstream.InlineCitation
	finish        chatstream.FinishReason

	// collapsed hides the reasoning text behind its header.
	collapsed bool
}

func newOutputPane() *outputPane {
	return &outputPane{collapsed: true}
}

// addCalls merges fragments into the pane's calls by ID. A fragment without
// an ID continues the most recent call.
func (p *outputPane) addCalls(calls []chatstream.ToolCall) {
	for _, tc := range calls {
		i := p.callIndex(tc.ID)
		if i < 0 {
			p.calls = append(p.calls, tc)
			continue
		}
		c := &p.calls[i]
		c.Arguments += tc.Arguments
		if c.Name == "" {
			c.Name = tc.Name
		}
		if tc.Status != "" {
			c.Status = tc.Status
		}
	}
}

func (p *outputPane) callIndex(id string) int {
	if id == "" {
		return len(p.calls) - 1
	}
	for i, c := range p.calls {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (p *outputPane) view(index, width int, styles Styles, theme chatstream.Theme) string {
	wrap := lipgloss.NewStyle().Width(width)
	var sections []string

	header := styles.Header.Render(fmt.Sprintf("Output %d", index+1))
	if p.finish != chatstream.FinishNone {
		header += " " + styles.Success.Render(p.finish.String())
	}
	sections = append(sections, header)

	if p.reasoning.Len() > 0 {
		indicator := "▶"
		if !p.collapsed {
			indicator = "▼"
		}
		label := indicator + " Reasoning"
		if !p.reasoningDone {
			label += "..."
		}
		label += fmt.Sprintf(" (%d chars)", uniseg.GraphemeClusterCount(p.reasoning.String()))
		block := styles.Reasoning.Render(label)
		if !p.collapsed {
			block += "\n" + styles.Reasoning.Render(wrap.Render(p.reasoning.String()))
		}
		sections = append(sections, block)
	}

	if p.content.Len() > 0 {
		// Partial markdown renders badly, so plain text is shown until the
		// content phase completes.
		if p.contentDone {
			sections = append(sections, goldmark.Render(p.content.String(), width, theme))
		} else {
			sections = append(sections, wrap.Render(p.content.String()))
		}
	}

	if len(p.calls) > 0 {
		lines := make([]string, len(p.calls))
		for i, c := range p.calls {
			preview := "→ " + c.Name + "(" + c.Arguments + ")"
			if c.Kind == chatstream.ToolCallServer {
				preview = "⚙ " + c.Name + "(" + c.Arguments + ")"
			}
			lines[i] = styles.ToolCall.Render(runewidth.Truncate(preview, width, "…"))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(p.citations) > 0 {
		lines := make([]string, len(p.citations))
		for i, c := range p.citations {
			lines[i] = styles.Citation.Render(runewidth.Truncate(fmt.Sprintf("[%s] %s", c.ID, c.URL), width, "…"))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}
