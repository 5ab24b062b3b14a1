// Package goldmark renders chat output for the terminal. Markdown content is
// parsed with goldmark and styled with lipgloss.
package goldmark

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/chatstream"
)

// defaultWidth is used when the caller passes a non-positive width.
const defaultWidth = 80

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs and list items are word-wrapped to width; code blocks are kept
// verbatim.
func Render(source string, width int, theme chatstream.Theme) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	return newRenderer(theme, width).render([]byte(source))
}

// ContentRenderer returns a renderer for chatstream.WithContentRenderer.
func ContentRenderer(width int, theme chatstream.Theme) func(string) string {
	return func(s string) string {
		return Render(s, width, theme)
	}
}

// RenderOutput renders one assembled output: reasoning dimmed, content as
// markdown, then tool calls and numbered citation references.
func RenderOutput(out chatstream.Output, width int, theme chatstream.Theme) string {
	if width <= 0 {
		width = defaultWidth
	}
	s := newStyles(theme)
	var sections []string

	if out.Reasoning != "" {
		wrapped := lipgloss.NewStyle().Width(width).Render(strings.TrimSpace(out.Reasoning))
		sections = append(sections, s.reasoning.Render(wrapped))
	}
	if out.Content != "" {
		sections = append(sections, Render(out.Content, width, theme))
	}
	if len(out.ToolCalls) > 0 {
		lines := make([]string, len(out.ToolCalls))
		for i, tc := range out.ToolCalls {
			lines[i] = s.toolCall.Render(fmt.Sprintf("→ %s(%s)", tc.Name, tc.Arguments))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if len(out.Citations) > 0 {
		lines := make([]string, len(out.Citations))
		for i, c := range out.Citations {
			lines[i] = s.citation.Render(fmt.Sprintf("[%d] %s", i+1, c.URL))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

// styles holds the lipgloss styles derived from a theme.
type styles struct {
	bold      lipgloss.Style
	italic    lipgloss.Style
	strike    lipgloss.Style
	heading   lipgloss.Style
	muted     lipgloss.Style
	underline lipgloss.Style
	reasoning lipgloss.Style
	toolCall  lipgloss.Style
	citation  lipgloss.Style
}

func newStyles(theme chatstream.Theme) styles {
	return styles{
		bold:      lipgloss.NewStyle().Bold(true),
		italic:    lipgloss.NewStyle().Italic(true),
		strike:    lipgloss.NewStyle().Strikethrough(true),
		heading:   lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
		underline: lipgloss.NewStyle().Underline(true),
		reasoning: lipgloss.NewStyle().Foreground(ansiColor(theme.Reasoning)).Italic(true),
		toolCall:  lipgloss.NewStyle().Foreground(ansiColor(theme.ToolCall)),
		citation:  lipgloss.NewStyle().Foreground(ansiColor(theme.Citation)),
	}
}

// ansiColor maps a theme index to a terminal color. Negative means no color.
func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
