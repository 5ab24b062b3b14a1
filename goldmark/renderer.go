package goldmark

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/chatstream"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// renderer walks a goldmark AST and writes styled text for one document.
type renderer struct {
	styles
	width  int
	source []byte
	out    strings.Builder
}

func newRenderer(theme chatstream.Theme, width int) *renderer {
	return &renderer{styles: newStyles(theme), width: width}
}

// parser recognizes CommonMark plus strikethrough and bare URLs, both common
// in model output.
var parser = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
).Parser()

func (r *renderer) render(source []byte) string {
	r.source = source
	doc := parser.Parse(text.NewReader(source))
	r.blocks(doc, "")
	return strings.TrimRight(r.out.String(), "\n")
}

// blocks renders the block children of node, each line prefixed by gutter.
func (r *renderer) blocks(node ast.Node, gutter string) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.block(c, gutter)
		if c.NextSibling() != nil {
			r.line(gutter, "")
		}
	}
}

func (r *renderer) block(node ast.Node, gutter string) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		r.wrapped(gutter, r.inline(n))

	case *ast.Heading:
		r.wrapped(gutter, r.heading.Render(r.inline(n)))

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(r.source)); lang != "" {
			r.line(gutter, r.muted.Render(lang))
		}
		r.code(n, gutter)

	case *ast.CodeBlock:
		r.code(n, gutter)

	case *ast.Blockquote:
		r.blocks(n, gutter+r.reasoning.Render("│")+" ")

	case *ast.List:
		r.list(n, gutter, 0)

	case *ast.ThematicBreak:
		r.line(gutter, "---")

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			r.line(gutter, strings.TrimRight(string(seg.Value(r.source)), "\n"))
		}

	default:
		r.blocks(node, gutter)
	}
}

// code writes the lines of a code block verbatim behind a muted bar.
func (r *renderer) code(n ast.Node, gutter string) {
	bar := r.muted.Render("│") + " "
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		r.line(gutter, bar+strings.TrimRight(string(seg.Value(r.source)), "\n"))
	}
}

func (r *renderer) list(n *ast.List, gutter string, depth int) {
	num := n.Start
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "- "
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		indent := strings.Repeat("  ", depth)

		var para strings.Builder
		flush := func() {
			if para.Len() > 0 {
				r.item(gutter+indent, marker, para.String())
				para.Reset()
				marker = strings.Repeat(" ", len(marker))
			}
		}
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				if para.Len() > 0 {
					para.WriteByte(' ')
				}
				para.WriteString(r.inline(in))
			case *ast.List:
				flush()
				r.list(in, gutter, depth+1)
			default:
				flush()
				r.block(ic, gutter+indent+strings.Repeat(" ", len(marker)))
			}
		}
		flush()
	}
}

// item writes a list item with its continuation lines hanging under the text.
func (r *renderer) item(prefix, marker, content string) {
	width := max(r.width-lipgloss.Width(prefix)-len(marker), 1)
	wrapped := lipgloss.NewStyle().Width(width).Render(content)
	hang := strings.Repeat(" ", len(marker))
	for i, l := range strings.Split(wrapped, "\n") {
		if i == 0 {
			r.line(prefix, marker+l)
		} else {
			r.line(prefix, hang+l)
		}
	}
}

func (r *renderer) wrapped(gutter, content string) {
	width := max(r.width-lipgloss.Width(gutter), 1)
	for _, l := range strings.Split(lipgloss.NewStyle().Width(width).Render(content), "\n") {
		r.line(gutter, l)
	}
}

func (r *renderer) line(gutter, s string) {
	r.out.WriteString(strings.TrimRight(gutter+s, " "))
	r.out.WriteByte('\n')
}

func (r *renderer) inline(node ast.Node) string {
	var b strings.Builder
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.span(c, &b)
	}
	return b.String()
}

func (r *renderer) span(node ast.Node, b *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(r.source))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}

	case *ast.String:
		b.Write(n.Value)

	case *ast.Emphasis:
		if n.Level == 1 {
			b.WriteString(r.italic.Render(r.inline(n)))
		} else {
			b.WriteString(r.bold.Render(r.inline(n)))
		}

	case *extast.Strikethrough:
		b.WriteString(r.strike.Render(r.inline(n)))

	case *ast.CodeSpan:
		b.WriteString(r.bold.Render(r.inline(n)))

	case *ast.Link:
		b.WriteString(r.underline.Render(r.inline(n)))
		b.WriteString(" " + r.muted.Render("("+string(n.Destination)+")"))

	case *ast.Image:
		b.WriteString(r.underline.Render(r.inline(n)))
		b.WriteString(" " + r.muted.Render("("+string(n.Destination)+")"))

	case *ast.AutoLink:
		b.WriteString(r.underline.Render(string(n.Label(r.source))))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(r.source))
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			r.span(c, b)
		}
	}
}
