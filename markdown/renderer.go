package markdown

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/parleyhq/parley"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// citationMarker matches inline citation references emitted by the backend,
// e.g. [1] or [12]. Styled, not rewritten: the number keys into the turn's
// source list.
var citationMarker = regexp.MustCompile(`\[\d+\]`)

// renderer walks the goldmark AST and emits ANSI-styled terminal text.
type renderer struct {
	bold      lipgloss.Style
	italic    lipgloss.Style
	accent    lipgloss.Style
	muted     lipgloss.Style
	underline lipgloss.Style
	citation  lipgloss.Style
	codeBg    lipgloss.Style
}

func newRenderer(theme parley.Theme) *renderer {
	return &renderer{
		bold:      lipgloss.NewStyle().Bold(true),
		italic:    lipgloss.NewStyle().Italic(true),
		accent:    lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
		underline: lipgloss.NewStyle().Underline(true),
		citation:  lipgloss.NewStyle().Foreground(ansiColor(theme.Citation)).Bold(true),
		codeBg:    lipgloss.NewStyle().Background(ansiColor(theme.CodeBg)),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

func (r *renderer) render(source []byte, width int) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var out strings.Builder
	r.blocks(&out, doc, source, width)
	return strings.TrimRight(out.String(), "\n")
}

func (r *renderer) blocks(out *strings.Builder, parent ast.Node, source []byte, width int) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		r.block(out, c, source, width)
	}
}

// blockGap separates sibling blocks; the last block gets no trailing gap.
func blockGap(out *strings.Builder, node ast.Node) {
	if node.NextSibling() != nil {
		out.WriteString("\n")
	}
}

func (r *renderer) block(out *strings.Builder, node ast.Node, source []byte, width int) {
	switch n := node.(type) {
	case *ast.Paragraph:
		inline := r.styleCitations(r.inlineText(n, source))
		out.WriteString(lipgloss.NewStyle().Width(width).Render(inline))
		out.WriteString("\n")
		blockGap(out, n)

	case *ast.Heading:
		styled := r.accent.Render(r.inlineText(n, source))
		out.WriteString(lipgloss.NewStyle().Width(width).Render(styled))
		out.WriteString("\n")
		blockGap(out, n)

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(source)); lang != "" {
			out.WriteString(r.muted.Render(lang))
			out.WriteString("\n")
		}
		r.codeLines(out, n.Lines(), source)
		blockGap(out, n)

	case *ast.CodeBlock:
		r.codeLines(out, n.Lines(), source)
		blockGap(out, n)

	case *ast.List:
		r.list(out, n, source, width, 0)
		blockGap(out, n)

	case *ast.ThematicBreak:
		out.WriteString("---\n")
		blockGap(out, n)

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			out.Write(seg.Value(source))
		}

	default:
		// Blockquotes and other unrecognized blocks: recurse into children.
		r.blocks(out, node, source, width)
	}
}

// codeLines renders code block lines verbatim behind a gutter, without
// reflow. The code background color applies per line so wrapping by the
// terminal never bleeds color into the gutter.
func (r *renderer) codeLines(out *strings.Builder, lines *text.Segments, source []byte) {
	gutter := r.muted.Render("│") + " "
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		content := strings.TrimRight(string(seg.Value(source)), "\n")
		out.WriteString(gutter + r.codeBg.Render(content))
		out.WriteString("\n")
	}
}

func (r *renderer) list(out *strings.Builder, node *ast.List, source []byte, width, depth int) {
	indent := strings.Repeat("  ", depth)
	itemNum := 0

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "- "
		if node.IsOrdered() {
			marker = fmt.Sprintf("%d. ", node.Start+itemNum)
			itemNum++
		}

		var body strings.Builder
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				body.WriteString(r.styleCitations(r.inlineText(in, source)))
			case *ast.List:
				if body.Len() > 0 {
					r.listItem(out, indent, marker, body.String(), width)
					body.Reset()
				}
				r.list(out, in, source, width, depth+1)
				// Any text after the nested list continues under the item.
				marker = strings.Repeat(" ", len(marker))
			default:
				r.block(&body, ic, source, width)
			}
		}

		if body.Len() > 0 {
			r.listItem(out, indent, marker, body.String(), width)
		}
	}
}

// listItem writes one item with continuation lines aligned past the marker.
func (r *renderer) listItem(out *strings.Builder, indent, marker, content string, width int) {
	prefix := indent + marker
	itemWidth := width - len(prefix)
	if itemWidth < 10 {
		itemWidth = 10
	}
	continuation := strings.Repeat(" ", len(prefix))
	for i, line := range strings.Split(lipgloss.NewStyle().Width(itemWidth).Render(content), "\n") {
		if i == 0 {
			out.WriteString(prefix + line + "\n")
			continue
		}
		out.WriteString(continuation + line + "\n")
	}
}

// inlineText collects the styled inline content of a block node's children.
func (r *renderer) inlineText(node ast.Node, source []byte) string {
	var out strings.Builder
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(&out, c, source)
	}
	return out.String()
}

func (r *renderer) inline(out *strings.Builder, node ast.Node, source []byte) {
	switch n := node.(type) {
	case *ast.Text:
		out.Write(n.Segment.Value(source))
		if n.SoftLineBreak() {
			out.WriteByte(' ')
		}
		if n.HardLineBreak() {
			out.WriteByte('\n')
		}

	case *ast.String:
		out.Write(n.Value)

	case *ast.Emphasis:
		inner := r.inlineText(n, source)
		if n.Level == 1 {
			out.WriteString(r.italic.Render(inner))
			return
		}
		// Level 2 = bold. Goldmark represents ***bold italic*** as nested
		// Emphasis nodes, so level 3+ is not reachable.
		out.WriteString(r.bold.Render(inner))

	case *ast.CodeSpan:
		out.WriteString(r.bold.Render(r.inlineText(n, source)))

	case *ast.Link:
		out.WriteString(r.underline.Render(r.inlineText(n, source)))
		out.WriteString(" ")
		out.WriteString(r.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.AutoLink:
		out.WriteString(r.underline.Render(string(n.URL(source))))

	case *ast.Image:
		out.WriteString(r.underline.Render(r.inlineText(n, source)))
		out.WriteString(" ")
		out.WriteString(r.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			out.Write(seg.Value(source))
		}

	default:
		// Recurse for any unrecognized inline.
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			r.inline(out, c, source)
		}
	}
}

// styleCitations highlights [n] citation markers in collected inline text.
// Applied after inline collection because goldmark splits an unlinked "["
// into its own text segment, so markers are only whole at this level.
func (r *renderer) styleCitations(s string) string {
	return citationMarker.ReplaceAllStringFunc(s, func(m string) string {
		return r.citation.Render(m)
	})
}
