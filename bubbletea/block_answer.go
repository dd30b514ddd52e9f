package bubbletea

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/parleyhq/parley"
	"github.com/parleyhq/parley/markdown"
)

var _ Block = (*AnswerBlock)(nil)

// AnswerBlock renders one streamed answer: routing line, markdown content,
// source list, and a stats footer once the turn settles.
//
// Content is append-only, so finalized paragraphs (separated by double
// newline) are rendered once and cached per width; only the trailing
// unfinalized text is re-rendered on each snapshot.
type AnswerBlock struct {
	theme  parley.Theme
	styles Styles

	content strings.Builder
	turn    parley.Turn

	// finalizedRaw is the stable prefix ending at the last double newline.
	// It's rendered once per width and cached in finalizedByWidth.
	finalizedRaw     string
	finalizedByWidth map[int]string

	sourcesCollapsed bool
}

// NewAnswerBlock creates a block for one streaming turn.
func NewAnswerBlock(theme parley.Theme, styles Styles) *AnswerBlock {
	return &AnswerBlock{
		theme:            theme,
		styles:           styles,
		finalizedByWidth: make(map[int]string),
	}
}

// Advance applies a turn snapshot. Content can only grow, so just the new
// suffix is fed to the markdown cache.
func (b *AnswerBlock) Advance(turn parley.Turn) {
	if n := b.content.Len(); len(turn.Content) > n {
		b.content.WriteString(turn.Content[n:])
		b.promoteFinalized()
	}
	b.turn = turn
}

// Turn returns the latest applied snapshot.
func (b *AnswerBlock) Turn() parley.Turn {
	return b.turn
}

// Collapsible reports whether the block has a source list to toggle.
func (b *AnswerBlock) Collapsible() bool {
	return len(b.turn.Sources) > 0
}

func (b *AnswerBlock) Update(msg tea.Msg) (Block, tea.Cmd) {
	if _, ok := msg.(ToggleMsg); ok {
		b.sourcesCollapsed = !b.sourcesCollapsed
	}
	return b, nil
}

func (b *AnswerBlock) View(width int) string {
	var sections []string
	if line := b.routingLine(); line != "" {
		sections = append(sections, line)
	}
	if body := b.renderContent(width); body != "" {
		sections = append(sections, body)
	}
	if list := b.renderSources(width); list != "" {
		sections = append(sections, list)
	}
	if footer := b.footer(); footer != "" {
		sections = append(sections, footer)
	}
	return strings.Join(sections, "\n")
}

func (b *AnswerBlock) routingLine() string {
	r := b.turn.Routing
	if r == nil {
		return ""
	}
	return b.styles.Routing.Render(fmt.Sprintf("via %s (%.0f%%)", r.Route, r.Confidence*100))
}

func (b *AnswerBlock) renderContent(width int) string {
	finalizedRendered := b.renderFinalized(width)
	trailing := b.trailingRaw()
	if hasUnclosedFence(trailing) {
		// Close fence only for rendering so partial streams display safely.
		trailing += "\n```"
	}
	// Empty trailing text (content ends exactly at "\n\n") should not be
	// passed to the renderer: some renderers return whitespace for empty
	// input, which would append spurious blank lines after finalized content.
	if trailing == "" {
		return finalizedRendered
	}
	trailingRendered := markdown.Render(trailing, width, b.theme)
	// Whitespace-only trailing input (e.g. " ") may render to whitespace;
	// treat it the same as empty to avoid spurious blank lines.
	if strings.TrimSpace(trailingRendered) == "" {
		return finalizedRendered
	}
	switch finalizedRendered {
	case "":
		return trailingRendered
	default:
		// Trim trailing/leading whitespace from independently-rendered
		// fragments to avoid a visible seam (extra blank lines) at the
		// finalization boundary. The paragraph break is reconstructed
		// with a single "\n\n" to match full-document render output.
		return strings.TrimRight(finalizedRendered, "\n") + "\n\n" + strings.TrimLeft(trailingRendered, "\n")
	}
}

// renderSources lists the turn's sources, numbered to match inline [n]
// citation markers. Long titles and URLs are truncated to the block width.
func (b *AnswerBlock) renderSources(width int) string {
	sources := b.turn.Sources
	if len(sources) == 0 {
		return ""
	}
	header := b.styles.Citation.Render(fmt.Sprintf("Sources (%d)", len(sources)))
	if b.sourcesCollapsed {
		return header + b.styles.Muted.Render(" [collapsed]")
	}
	var sb strings.Builder
	sb.WriteString(header)
	for i, src := range sources {
		line := fmt.Sprintf("  [%d] %s", i+1, sourceLabel(src))
		if width > 1 {
			line = runewidth.Truncate(line, width, "…")
		}
		sb.WriteString("\n")
		sb.WriteString(b.styles.Muted.Render(line))
	}
	return sb.String()
}

func sourceLabel(src parley.Source) string {
	switch {
	case src.Title != "" && src.URL != "":
		return src.Title + " · " + src.URL
	case src.Title != "":
		return src.Title
	default:
		return src.URL
	}
}

// footer renders the settled turn's outcome: stats for a completed turn, the
// failure message for a failed one, a note for a cancelled one.
func (b *AnswerBlock) footer() string {
	switch b.turn.Status {
	case parley.StatusCompleted:
		return b.styles.Muted.Render(statsLine(b.turn.Stats))
	case parley.StatusFailed:
		return b.styles.Error.Render("Error: " + b.turn.ErrMessage)
	case parley.StatusCancelled:
		return b.styles.Muted.Render("Cancelled")
	}
	return ""
}

func statsLine(s parley.Stats) string {
	line := fmt.Sprintf("%.1fs · %d words · %d w/s", s.Elapsed.Seconds(), s.Words, s.WordsPerSecond)
	if s.TokensUsed > 0 {
		line += fmt.Sprintf(" · %d tokens", s.TokensUsed)
	}
	return line
}

// promoteFinalized scans for the last "\n\n" boundary that doesn't fall inside
// an unclosed fenced code block. Splitting inside a fence would produce a
// finalized fragment with an unclosed opening fence and a trailing fragment
// starting mid-code-block, causing transient rendering glitches.
func (b *AnswerBlock) promoteFinalized() {
	raw := b.content.String()
	// Walk backwards through all "\n\n" positions to find the last one
	// where the prefix has all fences closed.
	for end := len(raw); ; {
		idx := strings.LastIndex(raw[:end], "\n\n")
		if idx <= 0 {
			return
		}
		candidate := raw[:idx]
		if !hasUnclosedFence(candidate) {
			if candidate != b.finalizedRaw {
				b.finalizedRaw = candidate
				// Width-sensitive cache must be invalidated when finalized text grows.
				clear(b.finalizedByWidth)
			}
			return
		}
		end = idx
	}
}

func (b *AnswerBlock) renderFinalized(width int) string {
	if width <= 0 || b.finalizedRaw == "" {
		return ""
	}
	if cached, ok := b.finalizedByWidth[width]; ok {
		return cached
	}
	rendered := markdown.Render(b.finalizedRaw, width, b.theme)
	b.finalizedByWidth[width] = rendered
	return rendered
}

func (b *AnswerBlock) trailingRaw() string {
	raw := b.content.String()
	if b.finalizedRaw == "" {
		return raw
	}
	prefix := b.finalizedRaw + "\n\n"
	return strings.TrimPrefix(raw, prefix)
}

// hasUnclosedFence detects whether s contains an unclosed fenced code block
// by checking for an odd number of "```" occurrences. This uses a simple
// substring count which does not distinguish triple backticks inside inline
// code spans (e.g., `foo ``` bar`). In practice streamed answers rarely
// contain literal triple backticks in inline code, so this is acceptable.
func hasUnclosedFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
