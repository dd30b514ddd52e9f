package bubbletea

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ Block = (*ErrorBlock)(nil)

// ErrorBlock replaces an answer that never produced one: the request failed
// before any turn state existed. The message is formatted once at
// construction.
type ErrorBlock struct {
	message string
	styles  Styles
}

func NewErrorBlock(err error, styles Styles) *ErrorBlock {
	return &ErrorBlock{message: fmt.Sprintf("Error: %v", err), styles: styles}
}

func (b *ErrorBlock) Update(tea.Msg) (Block, tea.Cmd) {
	return b, nil
}

func (b *ErrorBlock) View(width int) string {
	return lipgloss.NewStyle().Width(width).Render(b.styles.Error.Render(b.message))
}
