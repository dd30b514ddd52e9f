package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ Block = (*QuestionBlock)(nil)

// QuestionBlock renders the question the user submitted, prefixed "> ".
type QuestionBlock struct {
	text   string
	styles Styles
}

func NewQuestionBlock(text string, styles Styles) *QuestionBlock {
	return &QuestionBlock{text: text, styles: styles}
}

func (b *QuestionBlock) Update(tea.Msg) (Block, tea.Cmd) {
	return b, nil
}

func (b *QuestionBlock) View(width int) string {
	prompt := b.styles.UserMsg.Render("> ")
	return lipgloss.NewStyle().Width(width).Render(prompt + b.text)
}
