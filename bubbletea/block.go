package bubbletea

import tea "github.com/charmbracelet/bubbletea"

// Block is one rendered segment of the transcript: a question, an answer in
// progress, or an error. View takes the width so the root model owns layout
// and blocks render deterministically in tests.
type Block interface {
	Update(tea.Msg) (Block, tea.Cmd)
	View(width int) string
}

// ToggleMsg tells a collapsible block to toggle its collapsed state. The
// root model sends it to the focused block on the toggle key.
type ToggleMsg struct{}
