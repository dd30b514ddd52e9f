// Package bubbletea provides a Bubble Tea TUI for the parley client.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/parleyhq/parley"
)

// AskFunc starts a streaming turn for one user input. onUpdate receives a
// snapshot after every state change. The function blocks until the turn
// settles and returns its final state.
type AskFunc func(ctx context.Context, input string, onUpdate func(parley.Turn)) (parley.Turn, error)

// SaveFunc persists the conversation. Called after every settled turn.
type SaveFunc func(parley.Conversation) error

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown — when cancelled, the
// program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// TurnUpdateMsg carries a turn snapshot for delivery to the Bubble Tea model.
type TurnUpdateMsg struct {
	Turn parley.Turn
}

// TurnDoneMsg signals that the streaming turn has settled.
type TurnDoneMsg struct {
	Turn parley.Turn
	Err  error
}

// SavedMsg reports the result of persisting the conversation.
type SavedMsg struct {
	Err error
}
