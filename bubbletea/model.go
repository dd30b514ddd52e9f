package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/parleyhq/parley"
)

var _ tea.Model = Model{}

// askResult carries the settled turn out of the ask goroutine.
type askResult struct {
	turn parley.Turn
	err  error
}

// Model is the Bubble Tea model for the parley TUI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	run          AskFunc
	save         SaveFunc
	conversation *parley.Conversation
	theme        parley.Theme
	styles       Styles

	blocks     []Block
	blockFocus int // index of focused collapsible block (-1 = none)

	// answer is the block receiving updates for the in-flight turn.
	answer       *AnswerBlock
	pendingInput string

	running  bool
	cancel   context.CancelFunc
	updateCh chan parley.Turn
	doneCh   chan askResult
	err      error
	ready    bool
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithSave sets the function used to persist the conversation after each
// settled turn. Nil disables persistence.
func WithSave(save SaveFunc) ModelOption {
	return func(m *Model) { m.save = save }
}

// New creates a TUI Model over the given ask function and conversation.
func New(run AskFunc, conversation *parley.Conversation, theme parley.Theme, opts ...ModelOption) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask a question..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	m := Model{
		Input:        ti,
		run:          run,
		conversation: conversation,
		theme:        theme,
		styles:       NewStyles(theme),
		blockFocus:   -1,
	}
	for _, o := range opts {
		o(&m)
	}
	return m
}

// Running returns whether a turn is currently streaming.
func (m Model) Running() bool { return m.running }

// Err returns the last error, if any.
func (m Model) Err() error { return m.err }

// SetRunning is a test helper that puts the model in a running state.
func SetRunning(m Model) (Model, tea.Cmd) {
	m.running = true
	return m, nil
}

// SetRunningWithCancel is a test helper that puts the model in a running state
// with a cancel function.
func SetRunningWithCancel(m Model, cancel func()) (Model, tea.Cmd) {
	m.running = true
	m.cancel = cancel
	return m, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.handleWindowSize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TurnUpdateMsg:
		if m.answer != nil {
			m.answer.Advance(msg.Turn)
		}
		m.Viewport.SetContent(m.renderContent())
		m.Viewport.GotoBottom()
		if m.updateCh != nil {
			return m, listenForUpdate(m.updateCh, m.doneCh)
		}
		return m, nil

	case TurnDoneMsg:
		return m.handleTurnDone(msg)

	case SavedMsg:
		if msg.Err != nil {
			m.err = fmt.Errorf("save history: %w", msg.Err)
		}
		return m, nil
	}

	// Pass remaining messages to sub-components.
	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := msg.Height - inputH - statusHeight - borderHeight

	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m = m.renderHistory()
		m.Viewport.SetContent(m.renderContent())
		m.Viewport.GotoBottom()
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}

	m.Input.Width = msg.Width
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEsc:
		if m.running && m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)

	case tea.KeyTab:
		if !m.running && m.blockFocus >= 0 {
			block, cmd := m.blocks[m.blockFocus].Update(ToggleMsg{})
			m.blocks[m.blockFocus] = block
			m.Viewport.SetContent(m.renderContent())
			return m, cmd
		}
		return m, nil

	case tea.KeyShiftTab:
		if !m.running {
			m = m.cycleFocusPrev()
			m.Viewport.SetContent(m.renderContent())
		}
		return m, nil
	}

	// When idle, pass keys to both the input (for typing) and viewport
	// (for scrolling). Only forward non-character keys to viewport to avoid
	// conflicts (e.g. 'j'/'k' are viewport scroll AND text characters).
	if !m.running {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.err = nil
	m.pendingInput = text

	m.blocks = append(m.blocks, NewQuestionBlock(text, m.styles))
	m.answer = NewAnswerBlock(m.theme, m.styles)
	m.blocks = append(m.blocks, m.answer)
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.updateCh = make(chan parley.Turn, 256)
	m.doneCh = make(chan askResult, 1)
	m.running = true

	m.Input.Blur()

	return m, tea.Batch(
		startAsk(m.run, ctx, text, m.updateCh, m.doneCh),
		listenForUpdate(m.updateCh, m.doneCh),
	)
}

func (m Model) handleTurnDone(msg TurnDoneMsg) (tea.Model, tea.Cmd) {
	m.running = false
	if m.cancel != nil {
		// Release the turn's context so a late onUpdate callback blocked on
		// a full update channel can unwind.
		m.cancel()
	}
	m.cancel = nil
	m.updateCh = nil
	m.doneCh = nil

	var cmds []tea.Cmd
	if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
		m.err = msg.Err
		// The answer block never got content; show the failure in its place.
		if n := len(m.blocks); n > 0 && m.blocks[n-1] == Block(m.answer) {
			m.blocks[n-1] = NewErrorBlock(msg.Err, m.styles)
		}
	}
	if msg.Err == nil && msg.Turn.Status.Terminal() {
		if m.answer != nil {
			m.answer.Advance(msg.Turn)
		}
		m.conversation.Append(m.pendingInput, msg.Turn, time.Now())
		if m.save != nil {
			cmds = append(cmds, saveConversation(m.save, *m.conversation))
		}
	}
	m.answer = nil
	m.pendingInput = ""

	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
	m = m.updateBlockFocus()
	cmds = append(cmds, m.Input.Focus())
	return m, tea.Batch(cmds...)
}

// renderHistory creates blocks from the conversation loaded at startup.
func (m Model) renderHistory() Model {
	for _, entry := range m.conversation.Entries {
		m.blocks = append(m.blocks, NewQuestionBlock(entry.Input, m.styles))
		b := NewAnswerBlock(m.theme, m.styles)
		b.Advance(entry.Turn)
		m.blocks = append(m.blocks, b)
	}
	m = m.updateBlockFocus()
	return m
}

func (m Model) renderContent() string {
	if len(m.blocks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

// updateBlockFocus scans backwards to find the last collapsible block.
// Only the focused block responds to Tab. ShiftTab cycles to the previous
// collapsible block.
func (m Model) updateBlockFocus() Model {
	m.blockFocus = -1
	for i := len(m.blocks) - 1; i >= 0; i-- {
		if b, ok := m.blocks[i].(*AnswerBlock); ok && b.Collapsible() {
			m.blockFocus = i
			return m
		}
	}
	return m
}

// cycleFocusPrev moves blockFocus to the previous collapsible block, wrapping around.
func (m Model) cycleFocusPrev() Model {
	if len(m.blocks) == 0 {
		return m
	}
	start := m.blockFocus - 1
	if start < 0 {
		start = len(m.blocks) - 1
	}
	for i := range len(m.blocks) {
		idx := (start - i + len(m.blocks)) % len(m.blocks)
		if b, ok := m.blocks[idx].(*AnswerBlock); ok && b.Collapsible() {
			m.blockFocus = idx
			return m
		}
	}
	m.blockFocus = -1
	return m
}

func (m Model) statusLine() string {
	if m.err != nil {
		return m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if m.running {
		return m.styles.Muted.Render("Streaming... Esc to cancel")
	}
	return m.styles.Muted.Render("Enter to send, Tab to toggle sources, Ctrl+C to quit")
}

// startAsk runs the streaming turn in a goroutine and signals completion
// through doneCh. updateCh is never closed: a cancellation notice can invoke
// onUpdate from another goroutine after run returns, and a send racing a
// close would panic. Stragglers land in the buffer or fall through on
// ctx.Done once the turn's context is released.
func startAsk(run AskFunc, ctx context.Context, input string, updateCh chan<- parley.Turn, doneCh chan<- askResult) tea.Cmd {
	return func() tea.Msg {
		turn, err := run(ctx, input, func(t parley.Turn) {
			select {
			case updateCh <- t:
			case <-ctx.Done():
			}
		})
		doneCh <- askResult{turn: turn, err: err}
		return nil
	}
}

// listenForUpdate waits for the next snapshot or the final result. The final
// turn state rides TurnDoneMsg, so snapshots still buffered when the result
// arrives are safe to leave behind.
func listenForUpdate(ch <-chan parley.Turn, doneCh <-chan askResult) tea.Cmd {
	return func() tea.Msg {
		select {
		case turn := <-ch:
			return TurnUpdateMsg{Turn: turn}
		case res := <-doneCh:
			return TurnDoneMsg{Turn: res.turn, Err: res.err}
		}
	}
}

func saveConversation(save SaveFunc, c parley.Conversation) tea.Cmd {
	return func() tea.Msg {
		return SavedMsg{Err: save(c)}
	}
}
