package bubbletea_test

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley"
	bt "github.com/parleyhq/parley/bubbletea"
)

func stripANSI(s string) string {
	re := regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	return re.ReplaceAllString(s, "")
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, run bt.AskFunc, opts ...bt.ModelOption) bt.Model {
	t.Helper()
	conv := parley.NewConversation(testTime())
	m := bt.New(run, conv, parley.DefaultTheme(), opts...)
	return updateModel(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// nopAsk is an AskFunc that settles immediately with an empty completed turn.
func nopAsk(_ context.Context, _ string, _ func(parley.Turn)) (parley.Turn, error) {
	return parley.Turn{Status: parley.StatusCompleted}, nil
}

func testTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}
