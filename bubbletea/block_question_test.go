package bubbletea_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parleyhq/parley"
	bt "github.com/parleyhq/parley/bubbletea"
)

func TestQuestionBlock_View(t *testing.T) {
	t.Parallel()
	styles := bt.NewStyles(parley.DefaultTheme())
	b := bt.NewQuestionBlock("what is the refund policy?", styles)

	view := stripANSI(b.View(80))
	assert.Contains(t, view, "> what is the refund policy?")
}

func TestQuestionBlock_UpdateIgnoresMessages(t *testing.T) {
	t.Parallel()
	styles := bt.NewStyles(parley.DefaultTheme())
	b := bt.NewQuestionBlock("hello", styles)

	updated, cmd := b.Update(bt.ToggleMsg{})
	assert.Equal(t, b, updated)
	assert.Nil(t, cmd)
}

func TestQuestionBlock_WrapsToWidth(t *testing.T) {
	t.Parallel()
	styles := bt.NewStyles(parley.DefaultTheme())
	long := "word one two three four five six seven eight nine ten eleven twelve"
	b := bt.NewQuestionBlock(long, styles)

	view := b.View(20)
	assert.Greater(t, len(splitLines(view)), 1)
}
