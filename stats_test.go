package parley_test

import (
	"testing"
	"time"

	"github.com/parleyhq/parley"
	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	t.Parallel()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := parley.ComputeStats("hello world", started, started.Add(2*time.Second), 42)

	assert.Equal(t, started, s.StartedAt)
	assert.Equal(t, 2*time.Second, s.Elapsed)
	assert.Equal(t, 11, s.Characters)
	assert.Equal(t, 2, s.Words)
	assert.Equal(t, 1, s.WordsPerSecond)
	assert.Equal(t, 42, s.TokensUsed)
}

func TestComputeStats_ZeroElapsedGuard(t *testing.T) {
	t.Parallel()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := parley.ComputeStats("hello world", started, started, 0)

	assert.Equal(t, time.Duration(0), s.Elapsed)
	assert.Equal(t, 0, s.WordsPerSecond, "zero elapsed must not divide by zero")
}

func TestComputeStats_ZeroStartedAt(t *testing.T) {
	t.Parallel()
	s := parley.ComputeStats("hello", time.Time{}, time.Now(), 0)
	assert.Equal(t, time.Duration(0), s.Elapsed, "unstarted turn has no elapsed time")
	assert.Equal(t, 0, s.WordsPerSecond)
}

func TestComputeStats_CountsRunesNotBytes(t *testing.T) {
	t.Parallel()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := parley.ComputeStats("héllo wörld", started, started.Add(time.Second), 0)

	assert.Equal(t, 11, s.Characters)
}

func TestWordCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"single", "hello", 1},
		{"sentence", "the quick brown fox", 4},
		{"punctuation only", "... --- !!!", 0},
		{"hyphenated and apostrophe", "it's a well-known fact", 5},
		{"unicode", "héllo wörld", 2},
		{"newlines", "one\ntwo\n\nthree", 3},
		{"digits", "version 2 of 3", 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, parley.WordCount(tc.input))
		})
	}
}
