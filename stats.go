package parley

import (
	"math"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Stats are derived metrics over a turn's content. They are recomputed from
// scratch on every delta and finalized at the terminal transition; nothing
// here is independently mutated.
type Stats struct {
	StartedAt      time.Time
	Elapsed        time.Duration
	Characters     int
	Words          int
	WordsPerSecond int
	// TokensUsed comes from backend-reported metadata when present, else 0.
	// The client never estimates tokens itself.
	TokensUsed int
}

// ComputeStats derives Stats from content and wall-clock time. Pure function
// of its inputs; now at or before startedAt yields a zero rate rather than a
// division by zero or a negative elapsed time.
func ComputeStats(content string, startedAt, now time.Time, tokens int) Stats {
	s := Stats{
		StartedAt:  startedAt,
		Characters: utf8.RuneCountInString(content),
		Words:      WordCount(content),
		TokensUsed: tokens,
	}
	if !startedAt.IsZero() && now.After(startedAt) {
		s.Elapsed = now.Sub(startedAt)
	}
	if ms := s.Elapsed.Milliseconds(); ms > 0 {
		s.WordsPerSecond = int(math.Round(float64(s.Words) / float64(ms) * 1000))
	}
	return s
}

// WordCount counts Unicode words in s using UAX #29 segmentation.
// Segments without a letter or digit (whitespace, bare punctuation) are not
// words.
func WordCount(s string) int {
	var count int
	state := -1
	var word string
	for len(s) > 0 {
		word, s, state = uniseg.FirstWordInString(s, state)
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsNumber(r) {
				count++
				break
			}
		}
	}
	return count
}
