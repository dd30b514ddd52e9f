package parley

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxInputLen caps user input length in runes. Mirrors the limit the agent
// service enforces server-side so oversized input fails fast.
const MaxInputLen = 20000

// Request carries one user turn to the backend.
// SessionID is empty on the first turn of a conversation; the backend
// assigns one and returns it in the start frame.
type Request struct {
	Input     string
	SessionID string
	// Slot is the conversation slot the turn belongs to. At most one turn
	// may be streaming per slot at a time. Empty means the default slot.
	Slot string
}

// Validate checks universal constraints on Request.
// The backend applies additional server-side validation.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return fmt.Errorf("input must not be empty: %w", ErrValidation)
	}
	if n := utf8.RuneCountInString(r.Input); n > MaxInputLen {
		return fmt.Errorf("input length %d exceeds %d: %w", n, MaxInputLen, ErrValidation)
	}
	return nil
}
