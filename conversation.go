package parley

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the caller-retained history for one conversation slot.
// The protocol core never destroys turns; retention is the caller's call.
type Conversation struct {
	ID        string
	SessionID string
	Entries   []Entry
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry pairs one user input with the finalized turn it produced.
type Entry struct {
	Input     string
	Turn      Turn
	Timestamp time.Time
}

// NewConversation allocates an empty conversation with a fresh client-side ID.
// The backend session ID is adopted from the first turn that carries one.
func NewConversation(now time.Time) *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append records a settled turn. The backend session ID, once seen, sticks
// for the conversation's lifetime.
func (c *Conversation) Append(input string, turn Turn, now time.Time) {
	c.Entries = append(c.Entries, Entry{Input: input, Turn: turn, Timestamp: now})
	if c.SessionID == "" && turn.SessionID != "" {
		c.SessionID = turn.SessionID
	}
	c.UpdatedAt = now
}
