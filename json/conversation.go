// Package json persists conversations as versioned JSON files.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parleyhq/parley"
)

// envelope is the v1 wire format for a persisted conversation.
type envelope struct {
	Version   int        `json:"version"`
	ID        string     `json:"id"`
	SessionID string     `json:"session_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Entries   []entryDTO `json:"entries"`
}

type entryDTO struct {
	Input     string    `json:"input"`
	Timestamp time.Time `json:"timestamp"`
	Turn      turnDTO   `json:"turn"`
}

// MarshalConversation serializes a Conversation to JSON in v1 envelope format.
func MarshalConversation(c parley.Conversation) ([]byte, error) {
	env := envelope{
		Version:   1,
		ID:        c.ID,
		SessionID: c.SessionID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Entries:   make([]entryDTO, len(c.Entries)),
	}
	for i, e := range c.Entries {
		dto, err := marshalTurn(e.Turn)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		env.Entries[i] = entryDTO{Input: e.Input, Timestamp: e.Timestamp, Turn: dto}
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalConversation deserializes a Conversation from JSON in v1 envelope
// format.
func UnmarshalConversation(data []byte) (parley.Conversation, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return parley.Conversation{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return parley.Conversation{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	entries := make([]parley.Entry, len(env.Entries))
	for i, dto := range env.Entries {
		turn, err := unmarshalTurn(dto.Turn)
		if err != nil {
			return parley.Conversation{}, fmt.Errorf("entry %d: %w", i, err)
		}
		entries[i] = parley.Entry{Input: dto.Input, Timestamp: dto.Timestamp, Turn: turn}
	}
	return parley.Conversation{
		ID:        env.ID,
		SessionID: env.SessionID,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
		Entries:   entries,
	}, nil
}

// Save writes a Conversation to a JSON file, creating parent directories as
// needed. The write goes through a temp file and rename so a crash cannot
// leave a torn history behind.
func Save(path string, c parley.Conversation) error {
	data, err := MarshalConversation(c)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a Conversation from a JSON file.
func Load(path string) (parley.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return parley.Conversation{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalConversation(data)
}
