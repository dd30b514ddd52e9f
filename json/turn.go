package json

import (
	"fmt"
	"time"

	"github.com/parleyhq/parley"
)

// turnDTO is the JSON representation of a settled turn.
type turnDTO struct {
	ID        string         `json:"id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Status    string         `json:"status"`
	Content   string         `json:"content"`
	Sources   []sourceDTO    `json:"sources,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Routing   *routingDTO    `json:"routing,omitempty"`
	Error     string         `json:"error,omitempty"`
	Stats     statsDTO       `json:"stats"`
}

type sourceDTO struct {
	Title          string `json:"title,omitempty"`
	URL            string `json:"url,omitempty"`
	DataSourceType string `json:"data_source_type,omitempty"`
}

type routingDTO struct {
	Route      string  `json:"route"`
	Confidence float64 `json:"confidence"`
}

type statsDTO struct {
	StartedAt      time.Time `json:"started_at,omitempty"`
	ElapsedMS      int64     `json:"elapsed_ms,omitempty"`
	Characters     int       `json:"characters,omitempty"`
	Words          int       `json:"words,omitempty"`
	WordsPerSecond int       `json:"words_per_second,omitempty"`
	TokensUsed     int       `json:"tokens_used,omitempty"`
}

func marshalTurn(t parley.Turn) (turnDTO, error) {
	if err := validStatus(t.Status); err != nil {
		return turnDTO{}, err
	}
	dto := turnDTO{
		ID:        t.ID,
		SessionID: t.SessionID,
		Status:    string(t.Status),
		Content:   t.Content,
		Metadata:  t.Metadata,
		Error:     t.ErrMessage,
		Stats: statsDTO{
			StartedAt:      t.Stats.StartedAt,
			ElapsedMS:      t.Stats.Elapsed.Milliseconds(),
			Characters:     t.Stats.Characters,
			Words:          t.Stats.Words,
			WordsPerSecond: t.Stats.WordsPerSecond,
			TokensUsed:     t.Stats.TokensUsed,
		},
	}
	for _, s := range t.Sources {
		dto.Sources = append(dto.Sources, sourceDTO(s))
	}
	if t.Routing != nil {
		dto.Routing = &routingDTO{Route: t.Routing.Route, Confidence: t.Routing.Confidence}
	}
	return dto, nil
}

func unmarshalTurn(dto turnDTO) (parley.Turn, error) {
	status := parley.Status(dto.Status)
	if err := validStatus(status); err != nil {
		return parley.Turn{}, err
	}
	t := parley.Turn{
		ID:         dto.ID,
		SessionID:  dto.SessionID,
		Status:     status,
		Content:    dto.Content,
		Metadata:   dto.Metadata,
		ErrMessage: dto.Error,
		Stats: parley.Stats{
			StartedAt:      dto.Stats.StartedAt,
			Elapsed:        time.Duration(dto.Stats.ElapsedMS) * time.Millisecond,
			Characters:     dto.Stats.Characters,
			Words:          dto.Stats.Words,
			WordsPerSecond: dto.Stats.WordsPerSecond,
			TokensUsed:     dto.Stats.TokensUsed,
		},
	}
	for _, s := range dto.Sources {
		t.Sources = append(t.Sources, parley.Source(s))
	}
	if dto.Routing != nil {
		t.Routing = &parley.RoutingInfo{Route: dto.Routing.Route, Confidence: dto.Routing.Confidence}
	}
	return t, nil
}

// validStatus accepts only terminal statuses. Conversations persist settled
// turns, so a pending or streaming status in a file is corruption and must
// not come back as a live turn.
func validStatus(s parley.Status) error {
	switch s {
	case parley.StatusCompleted, parley.StatusFailed, parley.StatusCancelled:
		return nil
	}
	return fmt.Errorf("non-terminal turn status: %q", s)
}
