package agentapi

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/parleyhq/parley"
)

// Wire payload shapes, keyed by frame kind.

type wireStart struct {
	TurnID    string `json:"turn_id"`
	SessionID string `json:"session_id"`
}

type wireChunk struct {
	Text string `json:"text"`
}

type wireSource struct {
	Title          string `json:"title"`
	URL            string `json:"url"`
	DataSourceType string `json:"data_source_type"`
}

type wireSources struct {
	Sources []wireSource `json:"sources"`
}

type wireCitation struct {
	Source wireSource `json:"source"`
}

type wireRouting struct {
	Route      string  `json:"route"`
	Confidence float64 `json:"confidence"`
}

type wireEnd struct {
	Metadata map[string]any `json:"metadata"`
}

type wireError struct {
	Message string `json:"message"`
}

// decodeFrame maps a frame to semantic events.
//
// A malformed payload is logged and the frame skipped; it is never fatal to
// the stream. Unknown kinds decode to [parley.UnknownEvent] and are forwarded so
// the state machine can decide what to do with them. A metadata frame
// carrying a routing decision yields two events, metadata first.
func decodeFrame(f frame, logger *log.Logger) []parley.Event {
	payload := f.payload
	// Kind-only frames (e.g. "end" with no data lines) are legal.
	if payload == "" {
		payload = "{}"
	}

	switch f.kind {
	case "start":
		var w wireStart
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return dropFrame(f, logger, err)
		}
		return []parley.Event{parley.StartEvent{TurnID: w.TurnID, SessionID: w.SessionID}}

	case "chunk":
		var w wireChunk
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return dropFrame(f, logger, err)
		}
		return []parley.Event{parley.ChunkEvent{Text: w.Text}}

	case defaultKind:
		// Older service builds emitted bare text under the default kind;
		// fall back to the raw payload when it is not a chunk object.
		var w wireChunk
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return []parley.Event{parley.ChunkEvent{Text: f.payload}}
		}
		return []parley.Event{parley.ChunkEvent{Text: w.Text}}

	case "sources":
		return decodeSources(f, payload, logger)

	case "citation":
		var w wireCitation
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return dropFrame(f, logger, err)
		}
		return []parley.Event{parley.CitationEvent{Source: w.Source.domain()}}

	case "metadata":
		return decodeMetadata(f, payload, logger)

	case "end":
		var w wireEnd
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return dropFrame(f, logger, err)
		}
		return []parley.Event{parley.EndEvent{Metadata: w.Metadata}}

	case "error":
		var w wireError
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return dropFrame(f, logger, err)
		}
		return []parley.Event{parley.ErrorEvent{Message: w.Message}}

	default:
		return []parley.Event{parley.UnknownEvent{Kind: f.kind, Payload: f.payload}}
	}
}

// decodeSources accepts both the object form {"sources":[...]} and the bare
// array form [...] that earlier service builds emitted.
func decodeSources(f frame, payload string, logger *log.Logger) []parley.Event {
	var list []wireSource
	if strings.HasPrefix(strings.TrimSpace(payload), "[") {
		if err := json.Unmarshal([]byte(payload), &list); err != nil {
			return dropFrame(f, logger, err)
		}
	} else {
		var w wireSources
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return dropFrame(f, logger, err)
		}
		list = w.Sources
	}
	sources := make([]parley.Source, len(list))
	for i, s := range list {
		sources[i] = s.domain()
	}
	return []parley.Event{parley.SourcesEvent{Sources: sources}}
}

// decodeMetadata splits the reserved "routing" key out of the payload: the
// remaining fields merge as metadata, and the routing decision follows as
// its own event. The frame still applies in arrival order.
func decodeMetadata(f frame, payload string, logger *log.Logger) []parley.Event {
	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return dropFrame(f, logger, err)
	}

	var routing struct {
		Routing *wireRouting `json:"routing"`
	}
	// The payload already parsed as an object; a second pass for the typed
	// routing shape can only fail on a malformed routing value.
	if err := json.Unmarshal([]byte(payload), &routing); err != nil || routing.Routing == nil {
		if err != nil {
			logger.Warn("ignoring malformed routing metadata", "err", err)
		}
		return []parley.Event{parley.MetadataEvent{Fields: fields}}
	}

	delete(fields, "routing")
	return []parley.Event{
		parley.MetadataEvent{Fields: fields},
		parley.RoutingEvent{Route: routing.Routing.Route, Confidence: routing.Routing.Confidence},
	}
}

func dropFrame(f frame, logger *log.Logger, err error) []parley.Event {
	logger.Warn("dropping malformed frame", "kind", f.kind, "err", err)
	return nil
}

func (w wireSource) domain() parley.Source {
	return parley.Source{
		Title:          w.Title,
		URL:            w.URL,
		DataSourceType: w.DataSourceType,
	}
}
