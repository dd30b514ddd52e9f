package parley

import "time"

// Status is the lifecycle state of a Turn.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// RoutingInfo is the backend's routing decision for a turn.
type RoutingInfo struct {
	Route      string
	Confidence float64
}

// Turn is the full client-side state of one request/response exchange.
//
// A Turn is mutated exclusively by Apply and Cancel, called from a single
// dispatch goroutine. Content grows append-only while streaming and every
// field freezes at the first terminal transition. Callers read copies via
// Snapshot.
type Turn struct {
	ID        string
	SessionID string
	Status    Status
	Content   string
	Sources   []Source
	Metadata  map[string]any
	Routing   *RoutingInfo
	// ErrMessage is set when Status is StatusFailed. Content accumulated
	// before the failure is preserved, not discarded.
	ErrMessage string
	Stats      Stats

	// control holds chunk payloads that are protocol plumbing rather than
	// user-visible text. Read-only after construction.
	control map[string]struct{}
}

// TurnOption configures a new Turn.
type TurnOption func(*Turn)

// WithControlChunks sets the chunk payloads recognized as non-content
// markers and dropped without appending. Zero-length chunks are always
// dropped. The exact sentinel set is backend policy, so it is configuration
// rather than a hard-coded literal.
func WithControlChunks(seqs ...string) TurnOption {
	return func(t *Turn) {
		for _, s := range seqs {
			t.control[s] = struct{}{}
		}
	}
}

// NewTurn creates a Turn in StatusPending.
func NewTurn(opts ...TurnOption) *Turn {
	t := &Turn{
		Status:  StatusPending,
		control: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Snapshot returns a copy safe to hand to other goroutines. Sources and
// Metadata are copied so later mutation of the live turn cannot race reads.
func (t *Turn) Snapshot() Turn {
	cp := *t
	if t.Sources != nil {
		cp.Sources = make([]Source, len(t.Sources))
		copy(cp.Sources, t.Sources)
	}
	if t.Metadata != nil {
		cp.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	if t.Routing != nil {
		r := *t.Routing
		cp.Routing = &r
	}
	return cp
}

// Apply advances the turn with one decoded event. It reports whether the
// turn changed. Events received in a terminal state are discarded, not
// errors: frames may keep arriving after cancellation or completion.
func (t *Turn) Apply(evt Event, now time.Time) bool {
	if t.Status.Terminal() {
		return false
	}

	switch e := evt.(type) {
	case StartEvent:
		return t.applyStart(e, now)
	case ChunkEvent:
		return t.applyChunk(e, now)
	case SourcesEvent:
		if t.Status != StatusStreaming {
			return false
		}
		t.Sources = make([]Source, len(e.Sources))
		copy(t.Sources, e.Sources)
		return true
	case CitationEvent:
		if t.Status != StatusStreaming {
			return false
		}
		t.Sources = mergeSource(t.Sources, e.Source)
		return true
	case MetadataEvent:
		if t.Status != StatusStreaming {
			return false
		}
		t.mergeMetadata(e.Fields, now)
		return true
	case RoutingEvent:
		if t.Status != StatusStreaming || t.Routing != nil {
			return false
		}
		t.Routing = &RoutingInfo{Route: e.Route, Confidence: e.Confidence}
		return true
	case EndEvent:
		if t.Status != StatusStreaming {
			return false
		}
		t.mergeMetadata(e.Metadata, now)
		t.Status = StatusCompleted
		t.recompute(now)
		return true
	case ErrorEvent:
		t.Status = StatusFailed
		t.ErrMessage = e.Message
		t.recompute(now)
		return true
	case UnknownEvent:
		return false
	}
	return false
}

// Cancel forces the turn to StatusCancelled unless it already reached a
// terminal state. Distinct from StatusFailed so callers can render
// "stopped by user" rather than an error.
func (t *Turn) Cancel(now time.Time) bool {
	if t.Status.Terminal() {
		return false
	}
	t.Status = StatusCancelled
	t.recompute(now)
	return true
}

// applyStart transitions Pending to Streaming. A duplicate start frame is a
// no-op: IDs and Stats.StartedAt are recorded exactly once.
func (t *Turn) applyStart(e StartEvent, now time.Time) bool {
	if t.Status != StatusPending {
		return false
	}
	t.ID = e.TurnID
	t.SessionID = e.SessionID
	t.Status = StatusStreaming
	t.Stats.StartedAt = now
	return true
}

func (t *Turn) applyChunk(e ChunkEvent, now time.Time) bool {
	if t.Status != StatusStreaming {
		return false
	}
	if t.isControl(e.Text) {
		return false
	}
	t.Content += e.Text
	t.recompute(now)
	return true
}

// isControl reports whether text is a non-content marker. Zero-length
// payloads are always control; the rest of the set is configured per
// backend via WithControlChunks.
func (t *Turn) isControl(text string) bool {
	if text == "" {
		return true
	}
	_, ok := t.control[text]
	return ok
}

func (t *Turn) mergeMetadata(fields map[string]any, now time.Time) {
	if len(fields) == 0 {
		return
	}
	if t.Metadata == nil {
		t.Metadata = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		t.Metadata[k] = v
	}
	t.recompute(now)
}

func (t *Turn) recompute(now time.Time) {
	t.Stats = ComputeStats(t.Content, t.Stats.StartedAt, now, t.tokensUsed())
}

// tokensUsed reads the backend-reported token count from metadata. JSON
// numbers arrive as float64; integers may appear after persistence round
// trips.
func (t *Turn) tokensUsed() int {
	v, ok := t.Metadata["tokens_used"]
	if !ok {
		return t.Stats.TokensUsed
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return t.Stats.TokensUsed
}
