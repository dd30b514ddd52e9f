package parley

// Event is a sealed interface representing one decoded frame from the agent
// service stream. Events are purely semantic. Transport errors come from
// Stream.Next()'s error return, not from events.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// StartEvent opens a turn. The backend assigns the turn and session IDs.
type StartEvent struct {
	TurnID    string
	SessionID string
}

func (StartEvent) event() {}

// ChunkEvent carries a text delta of the in-progress answer.
type ChunkEvent struct {
	Text string
}

func (ChunkEvent) event() {}

// SourcesEvent carries the authoritative source list for the turn.
// It replaces any previously received list.
type SourcesEvent struct {
	Sources []Source
}

func (SourcesEvent) event() {}

// CitationEvent appends a single source to the turn's current list.
type CitationEvent struct {
	Source Source
}

func (CitationEvent) event() {}

// MetadataEvent carries key/value metadata merged shallowly into the turn.
// Later keys overwrite earlier ones of the same name.
type MetadataEvent struct {
	Fields map[string]any
}

func (MetadataEvent) event() {}

// RoutingEvent records the backend's routing decision for the turn.
// At most one routing decision applies per turn; later ones are ignored.
type RoutingEvent struct {
	Route      string
	Confidence float64
}

func (RoutingEvent) event() {}

// EndEvent closes a turn successfully, optionally carrying final metadata.
type EndEvent struct {
	Metadata map[string]any
}

func (EndEvent) event() {}

// ErrorEvent closes a turn as failed with a backend-supplied message.
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) event() {}

// UnknownEvent preserves a frame whose kind this client does not recognize.
// The turn state machine ignores it; callers may log it in development.
type UnknownEvent struct {
	Kind    string
	Payload string
}

func (UnknownEvent) event() {}

// Interface compliance checks.
var (
	_ Event = StartEvent{}
	_ Event = ChunkEvent{}
	_ Event = SourcesEvent{}
	_ Event = CitationEvent{}
	_ Event = MetadataEvent{}
	_ Event = RoutingEvent{}
	_ Event = EndEvent{}
	_ Event = ErrorEvent{}
	_ Event = UnknownEvent{}
)
