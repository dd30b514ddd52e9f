package parley

import "context"

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Mid-stream, frames arriving.
	StreamStateComplete                     // Next() returned io.EOF.
	StreamStateError                        // Next() returned non-EOF error.
	StreamStateClosed                       // Close() called before terminal state.
)

// Stream is a pull-based iterator over decoded events from one turn's
// response body. Cancellation flows through the context passed to
// Backend.Ask().
//
// Next() returns the next semantic event, io.EOF on normal completion, or a
// transport error. Malformed frames are skipped inside the stream and never
// surface from Next(). Events are yielded strictly in the order their frames
// arrived on the wire.
//
// Close() releases the underlying response body. It is safe to call more
// than once; only the first call releases the resource.
type Stream interface {
	Next() (Event, error)
	State() StreamState
	Close() error
}

// Backend issues one streaming request per turn against the remote agent
// service.
type Backend interface {
	Ask(ctx context.Context, req Request) (Stream, error)
}
