package mock

import "github.com/parleyhq/parley"

// Interface compliance check.
var _ parley.Stream = (*Stream)(nil)

// Stream is a test double for parley.Stream.
// Set the function fields for the methods you need. NextFn panics when nil
// to catch missing setup. CloseFn and StateFn are nil-safe (no-op and zero
// value) because test code commonly calls defer stream.Close() and these
// methods rarely need custom behavior.
type Stream struct {
	NextFn  func() (parley.Event, error)
	StateFn func() parley.StreamState
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (parley.Event, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() parley.StreamState {
	if s.StateFn == nil {
		return parley.StreamStateNew
	}
	return s.StateFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}
