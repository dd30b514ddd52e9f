package parley

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrIdleTimeout indicates no frame arrived within the idle window.
	// Treated identically to a transport failure.
	ErrIdleTimeout = errors.New("idle timeout: no frames received")

	// ErrTurnFinished indicates an operation on a turn already in a
	// terminal state.
	ErrTurnFinished = errors.New("turn already finished")
)
