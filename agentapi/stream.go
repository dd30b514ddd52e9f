package agentapi

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/parleyhq/parley"
)

// stream implements [parley.Stream] over a chunked HTTP response body.
//
// One goroutine pulls from Next; reads suspend only on the transport. The
// idle watchdog cancels the request context when no frame completes within
// the idle window, which surfaces from Next as [parley.ErrIdleTimeout] and
// is otherwise handled like any other transport failure.
type stream struct {
	body   io.ReadCloser
	lines  *lineScanner
	asm    frameAssembler
	ctx    context.Context
	cancel context.CancelCauseFunc
	logger *log.Logger

	watchdog *time.Timer
	idle     time.Duration

	state   parley.StreamState
	pending []parley.Event
	err     error // terminal error, if any

	closeOnce sync.Once
	closeErr  error
}

// Interface compliance check.
var _ parley.Stream = (*stream)(nil)

func newStream(ctx context.Context, cancel context.CancelCauseFunc, body io.ReadCloser, idle time.Duration, logger *log.Logger) *stream {
	s := &stream{
		body:   body,
		lines:  newLineScanner(body),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		idle:   idle,
		state:  parley.StreamStateNew,
	}
	if idle > 0 {
		s.watchdog = time.AfterFunc(idle, func() {
			cancel(parley.ErrIdleTimeout)
		})
	}
	return s
}

// Next reads the next semantic event from the stream.
// Returns io.EOF when the transport ends cleanly.
func (s *stream) Next() (parley.Event, error) {
	switch s.state {
	case parley.StreamStateComplete:
		return nil, io.EOF
	case parley.StreamStateError:
		return nil, s.err
	case parley.StreamStateClosed:
		return nil, parley.ErrStreamClosed
	}

	for {
		if len(s.pending) > 0 {
			evt := s.pending[0]
			s.pending = s.pending[1:]
			return evt, nil
		}

		f, err := s.nextFrame()
		if err == io.EOF {
			s.state = parley.StreamStateComplete
			s.stopWatchdog()
			return nil, io.EOF
		}
		if err != nil {
			s.terminate(err)
			return nil, s.err
		}

		s.state = parley.StreamStateStreaming
		if s.watchdog != nil {
			s.watchdog.Reset(s.idle)
		}
		s.pending = decodeFrame(f, s.logger)
		// A skipped malformed frame leaves pending empty; keep reading.
	}
}

// State returns the current stream state.
func (s *stream) State() parley.StreamState {
	return s.state
}

// Close releases the underlying response body. The first call closes; later
// calls return the first result, so every exit path may defer Close safely.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		if s.state != parley.StreamStateComplete && s.state != parley.StreamStateError {
			s.state = parley.StreamStateClosed
		}
		s.stopWatchdog()
		s.cancel(parley.ErrStreamClosed)
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// nextFrame drives lines through the assembler until a frame completes.
// An unterminated trailing frame is flushed at end of stream.
func (s *stream) nextFrame() (frame, error) {
	for {
		line, err := s.lines.next()
		if err == io.EOF {
			if f, ok := s.asm.flush(); ok {
				return f, nil
			}
			return frame{}, io.EOF
		}
		if err != nil {
			return frame{}, err
		}
		if f, ok := s.asm.feed(line); ok {
			return f, nil
		}
	}
}

// terminate records a terminal transport error. When the request context
// was cancelled, the cancellation cause (user cancel, idle timeout) is the
// real error, not the read failure it provoked.
func (s *stream) terminate(err error) {
	s.state = parley.StreamStateError
	s.stopWatchdog()
	if cause := context.Cause(s.ctx); cause != nil && s.ctx.Err() != nil {
		s.err = cause
		return
	}
	s.err = fmt.Errorf("agentapi: %w", err)
}

func (s *stream) stopWatchdog() {
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
}
