package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/parleyhq/parley"
)

// Handle observes and controls one streaming turn.
//
// A single dispatch goroutine applies stream events to the turn; everything
// callers see goes through snapshots taken under the handle's lock, so
// observers never share memory with the live turn. Cancel takes effect
// immediately: the turn is moved to its terminal state synchronously, before
// the transport is torn down, so no late frame can undo a cancellation.
type Handle struct {
	controller *Controller
	slot       string
	ctx        context.Context
	cancelCtx  context.CancelFunc

	mu        sync.Mutex
	turn      *parley.Turn
	callbacks []func(parley.Turn)

	done chan struct{}
	once sync.Once
}

func newHandle(c *Controller, ctx context.Context, slot string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	return &Handle{
		controller: c,
		slot:       slot,
		ctx:        ctx,
		cancelCtx:  cancel,
		turn:       parley.NewTurn(c.turnOpts...),
		done:       make(chan struct{}),
	}
}

// Snapshot returns a copy of the turn's current state.
func (h *Handle) Snapshot() parley.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.turn.Snapshot()
}

// OnUpdate registers fn to receive a snapshot after every state change. It
// is invoked once immediately with the current state, so registering after
// streaming began misses nothing. Callbacks run synchronously on whichever
// goroutine produced the change and must not block.
func (h *Handle) OnUpdate(fn func(parley.Turn)) {
	h.mu.Lock()
	h.callbacks = append(h.callbacks, fn)
	snap := h.turn.Snapshot()
	h.mu.Unlock()
	fn(snap)
}

// Cancel moves the turn to StatusCancelled and tears down the transport.
// The state change is synchronous: by the time Cancel returns, no further
// event can alter the turn. Cancelling a settled turn is a no-op.
func (h *Handle) Cancel() {
	h.mu.Lock()
	changed := h.turn.Cancel(h.controller.now())
	snap := h.turn.Snapshot()
	cbs := h.snapshotCallbacks()
	h.mu.Unlock()

	if changed {
		notify(cbs, snap)
	}
	h.cancelCtx()
}

// Done returns a channel closed once the turn has settled and its slot has
// been released.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the turn settles, then returns its final state.
func (h *Handle) Wait(ctx context.Context) (parley.Turn, error) {
	select {
	case <-h.done:
		return h.Snapshot(), nil
	case <-ctx.Done():
		return parley.Turn{}, ctx.Err()
	}
}

// run is the dispatch loop. It owns the stream for the turn's lifetime and
// is the only goroutine that applies events.
func (h *Handle) run(backend parley.Backend, req parley.Request) {
	defer h.finish()

	stream, err := backend.Ask(h.ctx, req)
	if err != nil {
		h.settleError(err)
		return
	}
	defer stream.Close()

	for {
		evt, err := stream.Next()
		if err == io.EOF {
			h.settleEOF()
			return
		}
		if err != nil {
			h.settleError(err)
			return
		}
		if terminal := h.apply(evt); terminal {
			return
		}
	}
}

// apply advances the turn with one event and reports whether the turn is
// now terminal.
func (h *Handle) apply(evt parley.Event) bool {
	h.mu.Lock()
	changed := h.turn.Apply(evt, h.controller.now())
	terminal := h.turn.Status.Terminal()
	snap := h.turn.Snapshot()
	cbs := h.snapshotCallbacks()
	h.mu.Unlock()

	if changed {
		notify(cbs, snap)
	}
	return terminal
}

// settleEOF handles a clean end of stream. A turn still in flight at that
// point never received its end frame, which is a protocol failure.
func (h *Handle) settleEOF() {
	h.mu.Lock()
	terminal := h.turn.Status.Terminal()
	h.mu.Unlock()
	if terminal {
		return
	}
	h.controller.logger.Warn("stream ended without a final frame", "slot", h.slot)
	h.apply(parley.ErrorEvent{Message: "stream ended unexpectedly"})
}

// settleError maps a stream or request error to a terminal turn state.
// Cancellation is not a failure; everything else, including the idle
// timeout, is.
func (h *Handle) settleError(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, parley.ErrStreamClosed) {
		h.mu.Lock()
		changed := h.turn.Cancel(h.controller.now())
		snap := h.turn.Snapshot()
		cbs := h.snapshotCallbacks()
		h.mu.Unlock()
		if changed {
			notify(cbs, snap)
		}
		return
	}
	h.controller.logger.Warn("turn failed", "slot", h.slot, "err", err)
	h.apply(parley.ErrorEvent{Message: err.Error()})
}

// finish releases the slot exactly once, no matter how the run exited.
func (h *Handle) finish() {
	h.once.Do(func() {
		h.controller.release(h.slot, h)
		h.cancelCtx()
		close(h.done)
	})
}

func (h *Handle) snapshotCallbacks() []func(parley.Turn) {
	cbs := make([]func(parley.Turn), len(h.callbacks))
	copy(cbs, h.callbacks)
	return cbs
}

func notify(cbs []func(parley.Turn), snap parley.Turn) {
	for _, fn := range cbs {
		fn(snap)
	}
}
