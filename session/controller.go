// Package session runs streaming turns against a backend, at most one
// in-flight turn per conversation slot.
package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/parleyhq/parley"
)

// Controller starts and supervises streaming turns. Each conversation slot
// holds at most one streaming turn; starting a new turn on an occupied slot
// cancels the previous one first and waits for it to settle, so two turns
// never stream into the same slot concurrently.
type Controller struct {
	backend  parley.Backend
	logger   *log.Logger
	turnOpts []parley.TurnOption
	now      func() time.Time

	// startMu serializes Start so concurrent callers cannot both observe
	// the slot as free.
	startMu sync.Mutex

	mu     sync.Mutex
	active map[string]*Handle
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger for turn lifecycle events.
// Defaults to a silent logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithTurnOptions sets options applied to every turn the controller
// creates, such as the control-chunk set.
func WithTurnOptions(opts ...parley.TurnOption) Option {
	return func(c *Controller) { c.turnOpts = opts }
}

// WithClock sets the time source. Tests use it to make stats deterministic.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller over the given backend.
func New(backend parley.Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		logger:  log.New(io.Discard),
		now:     time.Now,
		active:  make(map[string]*Handle),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start begins streaming a turn for req and returns a Handle to observe and
// control it. If the request's slot already has a streaming turn, that turn
// is cancelled and fully settled before the new one starts.
func (c *Controller) Start(ctx context.Context, req parley.Request) (*Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	prev := c.active[req.Slot]
	c.mu.Unlock()
	if prev != nil {
		c.logger.Info("replacing streaming turn", "slot", req.Slot)
		prev.Cancel()
		<-prev.Done()
	}

	h := newHandle(c, ctx, req.Slot)
	c.mu.Lock()
	c.active[req.Slot] = h
	c.mu.Unlock()

	go h.run(c.backend, req)
	return h, nil
}

// Active returns the handle currently streaming in slot, or nil.
func (c *Controller) Active(slot string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[slot]
}

// release frees the slot when a handle's run finishes. The slot is cleared
// only if it still belongs to h: a replacement may already occupy it.
func (c *Controller) release(slot string, h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[slot] == h {
		delete(c.active, slot)
	}
}
