// Package mock provides test doubles for parley interfaces using function fields.
package mock

import (
	"context"

	"github.com/parleyhq/parley"
)

// Interface compliance checks.
var (
	_ parley.Backend = (*Backend)(nil)
	_ parley.Stream  = (*Stream)(nil)
)

// Backend is a test double for parley.Backend.
// Set AskFn before calling Ask.
type Backend struct {
	AskFn func(ctx context.Context, req parley.Request) (parley.Stream, error)
}

// Ask delegates to AskFn.
func (b *Backend) Ask(ctx context.Context, req parley.Request) (parley.Stream, error) {
	return b.AskFn(ctx, req)
}
