package memory

import (
	"context"
	"sync"

	"github.com/xenking/storefront-catalog/internal/domain/variant"
)

var _ variant.Transactor = (*Transactor)(nil)

// Transactor serializes multi-step writes against each other. It cannot roll
// back, so a failed step leaves earlier steps applied.
type Transactor struct {
	mu sync.Mutex
}

// NewTransactor returns a Transactor.
func NewTransactor() *Transactor {
	return &Transactor{}
}

// Do runs fn while holding the writer lock.
func (t *Transactor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

// Atomic reports false.
func (t *Transactor) Atomic() bool { return false }
