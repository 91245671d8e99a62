// Package twinbuf implements a double-buffer for read-mostly
// structures: readers always see a consistent instance without
// synchronization, while mutations are serialized through a
// single-writer queue and applied to both sides, grounded on the
// reference's double-buffer pattern (spec §4.8).
package twinbuf

import (
	"sync"
	"sync/atomic"
)

// Mutator mutates a T in place.
type Mutator[T any] func(*T)

// Buffer holds two instances of T; Load returns the active one
// without blocking on writers. Modify queues a mutation that is
// applied to the inactive side, then the active index flips, then the
// same mutation re-applies to the (now inactive) side that readers
// just moved off of, keeping both instances convergent.
type Buffer[T any] struct {
	mu     sync.Mutex // serializes writers only; never taken by readers
	active atomic.Int32
	slots  [2]T
}

// New creates a Buffer seeded with the given initial value on both sides.
func New[T any](initial T) *Buffer[T] {
	b := &Buffer[T]{}
	b.slots[0] = initial
	b.slots[1] = initial
	return b
}

// Load returns the currently active instance. Never blocks.
func (b *Buffer[T]) Load() T {
	idx := b.active.Load()
	return b.slots[idx]
}

// Modify applies fn to the inactive instance, flips the active index,
// then re-applies fn to the newly-inactive instance so both sides
// converge. Writers are serialized against each other; readers are
// never blocked.
func (b *Buffer[T]) Modify(fn Mutator[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	activeIdx := b.active.Load()
	inactiveIdx := activeIdx ^ 1

	fn(&b.slots[inactiveIdx])
	b.active.Store(inactiveIdx)

	// Re-apply to the side readers may still be draining off of, so
	// the two instances never diverge across a swap cycle.
	fn(&b.slots[activeIdx])
}
