// Package editable applies a value locally before it is confirmed and puts
// the previous value back when confirmation fails.
package editable

import (
	"context"
	"sync"
)

// Field holds a locally displayed value of type T.
type Field[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewField creates a field showing initial.
func NewField[T any](initial T) *Field[T] {
	return &Field[T]{value: initial}
}

// Get returns the value currently shown.
func (f *Field[T]) Get() T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

// Set replaces the value without a commit step.
func (f *Field[T]) Set(v T) {
	f.mu.Lock()
	f.value = v
	f.mu.Unlock()
}

// Apply shows next immediately and then runs commit. If commit fails the
// previous value is restored and commit's error returned. The field is not
// locked while commit runs, so readers see next in the meantime.
func (f *Field[T]) Apply(ctx context.Context, next T, commit func(context.Context) error) error {
	f.mu.Lock()
	prev := f.value
	f.value = next
	f.mu.Unlock()

	if err := commit(ctx); err != nil {
		f.mu.Lock()
		f.value = prev
		f.mu.Unlock()
		return err
	}
	return nil
}
