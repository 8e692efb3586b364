package memory

import (
	"context"
	"sync"

	apperrors "github.com/utafrali/promarket/pkg/errors"
)

// Slot is an in-memory slot.Slot used in tests and when Redis is not
// configured.
type Slot struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewSlot creates an empty in-memory slot.
func NewSlot() *Slot {
	return &Slot{data: make(map[string][]byte)}
}

// Load returns a copy of the value under key, or a not-found error.
func (s *Slot) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, apperrors.NotFound("slot", key)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Store saves a copy of value under key, replacing any previous value.
func (s *Slot) Store(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Slot) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Has reports whether key currently holds a value.
func (s *Slot) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[key]
	return ok
}
