package memory

import (
	"context"
	"sync"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// WeightChangeStore is an in-memory implementation of storage.WeightChangeStore.
type WeightChangeStore struct {
	mu   sync.RWMutex
	data []*domain.WeightChangeEvent
}

// NewWeightChangeStore creates a new in-memory weight-change store.
func NewWeightChangeStore() *WeightChangeStore {
	return &WeightChangeStore{}
}

// Compile-time interface check.
var _ storage.WeightChangeStore = (*WeightChangeStore)(nil)

// Insert appends a weight-change event.
func (s *WeightChangeStore) Insert(_ context.Context, e *domain.WeightChangeEvent) error {
	if e == nil || e.Strategy == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.data = append(s.data, &cp)
	return nil
}

// GetByDate retrieves events recorded on the given calendar day, in
// insertion order.
func (s *WeightChangeStore) GetByDate(_ context.Context, date time.Time) ([]*domain.WeightChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := date.Date()
	var result []*domain.WeightChangeEvent
	for _, e := range s.data {
		ey, em, ed := e.Date.Date()
		if ey == y && em == m && ed == d {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}
