package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FinalSignal // keyed by signal_id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.FinalSignal),
	}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(_ context.Context, sig *domain.FinalSignal) error {
	if sig == nil || sig.Candidate.SignalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sig.Candidate.SignalID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *sig
	s.data[sig.Candidate.SignalID] = &cp
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(_ context.Context, signalID string) (*domain.FinalSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, exists := s.data[signalID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *sig
	return &cp, nil
}

// RecentBySymbol retrieves signals for a symbol generated at or after
// since, ordered by generated_at ASC.
func (s *SignalStore) RecentBySymbol(_ context.Context, symbol string, since time.Time) ([]*domain.FinalSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FinalSignal
	for _, sig := range s.data {
		if sig.Candidate.Symbol != symbol {
			continue
		}
		if sig.Candidate.GeneratedAt.Before(since) {
			continue
		}
		cp := *sig
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Candidate.GeneratedAt.Before(result[j].Candidate.GeneratedAt)
	})
	return result, nil
}
