package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// TickArchive is an in-memory implementation of storage.TickArchive.
type TickArchive struct {
	mu   sync.RWMutex
	data []*domain.Tick
}

// NewTickArchive creates a new in-memory tick archive.
func NewTickArchive() *TickArchive {
	return &TickArchive{}
}

// Compile-time interface check.
var _ storage.TickArchive = (*TickArchive)(nil)

// InsertBulk appends a batch of ticks.
func (s *TickArchive) InsertBulk(_ context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ticks {
		if t == nil || t.Symbol == "" {
			return storage.ErrInvalidInput
		}
		cp := *t
		s.data = append(s.data, &cp)
	}
	return nil
}

// GetBySymbolRange retrieves ticks for a symbol within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *TickArchive) GetBySymbolRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Tick
	for _, t := range s.data {
		if t.Symbol != symbol {
			continue
		}
		if t.At.Before(start) || t.At.After(end) {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].At.Before(result[j].At)
	})
	return result, nil
}

// AlertArchive is an in-memory implementation of storage.AlertArchive.
type AlertArchive struct {
	mu   sync.Mutex
	data []*domain.ExitAlert
}

// NewAlertArchive creates a new in-memory alert archive.
func NewAlertArchive() *AlertArchive {
	return &AlertArchive{}
}

// Compile-time interface check.
var _ storage.AlertArchive = (*AlertArchive)(nil)

// Insert appends an emitted alert.
func (s *AlertArchive) Insert(_ context.Context, a *domain.ExitAlert) error {
	if a == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.data = append(s.data, &cp)
	return nil
}

// All returns a copy of every archived alert, in insertion order.
func (s *AlertArchive) All() []*domain.ExitAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*domain.ExitAlert, len(s.data))
	for i, a := range s.data {
		cp := *a
		result[i] = &cp
	}
	return result
}
