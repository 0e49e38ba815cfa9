package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	s.data[t.TradeID] = &cp
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

// GetOpen retrieves all trades with status OPEN, ordered by entered_at ASC.
func (s *TradeStore) GetOpen(_ context.Context) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Status != domain.TradeStatusOpen {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EnteredAt.Before(result[j].EnteredAt)
	})
	return result, nil
}

// CountOpen returns the number of trades with status OPEN.
func (s *TradeStore) CountOpen(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.data {
		if t.Status == domain.TradeStatusOpen {
			count++
		}
	}
	return count, nil
}

// MarkClosed transitions a trade to CLOSED. Closing an already closed
// trade is a no-op.
func (s *TradeStore) MarkClosed(_ context.Context, tradeID string, reason domain.ExitReason, exitPrice float64, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[tradeID]
	if !exists {
		return storage.ErrNotFound
	}
	if t.Status == domain.TradeStatusClosed {
		return nil
	}

	t.Status = domain.TradeStatusClosed
	t.ExitReason = reason
	t.ExitPrice = exitPrice
	t.ClosedAt = closedAt
	return nil
}
