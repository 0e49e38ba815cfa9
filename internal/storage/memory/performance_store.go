package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// PerformanceStore is an in-memory implementation of storage.PerformanceStore.
type PerformanceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeOutcome // keyed by trade_id
}

// NewPerformanceStore creates a new in-memory performance store.
func NewPerformanceStore() *PerformanceStore {
	return &PerformanceStore{
		data: make(map[string]*domain.TradeOutcome),
	}
}

// Compile-time interface check.
var _ storage.PerformanceStore = (*PerformanceStore)(nil)

// InsertOutcome adds a realized outcome. Returns ErrDuplicateKey if
// trade_id already has one.
func (s *PerformanceStore) InsertOutcome(_ context.Context, o *domain.TradeOutcome) error {
	if o == nil || o.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *o
	s.data[o.TradeID] = &cp
	return nil
}

// TrailingSummary computes the strategy's summary over outcomes closed
// within [asOf-days, asOf]. Returns ErrNotFound when the strategy has no
// outcomes in the window.
func (s *PerformanceStore) TrailingSummary(_ context.Context, strategy string, days int, asOf time.Time) (*domain.StrategyPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := asOf.AddDate(0, 0, -days)

	var wins, losses int
	var winSum, lossSum float64
	for _, o := range s.data {
		if o.Strategy != strategy {
			continue
		}
		if o.ClosedAt.Before(start) || o.ClosedAt.After(asOf) {
			continue
		}
		if o.Win {
			wins++
			winSum += o.PnL
		} else {
			losses++
			lossSum += o.PnL
		}
	}

	total := wins + losses
	if total == 0 {
		return nil, storage.ErrNotFound
	}

	perf := &domain.StrategyPerformance{
		Strategy: strategy,
		Trades:   total,
		WinRate:  float64(wins) / float64(total),
	}
	if wins > 0 {
		perf.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		// AvgLoss is stored as a positive magnitude.
		perf.AvgLoss = -lossSum / float64(losses)
	}
	return perf, nil
}

// GetByDateRange retrieves outcomes closed within [start, end] (inclusive),
// ordered by closed_at ASC.
func (s *PerformanceStore) GetByDateRange(_ context.Context, start, end time.Time) ([]*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeOutcome
	for _, o := range s.data {
		if o.ClosedAt.Before(start) || o.ClosedAt.After(end) {
			continue
		}
		cp := *o
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ClosedAt.Before(result[j].ClosedAt)
	})
	return result, nil
}
