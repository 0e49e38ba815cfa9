package postgres

import (
	"context"
	"fmt"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// PerformanceStore implements storage.PerformanceStore using PostgreSQL.
type PerformanceStore struct {
	pool *Pool
}

// NewPerformanceStore creates a new PerformanceStore.
func NewPerformanceStore(pool *Pool) *PerformanceStore {
	return &PerformanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PerformanceStore = (*PerformanceStore)(nil)

// InsertOutcome adds a realized outcome. Returns ErrDuplicateKey if
// trade_id already has one.
func (s *PerformanceStore) InsertOutcome(ctx context.Context, o *domain.TradeOutcome) error {
	query := `
		INSERT INTO trade_outcomes (trade_id, strategy, symbol, pnl, pnl_pct, win, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		o.TradeID, o.Strategy, o.Symbol, o.PnL, o.PnLPct, o.Win, o.ClosedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// TrailingSummary aggregates outcomes closed within [asOf-days, asOf].
// AvgLoss is reported as a positive number. Returns ErrNotFound when
// the strategy has no outcomes in the window.
func (s *PerformanceStore) TrailingSummary(ctx context.Context, strategy string, days int, asOf time.Time) (*domain.StrategyPerformance, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE win),
			COALESCE(AVG(pnl) FILTER (WHERE win), 0),
			COALESCE(ABS(AVG(pnl) FILTER (WHERE NOT win)), 0)
		FROM trade_outcomes
		WHERE strategy = $1 AND closed_at >= $2 AND closed_at <= $3
	`

	since := asOf.AddDate(0, 0, -days)

	var total, wins int
	var avgWin, avgLoss float64
	err := s.pool.QueryRow(ctx, query, strategy, since, asOf).Scan(&total, &wins, &avgWin, &avgLoss)
	if err != nil {
		return nil, fmt.Errorf("trailing summary: %w", err)
	}
	if total == 0 {
		return nil, storage.ErrNotFound
	}

	return &domain.StrategyPerformance{
		Strategy: strategy,
		Trades:   total,
		WinRate:  float64(wins) / float64(total),
		AvgWin:   avgWin,
		AvgLoss:  avgLoss,
	}, nil
}

// GetByDateRange retrieves outcomes closed within [start, end]
// (inclusive), ordered by closed_at ASC.
func (s *PerformanceStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.TradeOutcome, error) {
	query := `
		SELECT trade_id, strategy, symbol, pnl, pnl_pct, win, closed_at
		FROM trade_outcomes
		WHERE closed_at >= $1 AND closed_at <= $2
		ORDER BY closed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get outcomes by date range: %w", err)
	}
	defer rows.Close()

	var outcomes []*domain.TradeOutcome
	for rows.Next() {
		var o domain.TradeOutcome
		if err := rows.Scan(&o.TradeID, &o.Strategy, &o.Symbol, &o.PnL, &o.PnLPct, &o.Win, &o.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}
