package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, symbol, direction, strategy, setup,
	entry, stop_loss, target1, target2, quantity,
	entered_at, status, exit_reason, exit_price, closed_at
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (` + tradeColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	var exitReason *string
	if t.ExitReason != "" {
		r := string(t.ExitReason)
		exitReason = &r
	}
	var exitPrice *float64
	if t.Status == domain.TradeStatusClosed {
		exitPrice = &t.ExitPrice
	}
	var closedAt *time.Time
	if !t.ClosedAt.IsZero() {
		closedAt = &t.ClosedAt
	}

	_, err := s.pool.Exec(ctx, query,
		t.TradeID,
		t.Symbol,
		string(t.Direction),
		t.Strategy,
		t.Setup,
		t.Entry,
		t.StopLoss,
		t.Target1,
		t.Target2,
		t.Quantity,
		t.EnteredAt,
		string(t.Status),
		exitReason,
		exitPrice,
		closedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetOpen retrieves all trades with status OPEN, ordered by entered_at ASC.
func (s *TradeStore) GetOpen(ctx context.Context) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE status = 'OPEN'
		ORDER BY entered_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get open trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}

// CountOpen returns the number of trades with status OPEN.
func (s *TradeStore) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE status = 'OPEN'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open trades: %w", err)
	}
	return count, nil
}

// MarkClosed transitions a trade to CLOSED. Closing an already closed
// trade is a no-op; the first close wins.
func (s *TradeStore) MarkClosed(ctx context.Context, tradeID string, reason domain.ExitReason, exitPrice float64, closedAt time.Time) error {
	query := `
		UPDATE trades
		SET status = 'CLOSED', exit_reason = $2, exit_price = $3, closed_at = $4
		WHERE trade_id = $1 AND status = 'OPEN'
	`

	tag, err := s.pool.Exec(ctx, query, tradeID, string(reason), exitPrice, closedAt)
	if err != nil {
		return fmt.Errorf("mark trade closed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either already closed (no-op) or unknown.
		if _, err := s.GetByID(ctx, tradeID); err != nil {
			return err
		}
	}
	return nil
}

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var direction, status string
	var exitReason *string
	var exitPrice *float64
	var closedAt *time.Time

	err := row.Scan(
		&t.TradeID,
		&t.Symbol,
		&direction,
		&t.Strategy,
		&t.Setup,
		&t.Entry,
		&t.StopLoss,
		&t.Target1,
		&t.Target2,
		&t.Quantity,
		&t.EnteredAt,
		&status,
		&exitReason,
		&exitPrice,
		&closedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Direction = domain.Direction(direction)
	t.Status = domain.TradeStatus(status)
	if exitReason != nil {
		t.ExitReason = domain.ExitReason(*exitReason)
	}
	if exitPrice != nil {
		t.ExitPrice = *exitPrice
	}
	if closedAt != nil {
		t.ClosedAt = *closedAt
	}
	return &t, nil
}
