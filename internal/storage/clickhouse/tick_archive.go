package clickhouse

import (
	"context"
	"fmt"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// TickArchive implements storage.TickArchive using ClickHouse.
type TickArchive struct {
	conn *Conn
}

// NewTickArchive creates a new TickArchive.
func NewTickArchive(conn *Conn) *TickArchive {
	return &TickArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.TickArchive = (*TickArchive)(nil)

// InsertBulk appends a batch of ticks.
func (s *TickArchive) InsertBulk(ctx context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (symbol, last, open, high, low, prev_close, at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		if err := batch.Append(t.Symbol, t.Last, t.Open, t.High, t.Low, t.PrevClose, t.At); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySymbolRange retrieves ticks for a symbol within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *TickArchive) GetBySymbolRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Tick, error) {
	query := `
		SELECT symbol, last, open, high, low, prev_close, at
		FROM ticks
		WHERE symbol = ? AND at >= ? AND at <= ?
		ORDER BY at ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get ticks by range: %w", err)
	}
	defer rows.Close()

	var ticks []*domain.Tick
	for rows.Next() {
		var t domain.Tick
		if err := rows.Scan(&t.Symbol, &t.Last, &t.Open, &t.High, &t.Low, &t.PrevClose, &t.At); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		ticks = append(ticks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return ticks, nil
}

// AlertArchive implements storage.AlertArchive using ClickHouse.
type AlertArchive struct {
	conn *Conn
}

// NewAlertArchive creates a new AlertArchive.
func NewAlertArchive(conn *Conn) *AlertArchive {
	return &AlertArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.AlertArchive = (*AlertArchive)(nil)

// Insert appends an emitted alert.
func (s *AlertArchive) Insert(ctx context.Context, a *domain.ExitAlert) error {
	query := `
		INSERT INTO exit_alerts (
			trade_id, symbol, strategy, exit_reason,
			current_price, pnl_pct, advisory, hint, emitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	reason := ""
	if a.ExitReason != nil {
		reason = string(*a.ExitReason)
	}
	advisory := uint8(0)
	if a.IsAlertOnly {
		advisory = 1
	}

	err := s.conn.Exec(ctx, query,
		a.Trade.TradeID,
		a.Trade.Symbol,
		a.Trade.Strategy,
		reason,
		a.CurrentPrice,
		a.PnLPct,
		advisory,
		a.KeyboardHint,
		a.EmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}
