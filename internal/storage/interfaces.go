package storage

import (
	"context"
	"time"

	"equity-signal-lab/internal/domain"
)

// SignalStore provides access to delivered final signals.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
	Insert(ctx context.Context, s *domain.FinalSignal) error

	// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, signalID string) (*domain.FinalSignal, error)

	// RecentBySymbol retrieves signals for a symbol generated at or after
	// since, ordered by generated_at ASC. Used by cross-cycle confirmation.
	RecentBySymbol(ctx context.Context, symbol string, since time.Time) ([]*domain.FinalSignal, error)
}

// TradeStore provides access to open and closed trades.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetOpen retrieves all trades with status OPEN, ordered by entered_at ASC.
	GetOpen(ctx context.Context) ([]*domain.Trade, error)

	// CountOpen returns the number of trades with status OPEN.
	CountOpen(ctx context.Context) (int, error)

	// MarkClosed transitions a trade to CLOSED with the given exit details.
	// Returns ErrNotFound if the trade does not exist. Closing an already
	// closed trade is a no-op.
	MarkClosed(ctx context.Context, tradeID string, reason domain.ExitReason, exitPrice float64, closedAt time.Time) error
}

// PerformanceStore provides access to realized trade outcomes and
// trailing per-strategy summaries.
type PerformanceStore interface {
	// InsertOutcome adds a realized outcome. Returns ErrDuplicateKey if
	// trade_id already has one.
	InsertOutcome(ctx context.Context, o *domain.TradeOutcome) error

	// TrailingSummary computes the strategy's summary over outcomes closed
	// within [asOf-days, asOf]. Returns ErrNotFound when the strategy has
	// no outcomes in the window.
	TrailingSummary(ctx context.Context, strategy string, days int, asOf time.Time) (*domain.StrategyPerformance, error)

	// GetByDateRange retrieves outcomes closed within [start, end] (inclusive),
	// ordered by closed_at ASC.
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.TradeOutcome, error)
}

// WeightChangeStore persists the capital-weight audit log.
type WeightChangeStore interface {
	// Insert appends a weight-change event.
	Insert(ctx context.Context, e *domain.WeightChangeEvent) error

	// GetByDate retrieves events recorded on the given calendar day,
	// ordered by insertion.
	GetByDate(ctx context.Context, date time.Time) ([]*domain.WeightChangeEvent, error)
}

// TickArchive stores observed ticks for offline analysis.
type TickArchive interface {
	// InsertBulk appends a batch of ticks.
	InsertBulk(ctx context.Context, ticks []*domain.Tick) error

	// GetBySymbolRange retrieves ticks for a symbol within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetBySymbolRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Tick, error)
}

// AlertArchive stores emitted exit alerts for offline analysis.
type AlertArchive interface {
	// Insert appends an emitted alert.
	Insert(ctx context.Context, a *domain.ExitAlert) error
}
