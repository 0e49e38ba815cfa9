package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `
	signal_id, symbol, direction, strategy, setup,
	entry, stop_loss, target1, target2,
	strategy_score, gap_pct, volume_ratio, distance_pct, generated_at,
	score, rank, stars, quantity, capital_required, expires_at
`

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.FinalSignal) error {
	query := `
		INSERT INTO signals (` + signalColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		          $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	c := sig.Candidate
	_, err := s.pool.Exec(ctx, query,
		c.SignalID,
		c.Symbol,
		string(c.Direction),
		c.Strategy,
		c.Setup,
		c.Entry,
		c.StopLoss,
		c.Target1,
		c.Target2,
		c.StrategyScore,
		c.GapPct,
		c.VolumeRatio,
		c.DistancePct,
		c.GeneratedAt,
		sig.Score,
		sig.Rank,
		sig.Stars,
		sig.Quantity,
		sig.CapitalRequired,
		sig.ExpiresAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, signalID string) (*domain.FinalSignal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE signal_id = $1`

	row := s.pool.QueryRow(ctx, query, signalID)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by id: %w", err)
	}
	return sig, nil
}

// RecentBySymbol retrieves signals for a symbol generated at or after
// since, ordered by generated_at ASC.
func (s *SignalStore) RecentBySymbol(ctx context.Context, symbol string, since time.Time) ([]*domain.FinalSignal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE symbol = $1 AND generated_at >= $2
		ORDER BY generated_at ASC, signal_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("get recent signals: %w", err)
	}
	defer rows.Close()

	var signals []*domain.FinalSignal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return signals, nil
}

func scanSignal(row pgx.Row) (*domain.FinalSignal, error) {
	var sig domain.FinalSignal
	var direction string

	err := row.Scan(
		&sig.Candidate.SignalID,
		&sig.Candidate.Symbol,
		&direction,
		&sig.Candidate.Strategy,
		&sig.Candidate.Setup,
		&sig.Candidate.Entry,
		&sig.Candidate.StopLoss,
		&sig.Candidate.Target1,
		&sig.Candidate.Target2,
		&sig.Candidate.StrategyScore,
		&sig.Candidate.GapPct,
		&sig.Candidate.VolumeRatio,
		&sig.Candidate.DistancePct,
		&sig.Candidate.GeneratedAt,
		&sig.Score,
		&sig.Rank,
		&sig.Stars,
		&sig.Quantity,
		&sig.CapitalRequired,
		&sig.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	sig.Candidate.Direction = domain.Direction(direction)
	return &sig, nil
}
