package postgres

import (
	"context"
	"fmt"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// WeightChangeStore implements storage.WeightChangeStore using PostgreSQL.
type WeightChangeStore struct {
	pool *Pool
}

// NewWeightChangeStore creates a new WeightChangeStore.
func NewWeightChangeStore(pool *Pool) *WeightChangeStore {
	return &WeightChangeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WeightChangeStore = (*WeightChangeStore)(nil)

// Insert appends a weight-change event.
func (s *WeightChangeStore) Insert(ctx context.Context, e *domain.WeightChangeEvent) error {
	query := `
		INSERT INTO weight_changes (event_date, strategy, event_type, details, old_weight, new_weight)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		e.Date, e.Strategy, e.EventType, e.Details, e.OldWeight, e.NewWeight)
	if err != nil {
		return fmt.Errorf("insert weight change: %w", err)
	}
	return nil
}

// GetByDate retrieves events recorded on the given calendar day,
// ordered by insertion.
func (s *WeightChangeStore) GetByDate(ctx context.Context, date time.Time) ([]*domain.WeightChangeEvent, error) {
	query := `
		SELECT event_date, strategy, event_type, details, old_weight, new_weight
		FROM weight_changes
		WHERE event_date >= $1 AND event_date < $2
		ORDER BY id ASC
	`

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := s.pool.Query(ctx, query, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("get weight changes by date: %w", err)
	}
	defer rows.Close()

	var events []*domain.WeightChangeEvent
	for rows.Next() {
		var e domain.WeightChangeEvent
		if err := rows.Scan(&e.Date, &e.Strategy, &e.EventType, &e.Details, &e.OldWeight, &e.NewWeight); err != nil {
			return nil, fmt.Errorf("scan weight change: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weight changes: %w", err)
	}
	return events, nil
}
