package risk

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"equity-signal-lab/internal/domain"
)

// DefaultSignalTTL is how long a final signal stays actionable.
const DefaultSignalTTL = 30 * time.Minute

// Config carries the capital and position constraints for one cycle.
// Fixed at process start, read-only here.
type Config struct {
	TotalCapital float64
	MaxPositions int
	SignalTTL    time.Duration // zero selects DefaultSignalTTL
}

// Manager applies position-count limits and sizing to ranked signals.
type Manager struct {
	sizer *PositionSizer
	log   zerolog.Logger
}

// NewManager creates a risk manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{sizer: NewPositionSizer(), log: log}
}

// FilterAndSize produces deliverable sized signals from ranked input.
// The position-limit gate is absolute: activeTradeCount at or above the
// limit returns an empty list. Only the top-slots ranked signals are
// considered; zero-quantity results among them are skipped silently, so
// the output may hold fewer signals than open slots. Ranked input order
// is preserved. regime may be nil.
func (m *Manager) FilterAndSize(ranked []domain.RankedSignal, cfg Config, activeTradeCount int, confirmations map[string]domain.ConfirmationResult, regime *domain.RegimeModifiers) ([]domain.FinalSignal, error) {
	if cfg.MaxPositions <= 0 {
		return nil, ErrInvalidMaxPositions
	}

	maxPositions := cfg.MaxPositions
	if regime != nil && regime.MaxPositions > 0 {
		maxPositions = regime.MaxPositions
	}
	if activeTradeCount >= maxPositions {
		return nil, nil
	}

	ttl := cfg.SignalTTL
	if ttl <= 0 {
		ttl = DefaultSignalTTL
	}

	// Only the top-ranked signals contend for the open slots; a skipped
	// slot is not backfilled by a lower-ranked signal.
	availableSlots := maxPositions - activeTradeCount
	if availableSlots < len(ranked) {
		ranked = ranked[:availableSlots]
	}
	final := make([]domain.FinalSignal, 0, len(ranked))

	for _, sig := range ranked {
		if regime != nil && regime.MinStars > 0 && sig.Stars < regime.MinStars {
			continue
		}

		multiplier := 1.0
		if conf, ok := confirmations[sig.Candidate.Symbol]; ok {
			multiplier = conf.SizeMultiplier
		}

		size, err := m.sizer.Calculate(cfg.TotalCapital, maxPositions, sig.Candidate.Entry, multiplier)
		if err != nil {
			// Bad candidate prices skip the candidate, not the cycle.
			m.log.Warn().Err(err).
				Str("signal_id", sig.Candidate.SignalID).
				Str("symbol", sig.Candidate.Symbol).
				Msg("sizing validation failed, skipping candidate")
			continue
		}
		if size.Quantity == 0 {
			continue
		}

		quantity := size.Quantity
		if regime != nil && regime.PositionSizeModifier > 0 {
			quantity = int64(math.Floor(float64(quantity) * regime.PositionSizeModifier))
			if quantity < 1 {
				quantity = 1
			}
		}

		final = append(final, domain.FinalSignal{
			RankedSignal:    sig,
			Quantity:        quantity,
			CapitalRequired: float64(quantity) * sig.Candidate.Entry,
			ExpiresAt:       sig.Candidate.GeneratedAt.Add(ttl),
		})
	}
	return final, nil
}
