package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// Allocation policy constants.
const (
	// DefaultReserve is the fraction of capital never allocated to any
	// strategy.
	DefaultReserve = 0.20

	lowWinRateThreshold  = 0.40
	highWinRateThreshold = 0.70
	highWinRateBonus     = 0.10
	maxStrategyWeight    = 0.50

	// minTradesForAdaptive gates the adaptive overlay: strategies with
	// fewer trailing trades keep their expectancy-derived weight.
	minTradesForAdaptive = 10

	allocatorTrailingDays = 30
)

// CapitalAllocator computes per-strategy capital weights from trailing
// performance, with an adaptive auto-pause/bonus overlay and a manual
// override mode.
type CapitalAllocator struct {
	perf      storage.PerformanceStore
	weightLog storage.WeightChangeStore
	log       zerolog.Logger
	reserve   float64

	mu     sync.Mutex
	manual map[string]float64 // nil when override disabled
}

// NewCapitalAllocator creates an allocator. reserve <= 0 selects the
// default 20%.
func NewCapitalAllocator(perf storage.PerformanceStore, weightLog storage.WeightChangeStore, reserve float64, log zerolog.Logger) *CapitalAllocator {
	if reserve <= 0 {
		reserve = DefaultReserve
	}
	return &CapitalAllocator{
		perf:      perf,
		weightLog: weightLog,
		log:       log,
		reserve:   reserve,
	}
}

// SetManualWeights pins explicit weights and bypasses the adaptive
// rules until ClearManualWeights is called.
func (a *CapitalAllocator) SetManualWeights(weights map[string]float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manual = make(map[string]float64, len(weights))
	for k, v := range weights {
		a.manual[k] = v
	}
}

// ClearManualWeights re-enables adaptive allocation.
func (a *CapitalAllocator) ClearManualWeights() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manual = nil
}

// Allocate computes the per-strategy allocation set as of asOf. The
// returned weights always sum to at most 1-reserve.
func (a *CapitalAllocator) Allocate(ctx context.Context, strategies []string, totalCapital float64, maxPositionsPerStrategy int, asOf time.Time) ([]domain.StrategyAllocation, error) {
	if len(strategies) == 0 {
		return nil, nil
	}

	a.mu.Lock()
	manual := a.manual
	a.mu.Unlock()

	if manual != nil {
		return a.allocateManual(strategies, manual, totalCapital, maxPositionsPerStrategy), nil
	}

	budget := 1 - a.reserve

	// Trailing performance per strategy; missing data is not fatal.
	perfs := make(map[string]*domain.StrategyPerformance, len(strategies))
	hasData := false
	for _, name := range strategies {
		perf, err := a.perf.TrailingSummary(ctx, name, allocatorTrailingDays, asOf)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				a.log.Warn().Err(err).Str("strategy", name).Msg("trailing summary fetch failed")
			}
			continue
		}
		perfs[name] = perf
		hasData = true
	}

	// Base weights: positive expectancies normalized to the budget, or
	// an equal split when nothing has an edge.
	weights := make(map[string]float64, len(strategies))
	var expectancySum float64
	for _, name := range strategies {
		if perf := perfs[name]; perf != nil {
			expectancySum += perf.Expectancy()
		}
	}
	if expectancySum > 0 {
		for _, name := range strategies {
			if perf := perfs[name]; perf != nil {
				weights[name] = perf.Expectancy() / expectancySum * budget
			}
		}
	} else {
		equal := budget / float64(len(strategies))
		for _, name := range strategies {
			weights[name] = equal
		}
	}

	// Adaptive overlay, applied only when trailing data exists.
	paused := make(map[string]bool)
	if hasData {
		for _, name := range strategies {
			perf := perfs[name]
			if perf == nil || perf.Trades < minTradesForAdaptive {
				continue
			}
			old := weights[name]
			switch {
			case perf.WinRate < lowWinRateThreshold:
				weights[name] = 0
				paused[name] = true
				a.recordWeightChange(ctx, asOf, name, domain.WeightEventAutoPauseLowWinRate,
					fmt.Sprintf("trailing win rate %.1f%% below %.0f%%", perf.WinRate*100, lowWinRateThreshold*100),
					old, 0)
			case perf.WinRate > highWinRateThreshold:
				bonus := old + highWinRateBonus
				if bonus > maxStrategyWeight {
					bonus = maxStrategyWeight
				}
				if bonus != old {
					weights[name] = bonus
					a.recordWeightChange(ctx, asOf, name, domain.WeightEventHighWinRateBonus,
						fmt.Sprintf("trailing win rate %.1f%% above %.0f%%", perf.WinRate*100, highWinRateThreshold*100),
						old, bonus)
				}
			}
		}

		// Rescale proportionally when the adjusted total exceeds the budget.
		var total float64
		for _, w := range weights {
			total += w
		}
		if total > budget {
			scale := budget / total
			for name, w := range weights {
				weights[name] = w * scale
			}
			a.log.Info().Float64("scale", scale).Msg("allocation rescaled to fit reserve")
		}
	}

	result := make([]domain.StrategyAllocation, 0, len(strategies))
	for _, name := range strategies {
		w := weights[name]
		result = append(result, domain.StrategyAllocation{
			Strategy:     name,
			Weight:       w,
			Capital:      w * totalCapital,
			MaxPositions: maxPositionsPerStrategy,
			AutoPaused:   paused[name],
		})
	}
	return result, nil
}

// allocateManual pins explicit weights; unknown strategies get zero.
func (a *CapitalAllocator) allocateManual(strategies []string, manual map[string]float64, totalCapital float64, maxPositionsPerStrategy int) []domain.StrategyAllocation {
	result := make([]domain.StrategyAllocation, 0, len(strategies))
	for _, name := range strategies {
		w := manual[name]
		result = append(result, domain.StrategyAllocation{
			Strategy:     name,
			Weight:       w,
			Capital:      w * totalCapital,
			MaxPositions: maxPositionsPerStrategy,
		})
	}
	return result
}

// recordWeightChange writes the audit entry; persistence failures are
// logged, never raised.
func (a *CapitalAllocator) recordWeightChange(ctx context.Context, date time.Time, strategy, eventType, details string, oldWeight, newWeight float64) {
	a.log.Info().
		Str("strategy", strategy).
		Str("event", eventType).
		Float64("old_weight", oldWeight).
		Float64("new_weight", newWeight).
		Msg(details)

	if a.weightLog == nil {
		return
	}
	event := &domain.WeightChangeEvent{
		Date:      date,
		Strategy:  strategy,
		EventType: eventType,
		Details:   details,
		OldWeight: oldWeight,
		NewWeight: newWeight,
	}
	if err := a.weightLog.Insert(ctx, event); err != nil {
		a.log.Warn().Err(err).Str("strategy", strategy).Msg("weight-change audit write failed")
	}
}
