package domain

import "time"

// StrategyPerformance is a trailing summary of one strategy's closed
// trades over a look-back window.
type StrategyPerformance struct {
	Strategy string
	Trades   int
	WinRate  float64 // [0,1]
	AvgWin   float64 // mean profit of winning trades, absolute
	AvgLoss  float64 // mean loss of losing trades, absolute (positive number)
}

// Expectancy returns win_rate*avg_win - (1-win_rate)*avg_loss, floored at 0.
func (p *StrategyPerformance) Expectancy() float64 {
	e := p.WinRate*p.AvgWin - (1-p.WinRate)*p.AvgLoss
	if e < 0 {
		return 0
	}
	return e
}

// StrategyAllocation is the per-strategy capital split, recomputed daily
// or on manual override.
type StrategyAllocation struct {
	Strategy     string
	Weight       float64 // fraction of total capital, [0, 0.5]
	Capital      float64 // Weight * total capital
	MaxPositions int
	AutoPaused   bool // flagged for external auto-pause (low win rate)
}

// Weight-change event types for the audit log.
const (
	WeightEventAutoPauseLowWinRate = "auto_pause_low_win_rate"
	WeightEventHighWinRateBonus    = "high_win_rate_bonus"
	WeightEventRescale             = "rescale_to_reserve"
	WeightEventManualOverride      = "manual_override"
)

// WeightChangeEvent records one adjustment to a strategy's capital weight.
type WeightChangeEvent struct {
	Date      time.Time
	Strategy  string
	EventType string
	Details   string
	OldWeight float64
	NewWeight float64
}

// RegimeModifiers are optional overrides supplied by the external
// market-regime classifier. Zero-value fields mean "no override".
type RegimeModifiers struct {
	MinStars             int                // minimum star rating, 0 = no filter
	MaxPositions         int                // 0 = keep configured limit
	PositionSizeModifier float64            // multiplicative, 0 = no change
	StrategyWeightHints  map[string]float64 // advisory per-strategy weights
}
