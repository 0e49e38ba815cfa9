// Package risk converts ranked signals into sized, capital-bounded
// final signals and maintains per-strategy capital allocation.
package risk

import (
	"errors"
	"math"
)

// Sizing validation errors.
var (
	ErrInvalidMaxPositions = errors.New("max positions must be positive")
	ErrInvalidEntryPrice   = errors.New("entry price must be positive")
)

// SizeResult is the computed quantity and capital for one trade.
// A zero quantity is a normal outcome (entry too expensive for the
// per-trade capital slice) that callers must treat as "skip".
type SizeResult struct {
	Quantity        int64
	CapitalRequired float64
}

// PositionSizer converts capital and position constraints into a
// per-trade quantity.
type PositionSizer struct{}

// NewPositionSizer creates a position sizer.
func NewPositionSizer() *PositionSizer {
	return &PositionSizer{}
}

// Calculate sizes one trade:
//
//	per_trade_capital = total_capital / max_positions
//	quantity          = floor(per_trade_capital * multiplier / entry_price)
//	capital_required  = quantity * entry_price
//
// multiplier <= 0 is treated as 1.0.
func (s *PositionSizer) Calculate(totalCapital float64, maxPositions int, entryPrice, multiplier float64) (SizeResult, error) {
	if maxPositions <= 0 {
		return SizeResult{}, ErrInvalidMaxPositions
	}
	if entryPrice <= 0 {
		return SizeResult{}, ErrInvalidEntryPrice
	}
	if multiplier <= 0 {
		multiplier = 1.0
	}

	perTrade := totalCapital / float64(maxPositions)
	quantity := int64(math.Floor(perTrade * multiplier / entryPrice))

	return SizeResult{
		Quantity:        quantity,
		CapitalRequired: float64(quantity) * entryPrice,
	}, nil
}
