package domain

import (
	"errors"
	"fmt"
	"time"
)

// TradeStatus of an open or closed position.
type TradeStatus string

// Trade status constants.
const (
	TradeStatusOpen   TradeStatus = "OPEN"
	TradeStatusClosed TradeStatus = "CLOSED"
)

// ExitReason codes for closing a monitored trade.
type ExitReason string

// Exit reason constants.
const (
	ExitReasonStopLoss   ExitReason = "sl_hit"
	ExitReasonTrailingSL ExitReason = "trailing_sl"
	ExitReasonTarget2    ExitReason = "t2_hit"
	ExitReasonTimeExit   ExitReason = "time_exit"
)

// ErrInvalidExitReason is returned when a string does not name a known
// exit reason.
var ErrInvalidExitReason = errors.New("invalid exit reason")

// ParseExitReason validates an exit reason at a string boundary.
func ParseExitReason(s string) (ExitReason, error) {
	switch ExitReason(s) {
	case ExitReasonStopLoss, ExitReasonTrailingSL, ExitReasonTarget2, ExitReasonTimeExit:
		return ExitReason(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidExitReason, s)
	}
}

// Trade represents an open position under exit monitoring.
type Trade struct {
	TradeID   string
	Symbol    string
	Direction Direction
	Strategy  string
	Setup     string // optional setup sub-type ("" if none)

	Entry    float64
	StopLoss float64
	Target1  float64
	Target2  float64
	Quantity int64

	EnteredAt time.Time
	Status    TradeStatus

	// Exit fields, populated when Status is CLOSED.
	ExitReason ExitReason
	ExitPrice  float64
	ClosedAt   time.Time
}

// PnLPct returns the unrealized profit percentage at price.
func (t *Trade) PnLPct(price float64) float64 {
	if t.Entry == 0 {
		return 0
	}
	return (price - t.Entry) / t.Entry * 100
}

// ExitAlert is emitted by the exit monitor for delivery. ExitReason is
// nil for advisory alerts that do not close the trade.
type ExitAlert struct {
	Trade            Trade
	ExitReason       *ExitReason
	CurrentPrice     float64
	PnLPct           float64
	IsAlertOnly      bool
	KeyboardHint     string   // suggested manual action, e.g. "book partial at T1"
	TrailingSLUpdate *float64 // new stop-loss if this tick moved it
	EmittedAt        time.Time
}

// TradeOutcome is the realized result of a closed trade, consumed by
// performance aggregation.
type TradeOutcome struct {
	TradeID  string
	Strategy string
	Symbol   string
	PnL      float64
	PnLPct   float64
	Win      bool
	ClosedAt time.Time
}

// Tick is the latest observed market quote for one symbol.
type Tick struct {
	Symbol    string
	Last      float64
	Open      float64
	High      float64
	Low       float64
	PrevClose float64
	At        time.Time
}
