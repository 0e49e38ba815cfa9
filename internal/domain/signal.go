package domain

import (
	"errors"
	"fmt"
	"time"
)

// Direction of a trade candidate.
type Direction string

// Direction constants.
const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// CandidateSignal represents an unconfirmed, unscored trade opportunity
// proposed by one strategy. Immutable once produced.
//
// GapPct, VolumeRatio and DistancePct carry strategy-specific meanings:
// for GAP_UP candidates they are gap percent, volume ratio and distance
// from open; ORB candidates reuse GapPct for opening-range size and
// VWAP candidates reuse GapPct for trend ratio and DistancePct for
// touch precision. Callers must interpret them through the strategy name.
type CandidateSignal struct {
	SignalID  string // deterministic hash
	Symbol    string // instrument symbol
	Direction Direction
	Strategy  string // originating strategy name
	Setup     string // optional setup sub-type ("" if none)

	Entry    float64
	StopLoss float64
	Target1  float64
	Target2  float64

	// StrategyScore is the strategy's own normalized score in [0,1].
	// Nil when the strategy does not score its candidates.
	StrategyScore *float64

	GapPct      float64
	VolumeRatio float64
	DistancePct float64

	GeneratedAt time.Time
}

// ConfirmationLevel is the number of distinct agreeing strategies,
// saturating at triple.
type ConfirmationLevel string

// Confirmation level constants.
const (
	ConfirmationSingle ConfirmationLevel = "single"
	ConfirmationDouble ConfirmationLevel = "double"
	ConfirmationTriple ConfirmationLevel = "triple"
)

// ErrInvalidConfirmationLevel is returned when a string does not name a
// known confirmation level.
var ErrInvalidConfirmationLevel = errors.New("invalid confirmation level")

// ParseConfirmationLevel validates a confirmation level at a string boundary.
func ParseConfirmationLevel(s string) (ConfirmationLevel, error) {
	switch ConfirmationLevel(s) {
	case ConfirmationSingle, ConfirmationDouble, ConfirmationTriple:
		return ConfirmationLevel(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidConfirmationLevel, s)
	}
}

// StarBoost returns the star-rating boost for the level (0/1/2).
func (l ConfirmationLevel) StarBoost() int {
	switch l {
	case ConfirmationDouble:
		return 1
	case ConfirmationTriple:
		return 2
	default:
		return 0
	}
}

// SizeMultiplier returns the position-size multiplier for the level
// (1.0/1.5/2.0).
func (l ConfirmationLevel) SizeMultiplier() float64 {
	switch l {
	case ConfirmationDouble:
		return 1.5
	case ConfirmationTriple:
		return 2.0
	default:
		return 1.0
	}
}

// ConfirmationResult is the cross-strategy agreement for one instrument
// within one scan cycle. Recomputed each cycle, never persisted.
type ConfirmationResult struct {
	Level          ConfirmationLevel
	Strategies     []string // distinct confirming strategy names
	StarBoost      int      // 0/1/2
	SizeMultiplier float64  // 1.0/1.5/2.0
}

// CompositeScoreResult holds the 0-100 blended score and its components.
// One result per candidate per cycle.
type CompositeScoreResult struct {
	Composite         float64 // weighted sum, clamped to [0,100]
	StrategyStrength  float64 // 0-100
	WinRate           float64 // 0-100
	RiskReward        float64 // 0-100
	ConfirmationBonus float64 // 0/50/100
}

// RankedSignal is a candidate plus score, ordinal rank and star rating.
type RankedSignal struct {
	Candidate CandidateSignal
	Score     float64 // normalized to [0,1]
	Rank      int     // 1-based, assigned by the ranker
	Stars     int     // 1-5
}

// FinalSignal is a ranked signal plus computed quantity and capital.
// This is the unit handed to delivery and then to the exit monitor.
type FinalSignal struct {
	RankedSignal

	Quantity        int64 // always > 0
	CapitalRequired float64
	ExpiresAt       time.Time // GeneratedAt + signal TTL
}
