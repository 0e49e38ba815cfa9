package exitmonitor

import "time"

// TrailingStopState is the mutable per-trade state, owned exclusively
// by the monitor for the trade's lifetime. Created on StartMonitoring,
// destroyed when the trade closes, never resurrected. JSON tags support
// snapshot/restore across restarts.
type TrailingStopState struct {
	TradeID  string `json:"trade_id"`
	Strategy string `json:"strategy"`
	Setup    string `json:"setup,omitempty"`

	OriginalSL   float64 `json:"original_sl"`
	CurrentSL    float64 `json:"current_sl"` // monotonically non-decreasing
	HighestPrice float64 `json:"highest_price"`

	// One-shot advisory and trailing-progression flags.
	T1Alerted        bool `json:"t1_alerted"`
	NearT2Alerted    bool `json:"near_t2_alerted"`
	BreakevenApplied bool `json:"breakeven_applied"`
	TrailingActive   bool `json:"trailing_active"`

	// LastSLApproachAlert rate-limits the SL-approaching advisory.
	LastSLApproachAlert time.Time `json:"last_sl_approach_alert"`
}
