// Package confirmation detects cross-strategy agreement on an instrument
// within one scan cycle plus a short look-back window.
package confirmation

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// DefaultWindow is the look-back window for cross-cycle confirmation.
const DefaultWindow = 15 * time.Minute

// Detection pairs a candidate with its confirmation result.
type Detection struct {
	Candidate domain.CandidateSignal
	Result    domain.ConfirmationResult
}

// Detector computes confirmation levels per instrument per cycle.
type Detector struct {
	lookback storage.SignalStore
	window   time.Duration
	log      zerolog.Logger
}

// NewDetector creates a confirmation detector. lookback may be nil, in
// which case only in-batch confirmation is computed.
func NewDetector(lookback storage.SignalStore, window time.Duration, log zerolog.Logger) *Detector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Detector{lookback: lookback, window: window, log: log}
}

// Detect returns one Detection per input candidate, preserving input
// order. Within one cycle all candidates of one symbol share the same
// level. A look-back failure degrades to in-batch confirmation only.
func (d *Detector) Detect(ctx context.Context, batch []domain.CandidateSignal, now time.Time) []Detection {
	// Distinct strategy names per symbol from the current batch.
	inBatch := make(map[string]map[string]struct{})
	for _, c := range batch {
		if inBatch[c.Symbol] == nil {
			inBatch[c.Symbol] = make(map[string]struct{})
		}
		inBatch[c.Symbol][c.Strategy] = struct{}{}
	}

	// Merge recently delivered signals for each symbol. Same-strategy
	// repeats never upgrade the level.
	since := now.Add(-d.window)
	merged := make(map[string]map[string]struct{}, len(inBatch))
	for symbol, strategies := range inBatch {
		set := make(map[string]struct{}, len(strategies))
		for s := range strategies {
			set[s] = struct{}{}
		}
		if d.lookback != nil {
			recent, err := d.lookback.RecentBySymbol(ctx, symbol, since)
			if err != nil {
				d.log.Warn().Err(err).Str("symbol", symbol).
					Msg("confirmation look-back failed, using in-batch only")
			} else {
				for _, sig := range recent {
					set[sig.Candidate.Strategy] = struct{}{}
				}
			}
		}
		merged[symbol] = set
	}

	results := make([]Detection, 0, len(batch))
	for _, c := range batch {
		level := levelFor(len(merged[c.Symbol]))
		results = append(results, Detection{
			Candidate: c,
			Result: domain.ConfirmationResult{
				Level:          level,
				Strategies:     sortedKeys(merged[c.Symbol]),
				StarBoost:      level.StarBoost(),
				SizeMultiplier: level.SizeMultiplier(),
			},
		})
	}
	return results
}

// levelFor maps a distinct-strategy count to a confirmation level,
// saturating at triple.
func levelFor(distinct int) domain.ConfirmationLevel {
	switch {
	case distinct >= 3:
		return domain.ConfirmationTriple
	case distinct == 2:
		return domain.ConfirmationDouble
	default:
		return domain.ConfirmationSingle
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
