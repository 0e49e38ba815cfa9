package confirmation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage/memory"
)

func makeCandidate(symbol, strategy string, generatedAt time.Time) domain.CandidateSignal {
	return domain.CandidateSignal{
		SignalID:    symbol + "-" + strategy,
		Symbol:      symbol,
		Strategy:    strategy,
		Direction:   domain.DirectionLong,
		Entry:       100,
		StopLoss:    95,
		Target1:     105,
		Target2:     110,
		GeneratedAt: generatedAt,
	}
}

func TestDetector_Levels(t *testing.T) {
	now := time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)
	detector := NewDetector(nil, 0, zerolog.Nop())

	batch := []domain.CandidateSignal{
		makeCandidate("SINGLE", "gap_up", now),
		makeCandidate("DOUBLE", "gap_up", now),
		makeCandidate("DOUBLE", "orb", now),
		makeCandidate("TRIPLE", "gap_up", now),
		makeCandidate("TRIPLE", "orb", now),
		makeCandidate("TRIPLE", "vwap", now),
	}

	results := detector.Detect(context.Background(), batch, now)
	if len(results) != len(batch) {
		t.Fatalf("expected %d detections, got %d", len(batch), len(results))
	}

	want := map[string]domain.ConfirmationLevel{
		"SINGLE": domain.ConfirmationSingle,
		"DOUBLE": domain.ConfirmationDouble,
		"TRIPLE": domain.ConfirmationTriple,
	}
	for i, det := range results {
		// Input order preserved.
		if det.Candidate.SignalID != batch[i].SignalID {
			t.Errorf("detection %d out of order: %s", i, det.Candidate.SignalID)
		}
		if det.Result.Level != want[det.Candidate.Symbol] {
			t.Errorf("%s: level = %s, want %s", det.Candidate.Symbol, det.Result.Level, want[det.Candidate.Symbol])
		}
	}
}

func TestDetector_DuplicateStrategyCountsOnce(t *testing.T) {
	now := time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)
	detector := NewDetector(nil, 0, zerolog.Nop())

	batch := []domain.CandidateSignal{
		makeCandidate("RELIANCE", "gap_up", now),
		makeCandidate("RELIANCE", "gap_up", now.Add(time.Second)),
	}

	results := detector.Detect(context.Background(), batch, now)
	for _, det := range results {
		if det.Result.Level != domain.ConfirmationSingle {
			t.Errorf("duplicate same-strategy candidates upgraded level to %s", det.Result.Level)
		}
	}
}

func TestDetector_SaturatesAtTriple(t *testing.T) {
	now := time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)
	detector := NewDetector(nil, 0, zerolog.Nop())

	batch := []domain.CandidateSignal{
		makeCandidate("RELIANCE", "gap_up", now),
		makeCandidate("RELIANCE", "orb", now),
		makeCandidate("RELIANCE", "vwap", now),
		makeCandidate("RELIANCE", "reversal", now),
	}

	results := detector.Detect(context.Background(), batch, now)
	for _, det := range results {
		if det.Result.Level != domain.ConfirmationTriple {
			t.Errorf("level = %s, want triple", det.Result.Level)
		}
		if det.Result.SizeMultiplier != 2.0 {
			t.Errorf("multiplier = %f, want 2.0", det.Result.SizeMultiplier)
		}
	}
}

func TestDetector_LookbackMerge(t *testing.T) {
	now := time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	store := memory.NewSignalStore()
	// Delivered 10 minutes ago by a different strategy: inside the window.
	recent := &domain.FinalSignal{
		RankedSignal: domain.RankedSignal{
			Candidate: makeCandidate("RELIANCE", "orb", now.Add(-10*time.Minute)),
		},
		Quantity: 1,
	}
	if err := store.Insert(ctx, recent); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	// Delivered 20 minutes ago: outside the 15-minute window.
	stale := &domain.FinalSignal{
		RankedSignal: domain.RankedSignal{
			Candidate: makeCandidate("RELIANCE", "vwap", now.Add(-20*time.Minute)),
		},
		Quantity: 1,
	}
	stale.Candidate.SignalID = "stale"
	if err := store.Insert(ctx, stale); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	detector := NewDetector(store, 15*time.Minute, zerolog.Nop())
	batch := []domain.CandidateSignal{makeCandidate("RELIANCE", "gap_up", now)}

	results := detector.Detect(ctx, batch, now)
	if results[0].Result.Level != domain.ConfirmationDouble {
		t.Errorf("level = %s, want double (in-batch gap_up + recent orb)", results[0].Result.Level)
	}
}

func TestDetector_NoCrossSymbolConfirmation(t *testing.T) {
	now := time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)
	detector := NewDetector(nil, 0, zerolog.Nop())

	batch := []domain.CandidateSignal{
		makeCandidate("RELIANCE", "gap_up", now),
		makeCandidate("TCS", "orb", now),
	}

	results := detector.Detect(context.Background(), batch, now)
	for _, det := range results {
		if det.Result.Level != domain.ConfirmationSingle {
			t.Errorf("%s: cross-symbol confirmation leaked, level = %s", det.Candidate.Symbol, det.Result.Level)
		}
	}
}
