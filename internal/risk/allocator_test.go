package risk

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
	"equity-signal-lab/internal/storage/memory"
)

// fakeSummaryStore serves canned per-strategy summaries.
type fakeSummaryStore struct {
	summaries map[string]*domain.StrategyPerformance
}

func (f *fakeSummaryStore) InsertOutcome(context.Context, *domain.TradeOutcome) error { return nil }

func (f *fakeSummaryStore) TrailingSummary(_ context.Context, strategy string, _ int, _ time.Time) (*domain.StrategyPerformance, error) {
	if perf, ok := f.summaries[strategy]; ok {
		return perf, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeSummaryStore) GetByDateRange(context.Context, time.Time, time.Time) ([]*domain.TradeOutcome, error) {
	return nil, nil
}

func weightSum(allocs []domain.StrategyAllocation) float64 {
	var sum float64
	for _, a := range allocs {
		sum += a.Weight
	}
	return sum
}

func TestAllocator_EqualSplitWithoutData(t *testing.T) {
	allocator := NewCapitalAllocator(&fakeSummaryStore{}, nil, 0, zerolog.Nop())

	allocs, err := allocator.Allocate(context.Background(), []string{"gap_up", "orb", "vwap", "reversal"}, 100000, 2, time.Now())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	for _, a := range allocs {
		if math.Abs(a.Weight-0.2) > 1e-9 {
			t.Errorf("%s: weight = %f, want equal split 0.2", a.Strategy, a.Weight)
		}
		if a.AutoPaused {
			t.Errorf("%s: paused without trailing data", a.Strategy)
		}
	}
	if sum := weightSum(allocs); math.Abs(sum-0.8) > 1e-9 {
		t.Errorf("weights sum = %f, want 0.8", sum)
	}
}

func TestAllocator_ExpectancyProportional(t *testing.T) {
	perf := &fakeSummaryStore{summaries: map[string]*domain.StrategyPerformance{
		// Expectancy 0.6*300 - 0.4*100 = 140.
		"gap_up": {Strategy: "gap_up", Trades: 30, WinRate: 0.6, AvgWin: 300, AvgLoss: 100},
		// Expectancy 0.5*240 - 0.5*100 = 70.
		"orb": {Strategy: "orb", Trades: 30, WinRate: 0.5, AvgWin: 240, AvgLoss: 100},
	}}
	allocator := NewCapitalAllocator(perf, nil, 0, zerolog.Nop())

	allocs, err := allocator.Allocate(context.Background(), []string{"gap_up", "orb"}, 100000, 2, time.Now())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	byName := map[string]domain.StrategyAllocation{}
	for _, a := range allocs {
		byName[a.Strategy] = a
	}

	// gap_up: 140/(140+70) * 0.8, orb: 70/210 * 0.8.
	wantGap := 140.0 / 210.0 * 0.8
	wantORB := 70.0 / 210.0 * 0.8
	if math.Abs(byName["gap_up"].Weight-wantGap) > 1e-9 {
		t.Errorf("gap_up weight = %f, want %f", byName["gap_up"].Weight, wantGap)
	}
	if math.Abs(byName["orb"].Weight-wantORB) > 1e-9 {
		t.Errorf("orb weight = %f, want %f", byName["orb"].Weight, wantORB)
	}
	if byName["gap_up"].Capital != byName["gap_up"].Weight*100000 {
		t.Errorf("capital not derived from weight")
	}
}

func TestAllocator_AutoPauseLowWinRate(t *testing.T) {
	perf := &fakeSummaryStore{summaries: map[string]*domain.StrategyPerformance{
		"gap_up":   {Strategy: "gap_up", Trades: 12, WinRate: 0.25, AvgWin: 500, AvgLoss: 100},
		"orb":      {Strategy: "orb", Trades: 15, WinRate: 0.25, AvgWin: 500, AvgLoss: 100},
		"reversal": {Strategy: "reversal", Trades: 20, WinRate: 0.25, AvgWin: 500, AvgLoss: 100},
	}}
	weightLog := memory.NewWeightChangeStore()
	allocator := NewCapitalAllocator(perf, weightLog, 0, zerolog.Nop())

	asOf := time.Date(2025, 4, 7, 16, 0, 0, 0, time.UTC)
	allocs, err := allocator.Allocate(context.Background(), []string{"gap_up", "orb", "reversal"}, 100000, 2, asOf)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	for _, a := range allocs {
		if a.Weight != 0 {
			t.Errorf("%s: weight = %f, want 0 (auto-paused)", a.Strategy, a.Weight)
		}
		if !a.AutoPaused {
			t.Errorf("%s: expected AutoPaused flag", a.Strategy)
		}
	}

	events, err := weightLog.GetByDate(context.Background(), asOf)
	if err != nil {
		t.Fatalf("GetByDate failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}
	for _, e := range events {
		if e.EventType != domain.WeightEventAutoPauseLowWinRate {
			t.Errorf("event type = %s, want %s", e.EventType, domain.WeightEventAutoPauseLowWinRate)
		}
		if e.NewWeight != 0 {
			t.Errorf("event new weight = %f, want 0", e.NewWeight)
		}
	}
}

func TestAllocator_HighWinRateBonusAndRescale(t *testing.T) {
	perf := &fakeSummaryStore{summaries: map[string]*domain.StrategyPerformance{
		// 90% win rate with dominant expectancy: gets the bonus, then a
		// rescale keeps the set within the budget.
		"gap_up": {Strategy: "gap_up", Trades: 40, WinRate: 0.9, AvgWin: 400, AvgLoss: 100},
		"orb":    {Strategy: "orb", Trades: 40, WinRate: 0.55, AvgWin: 200, AvgLoss: 150},
	}}
	allocator := NewCapitalAllocator(perf, nil, 0, zerolog.Nop())

	allocs, err := allocator.Allocate(context.Background(), []string{"gap_up", "orb"}, 100000, 2, time.Now())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	if sum := weightSum(allocs); sum > 0.8+1e-9 {
		t.Errorf("weights sum = %f, must never exceed 0.8", sum)
	}

	byName := map[string]domain.StrategyAllocation{}
	for _, a := range allocs {
		byName[a.Strategy] = a
	}
	if byName["gap_up"].Weight <= byName["orb"].Weight {
		t.Errorf("bonus strategy should keep the larger weight")
	}
	if byName["gap_up"].Weight > maxStrategyWeight+1e-9 {
		t.Errorf("gap_up weight = %f, exceeds the %.0f%% cap", byName["gap_up"].Weight, maxStrategyWeight*100)
	}
}

func TestAllocator_AdaptiveSkipsThinHistory(t *testing.T) {
	perf := &fakeSummaryStore{summaries: map[string]*domain.StrategyPerformance{
		// Low win rate but only 4 trades: no pause.
		"gap_up": {Strategy: "gap_up", Trades: 4, WinRate: 0.25, AvgWin: 500, AvgLoss: 100},
	}}
	allocator := NewCapitalAllocator(perf, nil, 0, zerolog.Nop())

	allocs, err := allocator.Allocate(context.Background(), []string{"gap_up"}, 100000, 2, time.Now())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if allocs[0].AutoPaused {
		t.Errorf("strategy with %d trades must not auto-pause", 4)
	}
	if allocs[0].Weight == 0 {
		t.Errorf("weight zeroed despite thin history")
	}
}

func TestAllocator_ManualOverride(t *testing.T) {
	perf := &fakeSummaryStore{summaries: map[string]*domain.StrategyPerformance{
		"gap_up": {Strategy: "gap_up", Trades: 20, WinRate: 0.25, AvgWin: 500, AvgLoss: 100},
	}}
	allocator := NewCapitalAllocator(perf, nil, 0, zerolog.Nop())
	allocator.SetManualWeights(map[string]float64{"gap_up": 0.3, "orb": 0.5})

	allocs, err := allocator.Allocate(context.Background(), []string{"gap_up", "orb"}, 100000, 2, time.Now())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	byName := map[string]domain.StrategyAllocation{}
	for _, a := range allocs {
		byName[a.Strategy] = a
	}
	// Pinned weights bypass the auto-pause that the 25% win rate would trigger.
	if byName["gap_up"].Weight != 0.3 || byName["gap_up"].AutoPaused {
		t.Errorf("manual override not honored: %+v", byName["gap_up"])
	}
	if byName["orb"].Weight != 0.5 {
		t.Errorf("orb weight = %f, want 0.5", byName["orb"].Weight)
	}

	// Re-enabling adaptive mode restores the pause behavior.
	allocator.ClearManualWeights()
	allocs, err = allocator.Allocate(context.Background(), []string{"gap_up"}, 100000, 2, time.Now())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if !allocs[0].AutoPaused {
		t.Errorf("adaptive rules not restored after ClearManualWeights")
	}
}
