package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

func TestPerformanceStore_TrailingSummary(t *testing.T) {
	store := NewPerformanceStore()
	ctx := context.Background()

	asOf := time.Date(2025, 4, 7, 16, 0, 0, 0, time.UTC)
	outcomes := []*domain.TradeOutcome{
		{TradeID: "t1", Strategy: "gap_up", PnL: 300, Win: true, ClosedAt: asOf.AddDate(0, 0, -1)},
		{TradeID: "t2", Strategy: "gap_up", PnL: 100, Win: true, ClosedAt: asOf.AddDate(0, 0, -5)},
		{TradeID: "t3", Strategy: "gap_up", PnL: -150, Win: false, ClosedAt: asOf.AddDate(0, 0, -10)},
		// Outside the 30-day window.
		{TradeID: "t4", Strategy: "gap_up", PnL: -999, Win: false, ClosedAt: asOf.AddDate(0, 0, -45)},
		// Different strategy.
		{TradeID: "t5", Strategy: "orb", PnL: 50, Win: true, ClosedAt: asOf.AddDate(0, 0, -2)},
	}
	for _, o := range outcomes {
		if err := store.InsertOutcome(ctx, o); err != nil {
			t.Fatalf("InsertOutcome %s failed: %v", o.TradeID, err)
		}
	}

	perf, err := store.TrailingSummary(ctx, "gap_up", 30, asOf)
	if err != nil {
		t.Fatalf("TrailingSummary failed: %v", err)
	}
	if perf.Trades != 3 {
		t.Errorf("Trades = %d, want 3", perf.Trades)
	}
	if math.Abs(perf.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("WinRate = %f, want %f", perf.WinRate, 2.0/3.0)
	}
	if perf.AvgWin != 200 {
		t.Errorf("AvgWin = %f, want 200", perf.AvgWin)
	}
	if perf.AvgLoss != 150 {
		t.Errorf("AvgLoss = %f, want 150", perf.AvgLoss)
	}
}

func TestPerformanceStore_TrailingSummaryEmpty(t *testing.T) {
	store := NewPerformanceStore()
	_, err := store.TrailingSummary(context.Background(), "gap_up", 30, time.Now())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPerformanceStore_DuplicateOutcome(t *testing.T) {
	store := NewPerformanceStore()
	ctx := context.Background()

	o := &domain.TradeOutcome{TradeID: "t1", Strategy: "gap_up", PnL: 10, Win: true, ClosedAt: time.Now()}
	if err := store.InsertOutcome(ctx, o); err != nil {
		t.Fatalf("InsertOutcome failed: %v", err)
	}
	if err := store.InsertOutcome(ctx, o); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}
