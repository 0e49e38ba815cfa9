package risk

import (
	"errors"
	"testing"
)

func TestPositionSizer_Calculate(t *testing.T) {
	sizer := NewPositionSizer()

	// 50000 / 5 = 10000 per trade; floor(10000/645) = 15; 15*645 = 9675.
	result, err := sizer.Calculate(50000, 5, 645, 1.0)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if result.Quantity != 15 {
		t.Errorf("Quantity = %d, want 15", result.Quantity)
	}
	if result.CapitalRequired != 9675.0 {
		t.Errorf("CapitalRequired = %f, want 9675.0", result.CapitalRequired)
	}
}

func TestPositionSizer_FloorsNotRounds(t *testing.T) {
	sizer := NewPositionSizer()

	// 10000 / 999.99 = 10.0001 -> floor gives 10, never 11.
	result, err := sizer.Calculate(50000, 5, 999.99, 1.0)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if result.Quantity != 10 {
		t.Errorf("Quantity = %d, want 10 (floor, not round)", result.Quantity)
	}
}

func TestPositionSizer_Multiplier(t *testing.T) {
	sizer := NewPositionSizer()

	// Triple confirmation doubles the capital slice.
	result, err := sizer.Calculate(50000, 5, 645, 2.0)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if result.Quantity != 31 {
		t.Errorf("Quantity = %d, want 31", result.Quantity)
	}

	// Non-positive multiplier defaults to 1.0.
	result, err = sizer.Calculate(50000, 5, 645, 0)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if result.Quantity != 15 {
		t.Errorf("Quantity with zero multiplier = %d, want 15", result.Quantity)
	}
}

func TestPositionSizer_ZeroQuantityIsNotError(t *testing.T) {
	sizer := NewPositionSizer()

	// Entry far above the per-trade slice: skip, not error.
	result, err := sizer.Calculate(50000, 5, 25000, 1.0)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if result.Quantity != 0 {
		t.Errorf("Quantity = %d, want 0", result.Quantity)
	}
	if result.CapitalRequired != 0 {
		t.Errorf("CapitalRequired = %f, want 0", result.CapitalRequired)
	}
}

func TestPositionSizer_Validation(t *testing.T) {
	sizer := NewPositionSizer()

	if _, err := sizer.Calculate(50000, 0, 645, 1.0); !errors.Is(err, ErrInvalidMaxPositions) {
		t.Errorf("expected ErrInvalidMaxPositions, got %v", err)
	}
	if _, err := sizer.Calculate(50000, -3, 645, 1.0); !errors.Is(err, ErrInvalidMaxPositions) {
		t.Errorf("expected ErrInvalidMaxPositions, got %v", err)
	}
	if _, err := sizer.Calculate(50000, 5, 0, 1.0); !errors.Is(err, ErrInvalidEntryPrice) {
		t.Errorf("expected ErrInvalidEntryPrice, got %v", err)
	}
	if _, err := sizer.Calculate(50000, 5, -10, 1.0); !errors.Is(err, ErrInvalidEntryPrice) {
		t.Errorf("expected ErrInvalidEntryPrice, got %v", err)
	}
}
