package exitmonitor

import "testing"

func floatPtr(v float64) *float64 { return &v }

func TestConfigLookupResolveOrder(t *testing.T) {
	fallback := TrailingConfig{BreakevenTriggerPct: 1.0}
	lookup := NewConfigLookup(map[string]TrailingConfig{
		"orb":                TrailingConfig{BreakevenTriggerPct: 2.0},
		SetupKey("orb", "A"): TrailingConfig{BreakevenTriggerPct: 3.0},
	}, fallback)

	if got := lookup.Resolve("orb", "A").BreakevenTriggerPct; got != 3.0 {
		t.Errorf("setup key: got %v, want 3.0", got)
	}
	if got := lookup.Resolve("orb", "B").BreakevenTriggerPct; got != 2.0 {
		t.Errorf("strategy fallback: got %v, want 2.0", got)
	}
	if got := lookup.Resolve("orb", "").BreakevenTriggerPct; got != 2.0 {
		t.Errorf("empty setup: got %v, want 2.0", got)
	}
	if got := lookup.Resolve("vwap", "A").BreakevenTriggerPct; got != 1.0 {
		t.Errorf("default fallback: got %v, want 1.0", got)
	}
}

func TestConfigLookupCopiesEntries(t *testing.T) {
	entries := map[string]TrailingConfig{"orb": {BreakevenTriggerPct: 2.0}}
	lookup := NewConfigLookup(entries, TrailingConfig{})

	entries["orb"] = TrailingConfig{BreakevenTriggerPct: 9.0}

	if got := lookup.Resolve("orb", "").BreakevenTriggerPct; got != 2.0 {
		t.Errorf("lookup shares caller map: got %v, want 2.0", got)
	}
}
