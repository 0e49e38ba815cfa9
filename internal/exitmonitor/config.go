// Package exitmonitor drives the per-trade trailing-stop state machine:
// it evaluates every open trade against the latest tick and emits exit
// closes or advisory alerts in a fixed priority order.
package exitmonitor

// TrailingConfig is the per-strategy (optionally per-setup) trailing
// stop policy. Trail fields are optional: a strategy without them only
// gets the breakeven move.
type TrailingConfig struct {
	// BreakevenTriggerPct moves the stop to entry once profit reaches
	// this percentage.
	BreakevenTriggerPct float64 `yaml:"breakeven_trigger_pct"`

	// TrailTriggerPct starts trailing once profit reaches this
	// percentage. Nil disables trailing.
	TrailTriggerPct *float64 `yaml:"trail_trigger_pct"`

	// TrailDistancePct keeps the stop this far below the latest price
	// while trailing.
	TrailDistancePct *float64 `yaml:"trail_distance_pct"`
}

// ConfigLookup resolves trailing configs through an explicit fallback
// chain: setup-specific key first, then the strategy key, then the
// constructor default.
type ConfigLookup struct {
	entries  map[string]TrailingConfig
	fallback TrailingConfig
}

// NewConfigLookup creates a lookup. Entries are keyed by strategy name
// or by SetupKey(strategy, setup).
func NewConfigLookup(entries map[string]TrailingConfig, fallback TrailingConfig) *ConfigLookup {
	cp := make(map[string]TrailingConfig, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return &ConfigLookup{entries: cp, fallback: fallback}
}

// SetupKey builds the setup-specific lookup key.
func SetupKey(strategy, setup string) string {
	return strategy + ":" + setup
}

// Resolve returns the first configured entry in priority order.
func (l *ConfigLookup) Resolve(strategy, setup string) TrailingConfig {
	keys := make([]string, 0, 2)
	if setup != "" {
		keys = append(keys, SetupKey(strategy, setup))
	}
	keys = append(keys, strategy)

	for _, k := range keys {
		if cfg, ok := l.entries[k]; ok {
			return cfg
		}
	}
	return l.fallback
}
