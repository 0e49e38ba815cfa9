package exitmonitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/marketdata"
	"equity-signal-lab/internal/observability"
	"equity-signal-lab/internal/storage"
)

// Evaluation thresholds. Advisory bands are percentages of the relevant
// level; the approach cooldown rate-limits the repeatable stop-loss
// warning per trade.
const (
	nearT2BandPct      = 0.3
	slApproachBandPct  = 0.5
	slApproachCooldown = 60 * time.Second
)

// AlertSink delivers exit and advisory alerts to the user-facing
// channel. Delivery failures never affect trade state.
type AlertSink interface {
	Deliver(ctx context.Context, alert *domain.ExitAlert) error
}

// monitorEntry pairs a monitored trade with its trailing-stop state.
// Each entry has its own lock so a slow evaluation of one trade does
// not block the others.
type monitorEntry struct {
	mu     sync.Mutex
	trade  *domain.Trade
	state  *TrailingStopState
	closed bool
}

// Options configures a Monitor. Archive is optional; everything else
// is required.
type Options struct {
	Trades      storage.TradeStore
	Performance storage.PerformanceStore
	Ticks       marketdata.TickProvider
	Alerts      AlertSink
	Archive     storage.AlertArchive
	Configs     *ConfigLookup
	Logger      zerolog.Logger
}

// Monitor evaluates open trades against latest ticks and walks each
// trade's trailing-stop state machine. Per tick, the checks run in a
// fixed priority order and at most one alert is emitted: stop update,
// stop-loss close, target-2 close, near-target-2 advisory, target-1
// advisory, trailing-update advisory, stop-approach advisory.
type Monitor struct {
	trades      storage.TradeStore
	performance storage.PerformanceStore
	ticks       marketdata.TickProvider
	alerts      AlertSink
	archive     storage.AlertArchive
	configs     *ConfigLookup
	log         zerolog.Logger

	mu      sync.Mutex
	entries map[string]*monitorEntry
}

// NewMonitor creates a monitor with no trades under watch.
func NewMonitor(opts Options) (*Monitor, error) {
	if opts.Trades == nil {
		return nil, errors.New("exitmonitor: trade store is required")
	}
	if opts.Performance == nil {
		return nil, errors.New("exitmonitor: performance store is required")
	}
	if opts.Ticks == nil {
		return nil, errors.New("exitmonitor: tick provider is required")
	}
	if opts.Alerts == nil {
		return nil, errors.New("exitmonitor: alert sink is required")
	}
	if opts.Configs == nil {
		return nil, errors.New("exitmonitor: config lookup is required")
	}

	return &Monitor{
		trades:      opts.Trades,
		performance: opts.Performance,
		ticks:       opts.Ticks,
		alerts:      opts.Alerts,
		archive:     opts.Archive,
		configs:     opts.Configs,
		log:         opts.Logger,
		entries:     make(map[string]*monitorEntry),
	}, nil
}

// StartMonitoring places a trade under watch, initializing its
// trailing-stop state from the trade's own stop. Starting an already
// monitored trade is a no-op.
func (m *Monitor) StartMonitoring(trade *domain.Trade) error {
	if trade == nil || trade.TradeID == "" {
		return errors.New("exitmonitor: trade with id is required")
	}
	if trade.Status != domain.TradeStatusOpen {
		return fmt.Errorf("exitmonitor: trade %s is not open", trade.TradeID)
	}

	cp := *trade

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[cp.TradeID]; ok {
		return nil
	}
	m.entries[cp.TradeID] = &monitorEntry{
		trade: &cp,
		state: &TrailingStopState{
			TradeID:      cp.TradeID,
			Strategy:     cp.Strategy,
			Setup:        cp.Setup,
			OriginalSL:   cp.StopLoss,
			CurrentSL:    cp.StopLoss,
			HighestPrice: cp.Entry,
		},
	}
	observability.SetTradesMonitored(len(m.entries))

	m.log.Info().
		Str("trade_id", cp.TradeID).
		Str("symbol", cp.Symbol).
		Float64("stop_loss", cp.StopLoss).
		Msg("trade under exit monitoring")
	return nil
}

// StopMonitoring removes a trade from watch without closing it.
// Idempotent: stopping an unknown or already stopped trade is a no-op.
func (m *Monitor) StopMonitoring(tradeID string) {
	m.mu.Lock()
	entry, ok := m.entries[tradeID]
	if ok {
		delete(m.entries, tradeID)
		observability.SetTradesMonitored(len(m.entries))
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	entry.mu.Lock()
	entry.closed = true
	entry.mu.Unlock()
}

// MonitoredCount returns the number of trades under watch.
func (m *Monitor) MonitoredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// EvaluateAll fetches the latest tick for every monitored trade and
// evaluates each one. Trades whose tick cannot be fetched are skipped
// until the next pass. Evaluations run concurrently per trade.
func (m *Monitor) EvaluateAll(ctx context.Context, now time.Time) {
	start := time.Now()
	var wg sync.WaitGroup

	for _, entry := range m.snapshotEntries() {
		entry := entry
		wg.Add(1)

		go func() {
			defer wg.Done()

			tick, err := m.ticks.LatestTick(ctx, entry.trade.Symbol)
			if err != nil {
				observability.RecordTickFetchFailure()
				m.log.Debug().
					Err(err).
					Str("symbol", entry.trade.Symbol).
					Msg("tick unavailable, skipping evaluation")
				return
			}
			m.evaluateEntry(ctx, entry, tick, now)
		}()
	}
	wg.Wait()
	observability.ObserveEval(time.Since(start).Seconds())
}

// EvaluateTick evaluates a single monitored trade against a tick.
// Unknown trade IDs are ignored. Returns the alert emitted by this
// tick, or nil.
func (m *Monitor) EvaluateTick(ctx context.Context, tradeID string, tick *domain.Tick, now time.Time) *domain.ExitAlert {
	m.mu.Lock()
	entry, ok := m.entries[tradeID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.evaluateEntry(ctx, entry, tick, now)
}

func (m *Monitor) evaluateEntry(ctx context.Context, entry *monitorEntry, tick *domain.Tick, now time.Time) *domain.ExitAlert {
	entry.mu.Lock()
	if entry.closed {
		entry.mu.Unlock()
		return nil
	}

	alert, closed := m.evaluateLocked(entry, tick, now)
	if closed {
		entry.closed = true
	}
	entry.mu.Unlock()

	if closed {
		m.removeEntry(entry.trade.TradeID)
		m.recordClose(ctx, entry.trade, alert)
	}
	if alert != nil {
		m.deliver(ctx, alert)
	}
	return alert
}

// evaluateLocked runs the priority chain against one tick. The caller
// holds the entry lock. At most one alert per tick; a close outranks
// every advisory.
func (m *Monitor) evaluateLocked(entry *monitorEntry, tick *domain.Tick, now time.Time) (*domain.ExitAlert, bool) {
	trade := entry.trade
	state := entry.state
	price := tick.Last
	if price <= 0 {
		return nil, false
	}

	if price > state.HighestPrice {
		state.HighestPrice = price
	}

	// 1. Update the stop. The stop only ever moves up: a trailed stop
	// never retreats, and breakeven never undercuts an active trail.
	cfg := m.configs.Resolve(state.Strategy, state.Setup)
	movePct := trade.PnLPct(price)
	slChanged := false

	if cfg.TrailTriggerPct != nil && cfg.TrailDistancePct != nil && movePct >= *cfg.TrailTriggerPct {
		newSL := price * (1 - *cfg.TrailDistancePct/100)
		if newSL > state.CurrentSL {
			state.CurrentSL = newSL
			state.TrailingActive = true
			slChanged = true
		}
	} else if !state.BreakevenApplied && movePct >= cfg.BreakevenTriggerPct {
		// Breakeven only when the trail trigger did not fire this tick,
		// even if the trail branch rejected its stop as non-monotonic.
		state.BreakevenApplied = true
		if trade.Entry > state.CurrentSL {
			state.CurrentSL = trade.Entry
			slChanged = true
		}
	}

	// 2. Stop-loss close. Checked before targets: when one tick crosses
	// both levels the stop wins.
	if price <= state.CurrentSL {
		reason := domain.ExitReasonStopLoss
		if state.TrailingActive {
			reason = domain.ExitReasonTrailingSL
		}
		return m.closeAlert(trade, reason, price, now), true
	}

	// 3. Target-2 close.
	if price >= trade.Target2 {
		return m.closeAlert(trade, domain.ExitReasonTarget2, price, now), true
	}

	// 4. Near-target-2 advisory, once per trade.
	if !state.NearT2Alerted && price >= trade.Target2*(1-nearT2BandPct/100) {
		state.NearT2Alerted = true
		return m.advisoryAlert(trade, price, now, "approaching T2, consider exiting in full", nil), false
	}

	// 5. Target-1 advisory, once per trade.
	if !state.T1Alerted && price >= trade.Target1 {
		state.T1Alerted = true
		return m.advisoryAlert(trade, price, now, "T1 reached, consider booking partial profit", nil), false
	}

	// 6. Trailing-update advisory when this tick moved the stop.
	if slChanged {
		newSL := state.CurrentSL
		return m.advisoryAlert(trade, price, now, "stop-loss raised", &newSL), false
	}

	// 7. Stop-approach advisory, rate-limited per trade.
	if price <= state.CurrentSL*(1+slApproachBandPct/100) &&
		now.Sub(state.LastSLApproachAlert) >= slApproachCooldown {
		state.LastSLApproachAlert = now
		return m.advisoryAlert(trade, price, now, "price approaching stop-loss", nil), false
	}

	return nil, false
}

func (m *Monitor) closeAlert(trade *domain.Trade, reason domain.ExitReason, price float64, now time.Time) *domain.ExitAlert {
	r := reason
	return &domain.ExitAlert{
		Trade:        *trade,
		ExitReason:   &r,
		CurrentPrice: price,
		PnLPct:       trade.PnLPct(price),
		EmittedAt:    now,
	}
}

func (m *Monitor) advisoryAlert(trade *domain.Trade, price float64, now time.Time, hint string, slUpdate *float64) *domain.ExitAlert {
	return &domain.ExitAlert{
		Trade:            *trade,
		CurrentPrice:     price,
		PnLPct:           trade.PnLPct(price),
		IsAlertOnly:      true,
		KeyboardHint:     hint,
		TrailingSLUpdate: slUpdate,
		EmittedAt:        now,
	}
}

// recordClose persists the close and its realized outcome. Store
// failures are logged and swallowed: the in-memory transition already
// happened and must not be rolled back.
func (m *Monitor) recordClose(ctx context.Context, trade *domain.Trade, alert *domain.ExitAlert) {
	reason := *alert.ExitReason
	price := alert.CurrentPrice
	closedAt := alert.EmittedAt

	if err := m.trades.MarkClosed(ctx, trade.TradeID, reason, price, closedAt); err != nil {
		m.log.Error().
			Err(err).
			Str("trade_id", trade.TradeID).
			Msg("failed to persist trade close")
	}

	pnl := (price - trade.Entry) * float64(trade.Quantity)
	outcome := &domain.TradeOutcome{
		TradeID:  trade.TradeID,
		Strategy: trade.Strategy,
		Symbol:   trade.Symbol,
		PnL:      pnl,
		PnLPct:   alert.PnLPct,
		Win:      pnl > 0,
		ClosedAt: closedAt,
	}
	if err := m.performance.InsertOutcome(ctx, outcome); err != nil {
		m.log.Error().
			Err(err).
			Str("trade_id", trade.TradeID).
			Msg("failed to persist trade outcome")
	}

	observability.RecordTradeClosed(string(reason))
	m.log.Info().
		Str("trade_id", trade.TradeID).
		Str("symbol", trade.Symbol).
		Str("reason", string(reason)).
		Float64("exit_price", price).
		Float64("pnl_pct", alert.PnLPct).
		Msg("trade closed")
}

func (m *Monitor) deliver(ctx context.Context, alert *domain.ExitAlert) {
	kind := "close"
	if alert.IsAlertOnly {
		kind = "advisory"
	}
	observability.RecordAlert(kind)

	if err := m.alerts.Deliver(ctx, alert); err != nil {
		m.log.Error().
			Err(err).
			Str("trade_id", alert.Trade.TradeID).
			Msg("alert delivery failed")
	}
	if m.archive != nil {
		if err := m.archive.Insert(ctx, alert); err != nil {
			m.log.Warn().
				Err(err).
				Str("trade_id", alert.Trade.TradeID).
				Msg("alert archive insert failed")
		}
	}
}

// EmitTimeAdvisories sends an advisory for every monitored trade,
// prompting a manual exit ahead of the mandatory session close. State
// is not modified.
func (m *Monitor) EmitTimeAdvisories(ctx context.Context, now time.Time) {
	for _, entry := range m.snapshotEntries() {
		price := entry.trade.Entry
		if tick, err := m.ticks.LatestTick(ctx, entry.trade.Symbol); err == nil {
			price = tick.Last
		}

		alert := m.advisoryAlert(entry.trade, price, now,
			"session close approaching, exit manually or the position closes automatically", nil)
		m.deliver(ctx, alert)
	}
}

// ForceCloseAll closes every monitored trade with a time-exit reason at
// the latest available price, falling back to entry when no tick is
// available.
func (m *Monitor) ForceCloseAll(ctx context.Context, now time.Time) {
	for _, entry := range m.snapshotEntries() {
		entry.mu.Lock()
		if entry.closed {
			entry.mu.Unlock()
			continue
		}
		entry.closed = true
		entry.mu.Unlock()

		price := entry.trade.Entry
		if tick, err := m.ticks.LatestTick(ctx, entry.trade.Symbol); err == nil && tick.Last > 0 {
			price = tick.Last
		}

		m.removeEntry(entry.trade.TradeID)
		alert := m.closeAlert(entry.trade, domain.ExitReasonTimeExit, price, now)
		m.recordClose(ctx, entry.trade, alert)
		m.deliver(ctx, alert)
	}
}

// ExportState serializes every trade's trailing-stop state for restart
// recovery.
func (m *Monitor) ExportState() ([]byte, error) {
	states := make(map[string]TrailingStopState)

	for _, entry := range m.snapshotEntries() {
		entry.mu.Lock()
		if !entry.closed {
			states[entry.trade.TradeID] = *entry.state
		}
		entry.mu.Unlock()
	}
	return json.Marshal(states)
}

// ImportState restores trailing-stop state exported by ExportState,
// re-attaching each state to its trade from the trade store. States
// whose trade is missing or no longer open are dropped with a warning.
func (m *Monitor) ImportState(ctx context.Context, data []byte) error {
	var states map[string]TrailingStopState
	if err := json.Unmarshal(data, &states); err != nil {
		return fmt.Errorf("exitmonitor: decode state: %w", err)
	}

	for tradeID, state := range states {
		trade, err := m.trades.GetByID(ctx, tradeID)
		if err != nil {
			m.log.Warn().
				Err(err).
				Str("trade_id", tradeID).
				Msg("dropping state for unknown trade")
			continue
		}
		if trade.Status != domain.TradeStatusOpen {
			m.log.Warn().
				Str("trade_id", tradeID).
				Msg("dropping state for closed trade")
			continue
		}

		st := state
		m.mu.Lock()
		m.entries[tradeID] = &monitorEntry{trade: trade, state: &st}
		m.mu.Unlock()
	}
	return nil
}

func (m *Monitor) snapshotEntries() []*monitorEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*monitorEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry)
	}
	return out
}

func (m *Monitor) removeEntry(tradeID string) {
	m.mu.Lock()
	delete(m.entries, tradeID)
	observability.SetTradesMonitored(len(m.entries))
	m.mu.Unlock()
}
