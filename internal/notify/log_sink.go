package notify

import (
	"context"

	"github.com/rs/zerolog"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/exitmonitor"
)

// LogSink writes alerts to the structured log instead of an external
// channel. Used by the offline pipeline runner.
type LogSink struct {
	log zerolog.Logger
}

// Compile-time interface check.
var _ exitmonitor.AlertSink = (*LogSink)(nil)

// NewLogSink creates a log-backed sink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Deliver logs the alert.
func (s *LogSink) Deliver(_ context.Context, alert *domain.ExitAlert) error {
	evt := s.log.Info().
		Str("trade_id", alert.Trade.TradeID).
		Str("symbol", alert.Trade.Symbol).
		Float64("price", alert.CurrentPrice).
		Float64("pnl_pct", alert.PnLPct).
		Bool("advisory", alert.IsAlertOnly)
	if alert.ExitReason != nil {
		evt = evt.Str("reason", string(*alert.ExitReason))
	}
	evt.Msg("exit alert")
	return nil
}

// NotifySignals logs one line per final signal.
func (s *LogSink) NotifySignals(_ context.Context, signals []*domain.FinalSignal) error {
	for _, sig := range signals {
		s.log.Info().
			Str("signal_id", sig.Candidate.SignalID).
			Str("symbol", sig.Candidate.Symbol).
			Str("strategy", sig.Candidate.Strategy).
			Int("rank", sig.Rank).
			Int("stars", sig.Stars).
			Int64("qty", sig.Quantity).
			Msg("final signal")
	}
	return nil
}

// NopSink discards everything. Used in tests.
type NopSink struct{}

// Compile-time interface check.
var _ exitmonitor.AlertSink = (*NopSink)(nil)

// Deliver discards the alert.
func (NopSink) Deliver(context.Context, *domain.ExitAlert) error { return nil }

// NotifySignals discards the signals.
func (NopSink) NotifySignals(context.Context, []*domain.FinalSignal) error { return nil }
