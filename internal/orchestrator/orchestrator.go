// Package orchestrator coordinates one scan cycle:
// confirmation → composite scoring → ranking → risk sizing → delivery.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"equity-signal-lab/internal/confirmation"
	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/observability"
	"equity-signal-lab/internal/risk"
	"equity-signal-lab/internal/scoring"
	"equity-signal-lab/internal/storage"
)

// SignalNotifier delivers the cycle's final signals to the user-facing
// channel.
type SignalNotifier interface {
	NotifySignals(ctx context.Context, signals []*domain.FinalSignal) error
}

// RegimeFunc supplies the current market-regime modifiers, or nil when
// no regime adjustment applies.
type RegimeFunc func(ctx context.Context, now time.Time) *domain.RegimeModifiers

// Orchestrator runs a scan cycle over one batch of candidate signals.
type Orchestrator struct {
	signals storage.SignalStore
	trades  storage.TradeStore

	detector  *confirmation.Detector
	legacy    *scoring.SignalScorer
	composite *scoring.CompositeScorer
	ranker    *scoring.SignalRanker
	risk      *risk.Manager
	riskCfg   risk.Config

	notifier SignalNotifier
	regime   RegimeFunc
	log      zerolog.Logger
}

// Options for creating an Orchestrator. Notifier and Regime are
// optional.
type Options struct {
	SignalStore storage.SignalStore
	TradeStore  storage.TradeStore

	Detector  *confirmation.Detector
	Legacy    *scoring.SignalScorer
	Composite *scoring.CompositeScorer
	Ranker    *scoring.SignalRanker
	Risk      *risk.Manager
	RiskCfg   risk.Config

	Notifier SignalNotifier
	Regime   RegimeFunc
	Logger   zerolog.Logger
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.SignalStore == nil:
		return nil, errors.New("orchestrator: signal store is required")
	case opts.TradeStore == nil:
		return nil, errors.New("orchestrator: trade store is required")
	case opts.Detector == nil:
		return nil, errors.New("orchestrator: confirmation detector is required")
	case opts.Legacy == nil:
		return nil, errors.New("orchestrator: strategy scorer is required")
	case opts.Composite == nil:
		return nil, errors.New("orchestrator: composite scorer is required")
	case opts.Ranker == nil:
		return nil, errors.New("orchestrator: ranker is required")
	case opts.Risk == nil:
		return nil, errors.New("orchestrator: risk manager is required")
	}

	return &Orchestrator{
		signals:   opts.SignalStore,
		trades:    opts.TradeStore,
		detector:  opts.Detector,
		legacy:    opts.Legacy,
		composite: opts.Composite,
		ranker:    opts.Ranker,
		risk:      opts.Risk,
		riskCfg:   opts.RiskCfg,
		notifier:  opts.Notifier,
		regime:    opts.Regime,
		log:       opts.Logger,
	}, nil
}

// CycleResult summarizes one scan cycle.
type CycleResult struct {
	CandidatesIn int
	Ranked       int
	Delivered    []*domain.FinalSignal
	Errors       []string
}

// RunCycle processes one batch of candidates through the full decision
// chain. Per-signal persistence and delivery failures are collected in
// the result; only an invalid risk configuration fails the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context, candidates []domain.CandidateSignal, now time.Time) (*CycleResult, error) {
	start := time.Now()
	result := &CycleResult{CandidatesIn: len(candidates)}
	if len(candidates) == 0 {
		return result, nil
	}

	// Candidates arriving without a strategy score get one from the
	// per-strategy scorer before the composite blend.
	for i := range candidates {
		if candidates[i].StrategyScore == nil {
			score := o.legacy.Score(candidates[i])
			candidates[i].StrategyScore = &score
		}
	}

	detections := o.detector.Detect(ctx, candidates, now)
	confirmations := make(map[string]domain.ConfirmationResult, len(detections))
	for _, d := range detections {
		if _, seen := confirmations[d.Candidate.Symbol]; !seen {
			observability.RecordConfirmation(string(d.Result.Level))
		}
		confirmations[d.Candidate.Symbol] = d.Result
	}

	scored := make([]scoring.ScoredCandidate, 0, len(detections))
	for _, d := range detections {
		composite := o.composite.Score(ctx, d.Candidate, d.Result, now)
		observability.RecordSignalScored(d.Candidate.Strategy)
		scored = append(scored, scoring.ScoredCandidate{
			Candidate: d.Candidate,
			Score:     composite.Composite / 100,
			StarBoost: d.Result.StarBoost,
		})
	}

	ranked := o.ranker.Rank(scored)
	result.Ranked = len(ranked)

	activeTrades, err := o.trades.CountOpen(ctx)
	if err != nil {
		// Unknown open-trade count: assume the limit is reached rather
		// than oversize.
		o.log.Error().Err(err).Msg("open trade count unavailable, skipping sizing")
		result.Errors = append(result.Errors, "open trade count unavailable: "+err.Error())
		return result, nil
	}

	var regime *domain.RegimeModifiers
	if o.regime != nil {
		regime = o.regime(ctx, now)
	}

	final, err := o.risk.FilterAndSize(ranked, o.riskCfg, activeTrades, confirmations, regime)
	if err != nil {
		return nil, err
	}

	for i := range final {
		sig := &final[i]
		if err := o.signals.Insert(ctx, sig); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			o.log.Error().Err(err).
				Str("signal_id", sig.Candidate.SignalID).
				Msg("signal persist failed")
			result.Errors = append(result.Errors, "persist "+sig.Candidate.SignalID+": "+err.Error())
		}
		observability.RecordSignalDelivered(sig.Candidate.Strategy)
		result.Delivered = append(result.Delivered, sig)
	}

	if o.notifier != nil && len(result.Delivered) > 0 {
		if err := o.notifier.NotifySignals(ctx, result.Delivered); err != nil {
			o.log.Error().Err(err).Msg("signal delivery failed")
			result.Errors = append(result.Errors, "delivery: "+err.Error())
		}
	}

	observability.RecordCycle(result.CandidatesIn, time.Since(start).Seconds())
	o.log.Info().
		Int("candidates", result.CandidatesIn).
		Int("ranked", result.Ranked).
		Int("delivered", len(result.Delivered)).
		Int("errors", len(result.Errors)).
		Msg("scan cycle complete")
	return result, nil
}
