// Package scoring ranks trade candidates. The composite path blends
// strategy strength, trailing win rate, risk-reward and cross-strategy
// confirmation into a 0-100 score; the legacy path normalizes raw
// per-strategy factors to [0,1].
package scoring

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// Composite factor weights.
const (
	weightStrength     = 0.4
	weightWinRate      = 0.3
	weightRiskReward   = 0.2
	weightConfirmation = 0.1
)

// neutralScore is the fallback sub-score when data is unavailable.
const neutralScore = 50.0

// trailingDays is the performance look-back for the win-rate factor.
const trailingDays = 30

// CompositeScorer computes the 0-100 blended score per candidate.
// Win rates are cached per calendar day per strategy; the cache is
// invalidated wholesale when the caller-supplied "today" changes.
type CompositeScorer struct {
	perf storage.PerformanceStore
	log  zerolog.Logger

	mu        sync.Mutex
	cacheDate time.Time          // day the cache entries are valid for
	cache     map[string]float64 // strategy -> win-rate sub-score (0-100)
}

// NewCompositeScorer creates a composite scorer.
func NewCompositeScorer(perf storage.PerformanceStore, log zerolog.Logger) *CompositeScorer {
	return &CompositeScorer{
		perf:  perf,
		log:   log,
		cache: make(map[string]float64),
	}
}

// Score computes the composite score for one candidate. Data-unavailable
// conditions fall back to the neutral sub-score; Score never fails.
func (s *CompositeScorer) Score(ctx context.Context, c domain.CandidateSignal, conf domain.ConfirmationResult, today time.Time) domain.CompositeScoreResult {
	strength := round2(strengthScore(c))
	winRate := round2(s.winRateScore(ctx, c.Strategy, today))
	riskReward := round2(riskRewardScore(c))
	bonus := confirmationBonus(conf.Level)

	composite := strength*weightStrength +
		winRate*weightWinRate +
		riskReward*weightRiskReward +
		bonus*weightConfirmation

	return domain.CompositeScoreResult{
		Composite:         round2(clamp(composite, 0, 100)),
		StrategyStrength:  strength,
		WinRate:           winRate,
		RiskReward:        riskReward,
		ConfirmationBonus: bonus,
	}
}

// strengthScore maps the strategy's own 0-1 score to 0-100; absent
// scores are neutral.
func strengthScore(c domain.CandidateSignal) float64 {
	if c.StrategyScore == nil {
		return neutralScore
	}
	return clamp(*c.StrategyScore*100, 0, 100)
}

// winRateScore returns the strategy's trailing 30-day win rate on the
// 0-100 scale, cached per calendar day.
func (s *CompositeScorer) winRateScore(ctx context.Context, strategy string, today time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sameDay(s.cacheDate, today) {
		s.cache = make(map[string]float64)
		s.cacheDate = today
	}
	if score, ok := s.cache[strategy]; ok {
		return score
	}

	score := neutralScore
	perf, err := s.perf.TrailingSummary(ctx, strategy, trailingDays, today)
	if err != nil {
		s.log.Debug().Err(err).Str("strategy", strategy).
			Msg("trailing summary unavailable, using neutral win-rate score")
	} else {
		score = clamp(perf.WinRate*100, 0, 100)
	}

	s.cache[strategy] = score
	return score
}

// riskRewardScore maps the reward/risk ratio linearly: <=1.0 -> 0,
// 2.0 -> 50, >=3.0 -> 100. Non-positive risk or reward scores 0.
func riskRewardScore(c domain.CandidateSignal) float64 {
	risk := c.Entry - c.StopLoss
	reward := c.Target2 - c.Entry
	if risk <= 0 || reward <= 0 {
		return 0
	}

	ratio := reward / risk
	if ratio <= 1.0 {
		return 0
	}
	if ratio >= 3.0 {
		return 100
	}
	return (ratio - 1.0) / 2.0 * 100
}

// confirmationBonus maps the level to 0/50/100.
func confirmationBonus(level domain.ConfirmationLevel) float64 {
	switch level {
	case domain.ConfirmationTriple:
		return 100
	case domain.ConfirmationDouble:
		return 50
	default:
		return 0
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
