package scoring

import "equity-signal-lab/internal/domain"

// Strategy names with dedicated normalizers. Anything else takes the
// default gap/volume/distance blend.
const (
	StrategyORB  = "orb"
	StrategyVWAP = "vwap"
)

// SignalScorer is the legacy per-strategy 0-1 normalizer. It is usable
// standalone or alongside the composite path.
type SignalScorer struct{}

// NewSignalScorer creates a legacy signal scorer.
func NewSignalScorer() *SignalScorer {
	return &SignalScorer{}
}

// Score normalizes a candidate's raw factors to [0,1], dispatching on
// the originating strategy.
func (s *SignalScorer) Score(c domain.CandidateSignal) float64 {
	switch c.Strategy {
	case StrategyORB:
		return orbScore(c)
	case StrategyVWAP:
		return vwapScore(c)
	default:
		return defaultScore(c)
	}
}

// defaultScore blends gap percent, volume ratio and distance from open,
// weights 0.4/0.3/0.3.
func defaultScore(c domain.CandidateSignal) float64 {
	gap := linearScale(c.GapPct, 3.0, 5.0)
	volume := linearScale(c.VolumeRatio, 0.5, 3.0)
	distance := linearScale(c.DistancePct, 0.0, 3.0)
	return gap*0.4 + volume*0.3 + distance*0.3
}

// orbScore blends volume 0.40, range 0.30 and distance 0.30. GapPct
// carries the opening-range size here; a tighter range scores higher.
func orbScore(c domain.CandidateSignal) float64 {
	volume := linearScale(c.VolumeRatio, 0.5, 3.0)
	rangeScore := 1.0 - linearScale(c.GapPct, 0.5, 3.0)
	distance := linearScale(c.DistancePct, 0.0, 3.0)
	return volume*0.40 + rangeScore*0.30 + distance*0.30
}

// vwapScore blends volume 0.35, touch precision 0.35 and trend 0.30.
// DistancePct carries the VWAP touch distance (closer scores higher)
// and GapPct carries the trend ratio.
func vwapScore(c domain.CandidateSignal) float64 {
	volume := linearScale(c.VolumeRatio, 0.5, 3.0)
	touch := 1.0 - linearScale(c.DistancePct, 0.0, 1.0)
	trend := linearScale(c.GapPct, 0.0, 1.0)
	return volume*0.35 + touch*0.35 + trend*0.30
}

// linearScale maps v linearly from [lo, hi] to [0,1], clamped.
func linearScale(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}
