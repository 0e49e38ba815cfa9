package scoring

import (
	"sort"

	"equity-signal-lab/internal/domain"
)

// DefaultTopN is the number of ranked signals kept per cycle.
const DefaultTopN = 5

// ScoredCandidate is the ranker's input: a candidate with its normalized
// [0,1] score and the confirmation star boost.
type ScoredCandidate struct {
	Candidate domain.CandidateSignal
	Score     float64
	StarBoost int
}

// SignalRanker sorts scored candidates, keeps the top N and assigns
// star ratings.
type SignalRanker struct {
	topN int
}

// NewSignalRanker creates a ranker. topN <= 0 selects the default.
func NewSignalRanker(topN int) *SignalRanker {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &SignalRanker{topN: topN}
}

// Rank sorts descending by score (stable, ties keep input order), keeps
// the top N and maps score to stars, plus the confirmation boost capped
// at 5.
func (r *SignalRanker) Rank(scored []ScoredCandidate) []domain.RankedSignal {
	sorted := make([]ScoredCandidate, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	n := r.topN
	if n > len(sorted) {
		n = len(sorted)
	}

	ranked := make([]domain.RankedSignal, 0, n)
	for i := 0; i < n; i++ {
		sc := sorted[i]
		stars := starsFor(sc.Score) + sc.StarBoost
		if stars > 5 {
			stars = 5
		}
		ranked = append(ranked, domain.RankedSignal{
			Candidate: sc.Candidate,
			Score:     sc.Score,
			Rank:      i + 1,
			Stars:     stars,
		})
	}
	return ranked
}

// starsFor maps a [0,1] score to 1-5 stars: [0,0.2) -> 1 ... [0.8,1] -> 5.
func starsFor(score float64) int {
	switch {
	case score >= 0.8:
		return 5
	case score >= 0.6:
		return 4
	case score >= 0.4:
		return 3
	case score >= 0.2:
		return 2
	default:
		return 1
	}
}
