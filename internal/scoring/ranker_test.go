package scoring

import (
	"testing"

	"equity-signal-lab/internal/domain"
)

func scoredCandidate(id string, score float64) ScoredCandidate {
	return ScoredCandidate{
		Candidate: domain.CandidateSignal{SignalID: id, Symbol: id},
		Score:     score,
	}
}

func TestRanker_SortAndTopN(t *testing.T) {
	ranker := NewSignalRanker(3)

	scored := []ScoredCandidate{
		scoredCandidate("a", 0.3),
		scoredCandidate("b", 0.9),
		scoredCandidate("c", 0.5),
		scoredCandidate("d", 0.7),
		scoredCandidate("e", 0.1),
	}

	ranked := ranker.Rank(scored)
	if len(ranked) != 3 {
		t.Fatalf("expected top 3, got %d", len(ranked))
	}

	wantOrder := []string{"b", "d", "c"}
	for i, sig := range ranked {
		if sig.Candidate.SignalID != wantOrder[i] {
			t.Errorf("rank %d = %s, want %s", i+1, sig.Candidate.SignalID, wantOrder[i])
		}
		if sig.Rank != i+1 {
			t.Errorf("Rank field = %d, want %d", sig.Rank, i+1)
		}
	}
}

func TestRanker_StableTies(t *testing.T) {
	ranker := NewSignalRanker(0) // default top-N

	scored := []ScoredCandidate{
		scoredCandidate("first", 0.5),
		scoredCandidate("second", 0.5),
		scoredCandidate("third", 0.5),
	}

	ranked := ranker.Rank(scored)
	for i, want := range []string{"first", "second", "third"} {
		if ranked[i].Candidate.SignalID != want {
			t.Errorf("tie order broken at %d: got %s, want %s", i, ranked[i].Candidate.SignalID, want)
		}
	}
}

func TestRanker_StarBands(t *testing.T) {
	cases := []struct {
		score float64
		stars int
	}{
		{0.0, 1},
		{0.19, 1},
		{0.2, 2},
		{0.39, 2},
		{0.4, 3},
		{0.6, 4},
		{0.79, 4},
		{0.8, 5},
		{1.0, 5},
	}
	for _, c := range cases {
		if got := starsFor(c.score); got != c.stars {
			t.Errorf("starsFor(%f) = %d, want %d", c.score, got, c.stars)
		}
	}
}

func TestRanker_StarBoostCapped(t *testing.T) {
	ranker := NewSignalRanker(2)

	scored := []ScoredCandidate{
		{Candidate: domain.CandidateSignal{SignalID: "boosted"}, Score: 0.9, StarBoost: 2},
		{Candidate: domain.CandidateSignal{SignalID: "double"}, Score: 0.5, StarBoost: 1},
	}

	ranked := ranker.Rank(scored)
	if ranked[0].Stars != 5 {
		t.Errorf("boost must cap at 5 stars, got %d", ranked[0].Stars)
	}
	if ranked[1].Stars != 4 {
		t.Errorf("0.5 score + boost 1 = %d stars, want 4", ranked[1].Stars)
	}
}

func TestRanker_DefaultTopN(t *testing.T) {
	ranker := NewSignalRanker(0)

	var scored []ScoredCandidate
	for i := 0; i < 8; i++ {
		scored = append(scored, scoredCandidate(string(rune('a'+i)), float64(i)/10))
	}

	ranked := ranker.Rank(scored)
	if len(ranked) != DefaultTopN {
		t.Errorf("expected default top %d, got %d", DefaultTopN, len(ranked))
	}
}
