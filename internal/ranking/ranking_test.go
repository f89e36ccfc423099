package ranking

import (
	"math"
	"testing"

	"github.com/spigell/matchai/internal/failure"
)

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{name: "default", weights: DefaultWeights()},
		{name: "all similarity", weights: Weights{Similarity: 1}},
		{name: "float noise", weights: Weights{Similarity: 0.7, Filter: 0.3 + 1e-12}},
		{name: "sum too small", weights: Weights{Similarity: 0.5, Filter: 0.4}, wantErr: true},
		{name: "negative", weights: Weights{Similarity: 1.5, Filter: -0.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.weights)
			if tt.wantErr {
				if !failure.IsConfiguration(err) {
					t.Fatalf("expected configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestFinalScoreBounds(t *testing.T) {
	ranker, err := New(DefaultWeights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, sim := range []float64{-1, -0.3, 0, 0.42, 1, 1.0000001, math.NaN()} {
		for _, fraction := range []float64{0, 0.5, 1} {
			score := ranker.FinalScore(sim, fraction)
			if score < 0 || score > 1 {
				t.Fatalf("score %v out of bounds for sim=%v fraction=%v", score, sim, fraction)
			}
		}
	}

	if got := ranker.FinalScore(-0.8, 1); math.Abs(got-0.4) > 1e-12 {
		t.Fatalf("negative similarity must clamp to 0, got %v", got)
	}
	if got := ranker.FinalScore(0.5, 1); math.Abs(got-(0.6*0.5+0.4)) > 1e-12 {
		t.Fatalf("unexpected score %v", got)
	}
}

func TestRankOrderAndTies(t *testing.T) {
	ranker, err := New(DefaultWeights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items := []Item{
		{UID: "c", Similarity: 0.5, SkillFraction: 0.5},
		{UID: "a", Similarity: 0.5, SkillFraction: 0.5},
		{UID: "b", Similarity: 0.9, SkillFraction: 1},
	}

	ranked, err := ranker.Rank(items, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected all 3 items when top n exceeds them, got %d", len(ranked))
	}

	want := []string{"b", "a", "c"}
	for i, s := range ranked {
		if s.UID != want[i] || s.Rank != i+1 {
			t.Fatalf("position %d: expected %s rank %d, got %s rank %d", i, want[i], i+1, s.UID, s.Rank)
		}
	}

	// Input order must not matter.
	reversed := []Item{items[2], items[1], items[0]}
	again, err := ranker.Rank(reversed, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range again {
		if again[i].UID != ranked[i].UID {
			t.Fatalf("rank order depends on input order: %v vs %v", again, ranked)
		}
	}

	top, err := ranker.Rank(items, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 1 || top[0].UID != "b" {
		t.Fatalf("unexpected top 1: %v", top)
	}
}

func TestRankRejectsNonPositiveTopN(t *testing.T) {
	ranker, err := New(DefaultWeights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ranker.Rank(nil, 0); err == nil {
		t.Fatalf("expected error for top n 0")
	}
}

func TestComputeSimilarities(t *testing.T) {
	candidate := []float32{1, 0}
	vectors := map[string][]float32{
		"same":     {2, 0},
		"opposite": {-1, 0},
		"short":    {1},
	}

	sims, missing := ComputeSimilarities(candidate, []string{"same", "opposite", "short", "absent"}, vectors)
	if math.Abs(sims["same"]-1) > 1e-9 || math.Abs(sims["opposite"]+1) > 1e-9 {
		t.Fatalf("unexpected similarities %v", sims)
	}
	if len(missing) != 2 || missing[0] != "short" || missing[1] != "absent" {
		t.Fatalf("unexpected missing %v", missing)
	}
}
