// Package ranking fuses vector similarity and skill overlap into one score and orders jobs by it.
package ranking

import (
	"fmt"
	"math"
	"sort"

	"github.com/spigell/matchai/internal/embedding"
	"github.com/spigell/matchai/internal/failure"
)

const weightTolerance = 1e-9

// Weights are the coefficients of the final score. They must be non-negative and sum to one.
type Weights struct {
	Similarity float64 `mapstructure:"similarity" json:"similarity"`
	Filter     float64 `mapstructure:"filter" json:"filter"`
}

func DefaultWeights() Weights {
	return Weights{Similarity: 0.6, Filter: 0.4}
}

func (w Weights) Validate() error {
	if w.Similarity < 0 || w.Filter < 0 {
		return failure.Configurationf("ranking weights must be non-negative, got similarity=%v filter=%v", w.Similarity, w.Filter)
	}
	if sum := w.Similarity + w.Filter; math.Abs(sum-1) > weightTolerance {
		return failure.Configurationf("ranking weights must sum to 1, got %v", sum)
	}
	return nil
}

// Item is a filtered job waiting to be scored.
type Item struct {
	UID           string
	Similarity    float64
	SkillFraction float64
}

// Scored is an Item with its final score and 1-based rank.
type Scored struct {
	Item
	FinalScore float64
	Rank       int
}

type Ranker struct {
	weights Weights
}

func New(weights Weights) (*Ranker, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{weights: weights}, nil
}

func (r *Ranker) Weights() Weights { return r.weights }

// FinalScore combines a raw cosine similarity and a skill fraction. Both are clamped to [0, 1]
// first, so the result is in [0, 1] as well.
func (r *Ranker) FinalScore(similarity, fraction float64) float64 {
	score := r.weights.Similarity*Clamp(similarity) + r.weights.Filter*Clamp(fraction)
	return Clamp(score)
}

// Rank scores items and returns the best topN of them, highest score first and ties by uid.
// A topN larger than the number of items returns all of them.
func (r *Ranker) Rank(items []Item, topN int) ([]Scored, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("top n must be positive, got %d", topN)
	}

	scored := make([]Scored, 0, len(items))
	for _, item := range items {
		scored = append(scored, Scored{Item: item, FinalScore: r.FinalScore(item.Similarity, item.SkillFraction)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return scored[i].UID < scored[j].UID
	})

	if len(scored) > topN {
		scored = scored[:topN]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, nil
}

// ComputeSimilarities returns the raw cosine similarity of candidate against the vector of every
// uid. Uids without a vector of the candidate's dimension are returned as missing, in input order.
func ComputeSimilarities(candidate []float32, uids []string, vectors map[string][]float32) (map[string]float64, []string) {
	out := make(map[string]float64, len(uids))
	var missing []string
	for _, uid := range uids {
		vec, ok := vectors[uid]
		if !ok || len(vec) != len(candidate) {
			missing = append(missing, uid)
			continue
		}
		out[uid] = embedding.Cosine(candidate, vec)
	}
	return out, missing
}

// Clamp limits v to [0, 1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
