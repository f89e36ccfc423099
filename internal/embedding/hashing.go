package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"github.com/spigell/matchai/internal/preprocess"
)

// Hashing is an offline embedder that projects unigram and bigram counts into a fixed number of
// signed buckets. Output is L2-normalized and bit-for-bit reproducible.
type Hashing struct {
	dim int
}

func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Hashing{dim: dim}
}

func (h *Hashing) Name() string { return "hashing" }

func (h *Hashing) Dimension() int { return h.dim }

func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := h.embed(text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (h *Hashing) embed(text string) ([]float32, error) {
	tokens := preprocess.Tokens(text)
	if len(tokens) == 0 {
		return nil, errors.New("text has no tokens")
	}

	counts := make(map[string]int, len(tokens)*2)
	for i, token := range tokens {
		counts[token]++
		if i > 0 {
			counts[tokens[i-1]+" "+token]++
		}
	}

	// Colliding features must be summed in a fixed order.
	features := make([]string, 0, len(counts))
	for feature := range counts {
		features = append(features, feature)
	}
	sort.Strings(features)

	vec := make([]float32, h.dim)
	for _, feature := range features {
		count := counts[feature]
		bucket, sign := h.bucket(feature)
		weight := 1 + math.Log(float64(count))
		if strings.Contains(feature, " ") {
			weight *= 0.5
		}
		vec[bucket] += float32(sign * weight)
	}

	Normalize(vec)
	return vec, nil
}

func (h *Hashing) bucket(feature string) (int, float64) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	sign := 1.0
	if sum&1 == 1 {
		sign = -1.0
	}
	return int((sum >> 1) % uint64(h.dim)), sign
}
