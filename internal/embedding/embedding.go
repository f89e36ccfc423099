// Package embedding generates fixed-dimension vectors for text and keeps them in a store keyed
// by job uid or candidate hash.
package embedding

import (
	"context"
	"errors"
	"sort"
)

// DefaultDimension matches all-MiniLM-L6-v2 sized vectors.
const DefaultDimension = 384

// ErrNotFound is returned when a vector is not present in the store.
var ErrNotFound = errors.New("embedding not found")

// Embedder turns texts into vectors. Results are ordered like the input.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Metadata is a flat set of attributes stored next to a vector.
type Metadata map[string]string

// Record is a vector with its identifier and metadata.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a similarity search hit.
type Match struct {
	ID    string
	Score float64
}

// Store persists vectors of a single collection. Upsert is last-write-wins per id.
type Store interface {
	Dimension() int
	Upsert(ctx context.Context, records []Record) error
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)
	Fetch(ctx context.Context, ids []string) (map[string][]float32, error)
	QuerySimilar(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

// SortMatches orders by descending score, then ascending id.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
}
