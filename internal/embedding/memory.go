package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store used by tests and single-shot runs.
type Memory struct {
	dim int

	mu      sync.RWMutex
	records map[string]Record
}

func NewMemory(dim int) *Memory {
	return &Memory{dim: dim, records: make(map[string]Record)}
}

func (m *Memory) Dimension() int { return m.dim }

func (m *Memory) Upsert(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rec := range records {
		if len(rec.Vector) != m.dim {
			return fmt.Errorf("vector %q has dimension %d, store expects %d", rec.ID, len(rec.Vector), m.dim)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		meta := make(Metadata, len(rec.Metadata))
		for k, v := range rec.Metadata {
			meta[k] = v
		}
		m.records[rec.ID] = Record{ID: rec.ID, Vector: vec, Metadata: meta}
	}
	return nil
}

func (m *Memory) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{}, len(m.records))
	for id := range m.records {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *Memory) Fetch(ctx context.Context, ids []string) (map[string][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]float32, len(ids))
	for _, id := range ids {
		rec, ok := m.records[id]
		if !ok {
			continue
		}
		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		out[id] = vec
	}
	return out, nil
}

func (m *Memory) QuerySimilar(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	matches := make([]Match, 0, len(m.records))
	for id, rec := range m.records {
		matches = append(matches, Match{ID: id, Score: Cosine(vector, rec.Vector)})
	}
	m.mu.RUnlock()

	SortMatches(matches)
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
