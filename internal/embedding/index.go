package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/failure"
)

const defaultTimeout = 30 * time.Second

// IndexConfig controls calls to the embedder and the store.
type IndexConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Index binds an embedder to a store of the same dimension.
type Index struct {
	embedder Embedder
	store    Store
	timeout  time.Duration
	logger   *zap.Logger
}

// NewIndex fails with a configuration error when embedder and store dimensions differ.
func NewIndex(embedder Embedder, store Store, cfg IndexConfig, logger *zap.Logger) (*Index, error) {
	if embedder == nil || store == nil {
		return nil, failure.Configurationf("embedder and store are required")
	}
	if embedder.Dimension() <= 0 {
		return nil, failure.Configurationf("embedder %s reports dimension %d", embedder.Name(), embedder.Dimension())
	}
	if embedder.Dimension() != store.Dimension() {
		return nil, failure.Configurationf("embedder %s produces %d-dimensional vectors but the store holds %d",
			embedder.Name(), embedder.Dimension(), store.Dimension())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Index{embedder: embedder, store: store, timeout: timeout, logger: logger}, nil
}

func (i *Index) Dimension() int { return i.store.Dimension() }

func (i *Index) EmbedderName() string { return i.embedder.Name() }

// Embed returns the vector for a single text.
func (i *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, errs := i.EmbedBatch(ctx, []string{text})
	if errs[0] != nil {
		return nil, errs[0]
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one call. When the batch call fails, items are retried one by one
// so a single malformed text does not fail the others. The returned slices are aligned with texts.
func (i *Index) EmbedBatch(ctx context.Context, texts []string) ([][]float32, []error) {
	vectors := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	pending := make([]int, 0, len(texts))
	for idx, text := range texts {
		if strings.TrimSpace(text) == "" {
			errs[idx] = failure.Embedding("", errors.New("text is empty"))
			continue
		}
		pending = append(pending, idx)
	}
	if len(pending) == 0 {
		return vectors, errs
	}

	batch := make([]string, len(pending))
	for n, idx := range pending {
		batch[n] = texts[idx]
	}

	out, err := i.call(ctx, batch)
	if err == nil && len(out) != len(batch) {
		err = fmt.Errorf("embedder %s returned %d vectors for %d texts", i.embedder.Name(), len(out), len(batch))
	}
	if err == nil {
		for n, idx := range pending {
			vectors[idx], errs[idx] = i.check(out[n])
		}
		return vectors, errs
	}

	if ctx.Err() != nil {
		for _, idx := range pending {
			errs[idx] = failure.FromCall(failure.KindEmbedding, "", err)
		}
		return vectors, errs
	}

	if len(pending) > 1 {
		i.logger.Warn("batch embedding failed, retrying items one by one",
			zap.String("embedder", i.embedder.Name()),
			zap.Int("items", len(pending)),
			zap.Error(err),
		)
	}
	for _, idx := range pending {
		single, err := i.call(ctx, []string{texts[idx]})
		if err == nil && len(single) != 1 {
			err = fmt.Errorf("embedder %s returned %d vectors for 1 text", i.embedder.Name(), len(single))
		}
		if err != nil {
			errs[idx] = failure.FromCall(failure.KindEmbedding, "", err)
			continue
		}
		vectors[idx], errs[idx] = i.check(single[0])
	}
	return vectors, errs
}

func (i *Index) call(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	return i.embedder.Embed(ctx, texts)
}

func (i *Index) check(vec []float32) ([]float32, error) {
	if err := Validate(vec, i.store.Dimension()); err != nil {
		return nil, failure.Embedding("", err)
	}
	return vec, nil
}

// Upsert stores a vector. A dimension mismatch is a configuration error.
func (i *Index) Upsert(ctx context.Context, id string, vector []float32, meta Metadata) error {
	return i.UpsertMany(ctx, []Record{{ID: id, Vector: vector, Metadata: meta}})
}

func (i *Index) UpsertMany(ctx context.Context, records []Record) error {
	for _, rec := range records {
		if len(rec.Vector) != i.store.Dimension() {
			return failure.Configurationf("vector %q has dimension %d, store expects %d", rec.ID, len(rec.Vector), i.store.Dimension())
		}
	}
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	if err := i.store.Upsert(ctx, records); err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(records), err)
	}
	return nil
}

func (i *Index) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	return i.store.ExistingIDs(ctx)
}

// Fetch returns ErrNotFound when id has no vector.
func (i *Index) Fetch(ctx context.Context, id string) ([]float32, error) {
	found, err := i.FetchMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	vec, ok := found[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return vec, nil
}

// FetchMany returns vectors for the ids that exist. Missing ids are absent from the map.
func (i *Index) FetchMany(ctx context.Context, ids []string) (map[string][]float32, error) {
	if len(ids) == 0 {
		return map[string][]float32{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	found, err := i.store.Fetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch %d vectors: %w", len(ids), err)
	}
	return found, nil
}

// QuerySimilar returns up to topK ids by descending cosine similarity, ties by ascending id.
func (i *Index) QuerySimilar(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) != i.store.Dimension() {
		return nil, failure.Configurationf("query vector has dimension %d, store expects %d", len(vector), i.store.Dimension())
	}
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	matches, err := i.store.QuerySimilar(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("query similar: %w", err)
	}
	SortMatches(matches)
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
