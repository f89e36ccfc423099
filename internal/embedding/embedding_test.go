package embedding

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/matchai/internal/failure"
)

type stubEmbedder struct {
	dim   int
	calls int
	fail  func(texts []string) error
}

func (s *stubEmbedder) Name() string   { return "stub" }
func (s *stubEmbedder) Dimension() int { return s.dim }

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.fail != nil {
		if err := s.fail(texts); err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, s.dim)
		vec[len(text)%s.dim] = 1
		out[i] = vec
	}
	return out, nil
}

type slowEmbedder struct{ stubEmbedder }

func (s *slowEmbedder) Embed(ctx context.Context, _ []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHashingIsDeterministicAndNormalized(t *testing.T) {
	h := NewHashing(64)
	first, err := h.Embed(context.Background(), []string{"python sql data pipelines"})
	require.NoError(t, err)
	second, err := h.Embed(context.Background(), []string{"python sql data pipelines"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first[0], 64)

	var norm float64
	for _, x := range first[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	_, err = h.Embed(context.Background(), []string{"   "})
	assert.Error(t, err)
}

func TestHashingIsBitStableWithCollidingFeatures(t *testing.T) {
	// A tiny dimension forces many features into the same bucket.
	h := NewHashing(16)
	text := strings.Repeat("go rust python java kotlin scala sql postgres redis kafka docker kubernetes terraform aws gcp azure ", 3)

	first, err := h.Embed(context.Background(), []string{text})
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		again, err := h.Embed(context.Background(), []string{text})
		require.NoError(t, err)
		for j := range first[0] {
			if math.Float32bits(first[0][j]) != math.Float32bits(again[0][j]) {
				t.Fatalf("call %d: component %d differs: %v vs %v", i, j, first[0][j], again[0][j])
			}
		}
	}
}

func TestHashingSimilarTextsScoreHigher(t *testing.T) {
	h := NewHashing(DefaultDimension)
	vecs, err := h.Embed(context.Background(), []string{
		"python sql data engineer",
		"data engineer python sql airflow",
		"frontend react designer",
	})
	require.NoError(t, err)

	assert.Greater(t, Cosine(vecs[0], vecs[1]), Cosine(vecs[0], vecs[2]))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 0}))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]float32{0, 1}, 2))
	assert.Error(t, Validate([]float32{1}, 2))
	assert.Error(t, Validate([]float32{0, 0}, 2))
	assert.Error(t, Validate([]float32{float32(math.NaN()), 1}, 2))
}

func TestNewIndexRejectsDimensionMismatch(t *testing.T) {
	_, err := NewIndex(&stubEmbedder{dim: 4}, NewMemory(8), IndexConfig{}, nil)
	require.Error(t, err)
	assert.True(t, failure.IsConfiguration(err))
}

func TestIndexUpsertFetchAndQuery(t *testing.T) {
	ctx := context.Background()
	index, err := NewIndex(&stubEmbedder{dim: 3}, NewMemory(3), IndexConfig{}, nil)
	require.NoError(t, err)

	require.NoError(t, index.Upsert(ctx, "b", []float32{1, 0, 0}, Metadata{"title": "B"}))
	require.NoError(t, index.Upsert(ctx, "a", []float32{1, 0, 0}, nil))
	require.NoError(t, index.Upsert(ctx, "c", []float32{0, 1, 0}, nil))
	// last write wins
	require.NoError(t, index.Upsert(ctx, "c", []float32{0, 0, 1}, nil))

	vec, err := index.Fetch(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, vec)

	_, err = index.Fetch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	matches, err := index.QuerySimilar(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)

	ids, err := index.ExistingIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	err = index.Upsert(ctx, "d", []float32{1, 0}, nil)
	assert.True(t, failure.IsConfiguration(err))

	_, err = index.QuerySimilar(ctx, []float32{1}, 1)
	assert.True(t, failure.IsConfiguration(err))
}

func TestEmbedBatchIsolatesBadItems(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	embedder := &stubEmbedder{dim: 4, fail: func(texts []string) error {
		for _, text := range texts {
			if strings.Contains(text, "broken") {
				return errors.New("malformed input")
			}
		}
		return nil
	}}
	index, err := NewIndex(embedder, NewMemory(4), IndexConfig{}, zap.New(core))
	require.NoError(t, err)

	vectors, errs := index.EmbedBatch(context.Background(), []string{"ok one", "broken", "", "ok two"})
	require.Len(t, vectors, 4)

	assert.NoError(t, errs[0])
	assert.NotNil(t, vectors[0])
	assert.Equal(t, failure.KindEmbedding, failure.KindOf(errs[1]))
	assert.Equal(t, failure.KindEmbedding, failure.KindOf(errs[2]))
	assert.NoError(t, errs[3])
	assert.NotNil(t, vectors[3])

	// one batch call plus three single retries; the empty text never reaches the embedder
	assert.Equal(t, 4, embedder.calls)
	assert.Equal(t, 1, logs.FilterMessage("batch embedding failed, retrying items one by one").Len())
}

func TestEmbedTimeout(t *testing.T) {
	index, err := NewIndex(&slowEmbedder{stubEmbedder{dim: 2}}, NewMemory(2), IndexConfig{Timeout: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = index.Embed(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, failure.KindTimeout, failure.KindOf(err))
}

func TestMemoryCopiesVectors(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(2)
	vec := []float32{1, 0}
	require.NoError(t, store.Upsert(ctx, []Record{{ID: "a", Vector: vec, Metadata: Metadata{"k": "v"}}}))
	vec[0] = 5

	found, err := store.Fetch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, found["a"])
	assert.NotContains(t, found, "b")
}
