package gemini

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeModels struct {
	resp   *genai.EmbedContentResponse
	err    error
	config *genai.EmbedContentConfig
	count  int
}

func (f *fakeModels) EmbedContent(_ context.Context, _ string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.config = config
	f.count = len(contents)
	return f.resp, f.err
}

func newTestEmbedder(models contentEmbedder) *Embedder {
	return &Embedder{models: models, model: defaultEmbedModel, dim: 3, logger: zap.NewNop()}
}

func TestEmbedderEmbed(t *testing.T) {
	models := &fakeModels{resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{
		{Values: []float32{1, 0, 0}},
		{Values: []float32{0, 1, 0}},
	}}}
	embedder := newTestEmbedder(models)

	vectors, err := embedder.Embed(context.Background(), []string{"go developer", "python developer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 || vectors[1][1] != 1 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
	if models.count != 2 {
		t.Fatalf("expected both texts in one call, got %d", models.count)
	}
	if models.config.OutputDimensionality == nil || *models.config.OutputDimensionality != 3 {
		t.Fatalf("expected output dimensionality 3")
	}
	if embedder.Name() != "gemini/gemini-embedding-001" || embedder.Dimension() != 3 {
		t.Fatalf("unexpected embedder identity %s/%d", embedder.Name(), embedder.Dimension())
	}
}

func TestEmbedderRejectsBadResponses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		resp *genai.EmbedContentResponse
	}{
		{name: "count mismatch", resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{1, 0, 0}}}}},
		{name: "nil response", resp: nil},
		{name: "nan", resp: &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{
			{Values: []float32{1, 0, 0}},
			{Values: []float32{float32(math.NaN()), 0, 0}},
		}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			embedder := newTestEmbedder(&fakeModels{resp: tc.resp})
			if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
