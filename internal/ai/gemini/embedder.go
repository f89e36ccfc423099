package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/matchai/internal/logger"
)

const (
	defaultEmbedModel = "gemini-embedding-001"
	embedTaskType     = "SEMANTIC_SIMILARITY"
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder produces vectors of a fixed dimension with the Gemini embedding API.
type Embedder struct {
	models contentEmbedder
	model  string
	dim    int
	logger *zap.Logger
}

func NewEmbedder(client *genai.Client, cfg Config, dim int, log *zap.Logger) *Embedder {
	model := strings.TrimSpace(cfg.EmbedModel)
	if model == "" {
		model = defaultEmbedModel
	}
	return &Embedder{
		models: client.Models,
		model:  model,
		dim:    dim,
		logger: logger.WithCommonFields(log, provider, model),
	}
}

func (e *Embedder) Name() string { return provider + "/" + e.model }

func (e *Embedder) Dimension() int { return e.dim }

// Embed returns one vector per text in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	dim := int32(e.dim)
	resp, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             embedTaskType,
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", got, len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, errors.New("gemini returned an empty embedding")
		}
		for _, v := range emb.Values {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, fmt.Errorf("gemini returned a non-finite value for text %d", i)
			}
		}
		out[i] = emb.Values
	}

	e.logger.Debug("gemini embeddings received", zap.Int("texts", len(texts)), zap.Int("dimension", e.dim))
	return out, nil
}
