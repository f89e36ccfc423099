// Package qdrant keeps embeddings in a Qdrant collection. Point ids are derived from the item id,
// which is also stored in the payload.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/spigell/matchai/internal/embedding"
	"github.com/spigell/matchai/internal/failure"
)

const (
	payloadID = "uid"
	pageSize  = 256
	tieSlack  = 16

	maxUnbounded = 10000
)

var pointNamespace = uuid.MustParse("6f1d4c1e-5b8a-4a8e-9a57-3c0f5d2d7a10")

type Config struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// Store is an embedding.Store backed by one Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
	dim        int
}

// Dial connects over gRPC. The port defaults to 6334.
func Dial(cfg Config) (*qdrant.Client, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, failure.Configuration(fmt.Errorf("invalid qdrant url: %w", err))
	}

	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return client, nil
}

// New creates the collection when missing and verifies its vector size.
func New(ctx context.Context, client *qdrant.Client, collection string, dim int) (*Store, error) {
	if collection == "" {
		return nil, failure.Configurationf("qdrant collection name is empty")
	}
	if dim <= 0 {
		return nil, failure.Configurationf("invalid embedding dimension %d", dim)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", collection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("create collection %s: %w", collection, err)
		}
	} else {
		info, err := client.GetCollectionInfo(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("inspect collection %s: %w", collection, err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && size != uint64(dim) {
			return nil, failure.Configurationf("collection %s holds %d-dimensional vectors, embedder produces %d", collection, size, dim)
		}
	}

	return &Store{client: client, collection: collection, dim: dim}, nil
}

// PointID maps an item id to a stable Qdrant point id.
func PointID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

func (s *Store) Dimension() int { return s.dim }

func (s *Store) Upsert(ctx context.Context, records []embedding.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		payload := make(map[string]any, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			payload[k] = v
		}
		payload[payloadID] = rec.ID

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(rec.ID)),
			Vectors: qdrant.NewVectorsDense(rec.Vector),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

func (s *Store) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	var offset *qdrant.PointId

	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(pageSize + 1)),
			WithPayload:    qdrant.NewWithPayloadInclude(payloadID),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll points: %w", err)
		}

		// the extra point is only used as the offset of the next page
		for i, p := range points {
			if i == pageSize {
				break
			}
			if id := p.GetPayload()[payloadID].GetStringValue(); id != "" {
				out[id] = struct{}{}
			}
		}
		if len(points) <= pageSize {
			return out, nil
		}
		offset = points[pageSize].GetId()
	}
}

func (s *Store) Fetch(ctx context.Context, ids []string) (map[string][]float32, error) {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(PointID(id)))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayloadInclude(payloadID),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get points: %w", err)
	}

	out := make(map[string][]float32, len(points))
	for _, p := range points {
		id := p.GetPayload()[payloadID].GetStringValue()
		if id == "" {
			continue
		}
		out[id] = denseValues(p.GetVectors().GetVector())
	}
	return out, nil
}

func (s *Store) QuerySimilar(ctx context.Context, vector []float32, topK int) ([]embedding.Match, error) {
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vector),
		WithPayload:    qdrant.NewWithPayloadInclude(payloadID),
	}
	limit := uint64(maxUnbounded)
	if topK > 0 {
		limit = uint64(topK + tieSlack)
	}
	req.Limit = qdrant.PtrOf(limit)

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	out := make([]embedding.Match, 0, len(points))
	for _, p := range points {
		id := p.GetPayload()[payloadID].GetStringValue()
		if id == "" {
			continue
		}
		out = append(out, embedding.Match{ID: id, Score: float64(p.GetScore())})
	}
	embedding.SortMatches(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func denseValues(v *qdrant.VectorOutput) []float32 {
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	return v.GetData()
}
