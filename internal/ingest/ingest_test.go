package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/matchai/internal/embedding"
	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/repository"
	"github.com/spigell/matchai/internal/seniority"
)

const testDim = 32

// flakyEmbedder fails every call that contains a text with the marker while broken is set.
type flakyEmbedder struct {
	*embedding.Hashing
	broken bool
	marker string
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.broken {
		for _, text := range texts {
			if strings.Contains(text, f.marker) {
				return nil, errors.New("model rejected input")
			}
		}
	}
	return f.Hashing.Embed(ctx, texts)
}

type fixture struct {
	repo     *repository.Memory
	store    *embedding.Memory
	embedder *flakyEmbedder
	coord    *Coordinator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		repo:     repository.NewMemory(),
		store:    embedding.NewMemory(testDim),
		embedder: &flakyEmbedder{Hashing: embedding.NewHashing(testDim), marker: "cobol"},
	}
	index, err := embedding.NewIndex(f.embedder, f.store, embedding.IndexConfig{}, nil)
	require.NoError(t, err)

	f.coord, err = New(cfg, Deps{Repository: f.repo, Index: index})
	require.NoError(t, err)
	return f
}

func makeJob(uid, skill string) *jobs.Job {
	return &jobs.Job{
		UID:       uid,
		CompanyID: "acme",
		Title:     "Engineer " + uid,
		Seniority: seniority.Mid,
		Location:  "NYC",
		Details:   []jobs.Detail{{Name: "Requirements", Value: "<p>" + skill + "</p>", Order: 1}},
	}
}

func makeBatch(n int) []*jobs.Job {
	batch := make([]*jobs.Job, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, makeJob(fmt.Sprintf("job-%03d", i), "python sql"))
	}
	return batch
}

func TestIngestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{BatchSize: 7})

	stats, err := f.coord.Ingest(ctx, makeBatch(100))
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Received)
	assert.Equal(t, 100, stats.Inserted)
	assert.Equal(t, 100, stats.Embedded)
	assert.Equal(t, 0, stats.Skipped)
	assert.Empty(t, stats.Failures)

	first, err := f.store.Fetch(ctx, []string{"job-042"})
	require.NoError(t, err)

	stats, err = f.coord.Ingest(ctx, makeBatch(100))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 100, stats.Skipped)
	assert.Equal(t, 0, stats.Embedded)
	assert.Equal(t, 0, stats.Repaired)

	uids, err := f.repo.ExistingJobUIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, uids, 100)

	ids, err := f.store.ExistingIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 100)

	second, err := f.store.Fetch(ctx, []string{"job-042"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIngestValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	noLocation := makeJob("no-location", "go")
	noLocation.Location = ""
	unknownLevel := makeJob("no-level", "go")
	unknownLevel.Seniority = seniority.Unknown
	unknownLevel.Title = "Engineer"
	derived := makeJob("derived", "go")
	derived.Seniority = seniority.Unknown
	derived.Title = "Senior Go Engineer"

	stats, err := f.coord.Ingest(ctx, []*jobs.Job{
		makeJob("a", "go"), makeJob("a", "go"), noLocation, unknownLevel, derived, nil,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Received)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 3, stats.FailedValidation)
	require.Len(t, stats.Failures, 3)
	for _, rec := range stats.Failures {
		assert.Equal(t, failure.KindValidation, rec.Kind)
	}

	stored, err := f.repo.JobsByUIDs(ctx, []string{"derived"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, seniority.Senior, stored[0].Seniority)
	assert.Contains(t, stored[0].Keywords, "go")
}

func TestIngestDefaultSeniority(t *testing.T) {
	f := newFixture(t, Config{DefaultSeniority: seniority.Junior})

	job := makeJob("a", "go")
	job.Seniority = seniority.Unknown
	job.Title = "Engineer"

	stats, err := f.coord.Ingest(context.Background(), []*jobs.Job{job})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, seniority.Junior, job.Seniority)
}

func TestIngestEmbeddingFailureKeepsJobAndRepairs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.embedder.broken = true

	batch := []*jobs.Job{makeJob("a", "python"), makeJob("b", "cobol mainframe"), makeJob("c", "sql")}
	stats, err := f.coord.Ingest(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 2, stats.Embedded)
	assert.Equal(t, 1, stats.FailedEmbedding)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, failure.KindEmbedding, stats.Failures[0].Kind)
	assert.Equal(t, "b", stats.Failures[0].ID)

	kept, err := f.repo.JobsByUIDs(ctx, []string{"b"})
	require.NoError(t, err)
	assert.Len(t, kept, 1)
	ids, _ := f.store.ExistingIDs(ctx)
	assert.NotContains(t, ids, "b")

	f.embedder.broken = false
	stats, err = f.coord.Ingest(ctx, []*jobs.Job{makeJob("a", "python"), makeJob("b", "cobol mainframe")})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, stats.Repaired)

	ids, _ = f.store.ExistingIDs(ctx)
	assert.Contains(t, ids, "b")
}

func TestIngestRecords(t *testing.T) {
	f := newFixture(t, Config{})

	stats, err := f.coord.IngestRecords(context.Background(), []map[string]any{
		{
			"uid": "A", "company_uid": "acme", "title": "Data Engineer", "seniority": "mid", "location": "NYC",
			"details": []any{map[string]any{"name": "Requirements", "value": "Python, SQL", "order": 1}},
		},
		{"uid": "B", "company_uid": "acme", "title": "Engineer", "seniority": "wizard", "location": "NYC"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Received)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.FailedValidation)
}

func TestIngestStopsOnCancellation(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.coord.Ingest(ctx, makeBatch(4))
	require.ErrorIs(t, err, context.Canceled)
}

type stubSource struct {
	positions map[string][]map[string]any
}

func (s *stubSource) Positions(_ context.Context, company *jobs.Company) ([]map[string]any, error) {
	records, ok := s.positions[company.UID]
	if !ok {
		return nil, errors.New("unauthorized")
	}
	return records, nil
}

func TestIngestCompanies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	_, err := f.repo.InsertCompanies(ctx, []*jobs.Company{{UID: "acme", Name: "Acme"}, {UID: "broken"}})
	require.NoError(t, err)

	source := &stubSource{positions: map[string][]map[string]any{
		"acme": {{
			"uid": "p1", "title": "Senior Backend Engineer", "location": "Tel Aviv",
			"details": []any{map[string]any{"name": "Description", "value": "<p>Go services</p>", "order": 1}},
		}},
	}}

	stats, err := f.coord.IngestCompanies(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompaniesProcessed)
	assert.Equal(t, 1, stats.Fetched)
	assert.Equal(t, 1, stats.Inserted)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, failure.KindSource, stats.Failures[0].Kind)

	stored, err := f.repo.JobsByUIDs(ctx, []string{"p1"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "acme", stored[0].CompanyID)
	assert.Equal(t, "Acme", stored[0].CompanyName)
	assert.Equal(t, seniority.Senior, stored[0].Seniority)
}

func TestNewRejectsMissingDeps(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.True(t, failure.IsConfiguration(err))
}
