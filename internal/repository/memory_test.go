package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/matchai/internal/candidate"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/seniority"
)

func job(uid, location string, level seniority.Level) *jobs.Job {
	return &jobs.Job{UID: uid, CompanyID: "acme", Title: "Engineer " + uid, Location: location, Seniority: level}
}

func TestInsertJobsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	batch := []*jobs.Job{job("b", "NYC", seniority.Mid), job("a", "NYC", seniority.Mid)}
	n, err := repo.InsertJobs(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	batch[0].Title = "changed"
	n, err = repo.InsertJobs(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stored, err := repo.JobsByUIDs(ctx, []string{"b", "a", "b", "missing"})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "a", stored[0].UID)
	assert.Equal(t, "Engineer b", stored[1].Title)

	uids, err := repo.ExistingJobUIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, uids, 2)
}

func TestJobsPushDown(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	_, err := repo.InsertJobs(ctx, []*jobs.Job{
		job("a", "New York, NY", seniority.Mid),
		job("b", "Tel-Aviv", seniority.Senior),
		job("c", "Remote", seniority.Junior),
		job("d", "London", seniority.Mid),
	})
	require.NoError(t, err)

	window := seniority.Around(seniority.Mid, 0)
	got, err := repo.Jobs(ctx, Query{Location: "new york", Window: &window})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, uids(got))

	got, err = repo.Jobs(ctx, Query{Location: "Tel Aviv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, uids(got))

	got, err = repo.Jobs(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, uids(got))
}

func TestJobStats(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	stats, err := repo.JobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobStats{}, stats)

	batch := []*jobs.Job{
		job("a", "NYC", seniority.Mid),
		job("b", "NYC", seniority.Mid),
		job("c", "London", seniority.Mid),
		job("d", " ", seniority.Mid),
	}
	batch[0].CompanyName = "Acme"
	batch[1].CompanyName = "Acme"
	batch[2].CompanyName = "Globex"
	_, err = repo.InsertJobs(ctx, batch)
	require.NoError(t, err)

	stats, err = repo.JobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobStats{Jobs: 4, Companies: 2, Locations: 2}, stats)
}

func TestCompaniesAndCandidates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	n, err := repo.InsertCompanies(ctx, []*jobs.Company{{UID: "z", Name: "Zed"}, {UID: "a", Name: "Acme"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = repo.InsertCompanies(ctx, []*jobs.Company{{UID: "a", Name: "Other"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	companies, err := repo.Companies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, "Acme", companies[0].Name)

	_, err = repo.LatestCandidate(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	profile := candidate.Profile{Skills: []string{"go"}, Seniority: seniority.Mid}
	require.NoError(t, repo.SaveCandidate(ctx, &Candidate{Hash: "h1", Profile: profile}))
	got, err := repo.Candidate(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, profile.Skills, got.Profile.Skills)

	latest, err := repo.LatestCandidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "h1", latest.Hash)

	_, err = repo.Candidate(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResultsAndViewCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, repo.SaveMatchResults(ctx, []MatchResult{
		{RunID: "r1", CandidateHash: "h", JobUID: "a", Rank: 1, CreatedAt: first},
		{RunID: "r1", CandidateHash: "h", JobUID: "b", Rank: 2, CreatedAt: first},
		{RunID: "r2", CandidateHash: "h", JobUID: "a", Rank: 1, CreatedAt: second},
		{RunID: "r3", CandidateHash: "other", JobUID: "a", Rank: 1, CreatedAt: second},
	}))

	results, err := repo.Results(ctx, "h")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "r2", results[0].RunID)
	assert.Equal(t, "a", results[1].JobUID)
	assert.Equal(t, "b", results[2].JobUID)

	counts, err := repo.ViewCounts(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, counts)
}

func uids(list []*jobs.Job) []string {
	out := make([]string, 0, len(list))
	for _, j := range list {
		out = append(out, j.UID)
	}
	return out
}
