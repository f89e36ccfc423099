// Package repository defines durable storage for jobs, companies, candidates and match results.
// Backends live in subpackages; the in-memory backend is in this package.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/matchai/internal/candidate"
	"github.com/spigell/matchai/internal/fuzzy"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/seniority"
)

var ErrNotFound = errors.New("not found")

// Query holds the predicates a backend applies in storage.
type Query struct {
	// Location is matched by containment or edit-distance ratio. Remote jobs always match.
	Location          string
	LocationThreshold float64
	Window            *seniority.Window
	Limit             int
}

// Matches evaluates the query against a job in memory.
func (q Query) Matches(job *jobs.Job) bool {
	if q.Window != nil && !q.Window.Contains(job.Seniority) {
		return false
	}
	if q.Location == "" || job.IsRemote() {
		return true
	}
	return fuzzy.ContainsOrSimilar(job.Location, q.Location, q.threshold())
}

func (q Query) threshold() float64 {
	if q.LocationThreshold <= 0 {
		return fuzzy.DefaultThreshold
	}
	return q.LocationThreshold
}

// Candidate is a parsed CV stored under its hash.
type Candidate struct {
	Hash      string
	Profile   candidate.Profile
	UpdatedAt time.Time
}

// MatchResult is one ranked job of a match run.
type MatchResult struct {
	RunID             string    `json:"run_id"`
	CandidateHash     string    `json:"candidate_hash"`
	JobUID            string    `json:"job_uid"`
	Rank              int       `json:"rank"`
	Title             string    `json:"title"`
	CompanyName       string    `json:"company_name"`
	Location          string    `json:"location"`
	ApplyURL          string    `json:"apply_url,omitempty"`
	Similarity        float64   `json:"similarity"`
	SkillFraction     float64   `json:"skill_fraction"`
	FinalScore        float64   `json:"final_score"`
	MissingSkills     []string  `json:"missing_skills"`
	Explanation       string    `json:"explanation"`
	ExplanationFailed bool      `json:"explanation_failed"`
	Tips              []string  `json:"tips,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type JobRepository interface {
	// InsertJobs stores jobs whose uid is not yet present and returns how many were inserted.
	InsertJobs(ctx context.Context, jobs []*jobs.Job) (int, error)
	ExistingJobUIDs(ctx context.Context) (map[string]struct{}, error)
	Jobs(ctx context.Context, q Query) ([]*jobs.Job, error)
	JobsByUIDs(ctx context.Context, uids []string) ([]*jobs.Job, error)
	InsertCompanies(ctx context.Context, companies []*jobs.Company) (int, error)
	Companies(ctx context.Context) ([]*jobs.Company, error)
	JobStats(ctx context.Context) (JobStats, error)
}

// JobStats counts stored jobs. Empty company names and locations are not counted.
type JobStats struct {
	Jobs      int `json:"jobs"`
	Companies int `json:"companies"`
	Locations int `json:"locations"`
}

type CandidateRepository interface {
	SaveCandidate(ctx context.Context, c *Candidate) error
	// Candidate returns ErrNotFound for an unknown hash.
	Candidate(ctx context.Context, hash string) (*Candidate, error)
	// LatestCandidate returns the most recently saved candidate or ErrNotFound.
	LatestCandidate(ctx context.Context) (*Candidate, error)
}

type ResultRepository interface {
	SaveMatchResults(ctx context.Context, results []MatchResult) error
	// Results lists stored results for a candidate, newest run first, then by rank.
	Results(ctx context.Context, hash string) ([]MatchResult, error)
	// ViewCounts returns how many runs showed each job to the candidate.
	ViewCounts(ctx context.Context, hash string) (map[string]int, error)
}

// Repository is the full storage surface used by the commands.
type Repository interface {
	JobRepository
	CandidateRepository
	ResultRepository
}
