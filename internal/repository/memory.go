package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/spigell/matchai/internal/jobs"
)

var _ Repository = (*Memory)(nil)

// Memory keeps everything in process. It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	jobs       map[string]*jobs.Job
	companies  map[string]*jobs.Company
	candidates map[string]*Candidate
	latest     string
	results    []MatchResult
}

func NewMemory() *Memory {
	return &Memory{
		jobs:       make(map[string]*jobs.Job),
		companies:  make(map[string]*jobs.Company),
		candidates: make(map[string]*Candidate),
	}
}

func (m *Memory) InsertJobs(ctx context.Context, batch []*jobs.Job) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, job := range batch {
		if _, ok := m.jobs[job.UID]; ok {
			continue
		}
		m.jobs[job.UID] = cloneJob(job)
		inserted++
	}
	return inserted, nil
}

func (m *Memory) ExistingJobUIDs(ctx context.Context) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{}, len(m.jobs))
	for uid := range m.jobs {
		out[uid] = struct{}{}
	}
	return out, nil
}

func (m *Memory) Jobs(ctx context.Context, q Query) ([]*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]*jobs.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if q.Matches(job) {
			out = append(out, cloneJob(job))
		}
	}
	m.mu.RUnlock()

	sortJobs(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) JobStats(ctx context.Context) (JobStats, error) {
	if err := ctx.Err(); err != nil {
		return JobStats{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	companies := make(map[string]struct{})
	locations := make(map[string]struct{})
	for _, job := range m.jobs {
		if name := strings.TrimSpace(job.CompanyName); name != "" {
			companies[name] = struct{}{}
		}
		if loc := strings.TrimSpace(job.Location); loc != "" {
			locations[loc] = struct{}{}
		}
	}
	return JobStats{Jobs: len(m.jobs), Companies: len(companies), Locations: len(locations)}, nil
}

func (m *Memory) JobsByUIDs(ctx context.Context, uids []string) ([]*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]*jobs.Job, 0, len(uids))
	seen := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		if job, ok := m.jobs[uid]; ok {
			out = append(out, cloneJob(job))
		}
	}
	m.mu.RUnlock()

	sortJobs(out)
	return out, nil
}

func (m *Memory) InsertCompanies(ctx context.Context, companies []*jobs.Company) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, c := range companies {
		if _, ok := m.companies[c.UID]; ok {
			continue
		}
		copied := *c
		m.companies[c.UID] = &copied
		inserted++
	}
	return inserted, nil
}

func (m *Memory) Companies(ctx context.Context) ([]*jobs.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]*jobs.Company, 0, len(m.companies))
	for _, c := range m.companies {
		copied := *c
		out = append(out, &copied)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (m *Memory) SaveCandidate(ctx context.Context, c *Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *c
	m.candidates[c.Hash] = &copied
	m.latest = c.Hash
	return nil
}

func (m *Memory) Candidate(ctx context.Context, hash string) (*Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[hash]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *Memory) LatestCandidate(ctx context.Context) (*Candidate, error) {
	m.mu.RLock()
	latest := m.latest
	m.mu.RUnlock()
	if latest == "" {
		return nil, ErrNotFound
	}
	return m.Candidate(ctx, latest)
}

func (m *Memory) SaveMatchResults(ctx context.Context, results []MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		r.MissingSkills = append([]string(nil), r.MissingSkills...)
		r.Tips = append([]string(nil), r.Tips...)
		m.results = append(m.results, r)
	}
	return nil
}

func (m *Memory) Results(ctx context.Context, hash string) ([]MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]MatchResult, 0)
	for _, r := range m.results {
		if r.CandidateHash == hash {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	SortResults(out)
	return out, nil
}

func (m *Memory) ViewCounts(ctx context.Context, hash string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	runs := make(map[string]map[string]struct{})
	for _, r := range m.results {
		if r.CandidateHash != hash {
			continue
		}
		if runs[r.JobUID] == nil {
			runs[r.JobUID] = make(map[string]struct{})
		}
		if _, seen := runs[r.JobUID][r.RunID]; seen {
			continue
		}
		runs[r.JobUID][r.RunID] = struct{}{}
		counts[r.JobUID]++
	}
	return counts, nil
}

// SortResults orders by newest run first, then rank.
func SortResults(results []MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		if results[i].RunID != results[j].RunID {
			return results[i].RunID < results[j].RunID
		}
		return results[i].Rank < results[j].Rank
	})
}

func sortJobs(list []*jobs.Job) {
	sort.Slice(list, func(i, j int) bool { return list[i].UID < list[j].UID })
}

func cloneJob(job *jobs.Job) *jobs.Job {
	copied := *job
	copied.Details = append([]jobs.Detail(nil), job.Details...)
	copied.Keywords = append([]string(nil), job.Keywords...)
	return &copied
}
