// Package matching runs one candidate through filtering, ranking and explanation and stores the
// ranked results of the run.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/ai"
	"github.com/spigell/matchai/internal/embedding"
	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/filtering"
	"github.com/spigell/matchai/internal/fuzzy"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/logger"
	"github.com/spigell/matchai/internal/ranking"
	"github.com/spigell/matchai/internal/repository"
)

// PlaceholderExplanation replaces an explanation that could not be generated.
const PlaceholderExplanation = "Explanation unavailable for this match."

const (
	defaultTopN             = 10
	defaultExplainTimeout   = 30 * time.Second
	defaultMaxMissingSkills = 10
)

type Config struct {
	TopN             int           `mapstructure:"top_n"`
	ExplainTimeout   time.Duration `mapstructure:"explain_timeout"`
	MaxMissingSkills int           `mapstructure:"max_missing_skills"`
	SkipExplanations bool          `mapstructure:"skip_explanations"`
}

func (c Config) withDefaults() Config {
	if c.TopN <= 0 {
		c.TopN = defaultTopN
	}
	if c.ExplainTimeout <= 0 {
		c.ExplainTimeout = defaultExplainTimeout
	}
	if c.MaxMissingSkills <= 0 {
		c.MaxMissingSkills = defaultMaxMissingSkills
	}
	return c
}

type Deps struct {
	Jobs    repository.JobRepository
	Results repository.ResultRepository
	Filter  *filtering.Engine
	Ranker  *ranking.Ranker
	// JobVectors holds the job embeddings written at ingestion.
	JobVectors *embedding.Index
	// CandidateVectors caches candidate embeddings by hash. When nil the profile is embedded
	// with JobVectors on every run.
	CandidateVectors *embedding.Index
	// Explainer is optional. Without it results carry no explanation.
	Explainer ai.Explainer
	Logger    *zap.Logger
}

// Request asks for the best jobs for one candidate.
type Request struct {
	Candidate          *repository.Candidate
	Location           string
	SeniorityTolerance *int
	// TopN overrides the configured number of results when positive.
	TopN              int
	IgnoreViewHistory bool
}

type Orchestrator struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Jobs == nil || deps.Results == nil || deps.Filter == nil || deps.Ranker == nil || deps.JobVectors == nil {
		return nil, failure.Configurationf("match orchestrator requires job and result repositories, filter engine, ranker and job vectors")
	}
	if deps.CandidateVectors != nil && deps.CandidateVectors.Dimension() != deps.JobVectors.Dimension() {
		return nil, failure.Configurationf("candidate vectors have dimension %d but job vectors have %d",
			deps.CandidateVectors.Dimension(), deps.JobVectors.Dimension())
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg.withDefaults(), deps: deps, now: time.Now}, nil
}

// run carries the mutable state of one Match call.
type run struct {
	id      string
	req     Request
	topN    int
	machine *machine
	summary failure.Summary
	report  *Report
	logger  *zap.Logger
}

// Match runs the pipeline for req. The returned report is never nil; err is set only when the run
// was aborted, in which case the report outcome is OutcomeAborted.
func (o *Orchestrator) Match(ctx context.Context, req Request) (*Report, error) {
	r := o.newRun(req)

	err := o.execute(ctx, r)
	if err != nil {
		failedAt := r.machine.current()
		_ = r.machine.move(StateFailed)
		r.report.Outcome = OutcomeAborted
		r.report.Error = err.Error()
		r.report.Results = nil
		r.logger.Error("match aborted", zap.String("state", string(failedAt)), zap.Error(err))
	}

	r.report.finish(r.machine, &r.summary, o.now())
	if err == nil {
		r.logger.Info("match finished",
			zap.String("outcome", string(r.report.Outcome)),
			zap.Int("considered", r.report.Considered),
			zap.Int("filtered_out", r.report.FilteredOut),
			zap.Int("ranked", r.report.Ranked),
			zap.Int("failures", len(r.report.Failures)),
		)
	}
	return r.report, err
}

func (o *Orchestrator) newRun(req Request) *run {
	id := uuid.NewString()
	hash := ""
	if req.Candidate != nil {
		hash = req.Candidate.Hash
	}
	topN := o.cfg.TopN
	if req.TopN > 0 {
		topN = req.TopN
	}
	return &run{
		id:      id,
		req:     req,
		topN:    topN,
		machine: newMachine(),
		report:  &Report{RunID: id, CandidateHash: hash, StartedAt: o.now().UTC()},
		logger:  logger.WithRunFields(o.deps.Logger, id, hash),
	}
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	if r.req.Candidate == nil || strings.TrimSpace(r.req.Candidate.Hash) == "" {
		return errors.New("candidate with a hash is required")
	}
	if err := r.req.Candidate.Profile.Validate(); err != nil {
		return fmt.Errorf("invalid candidate profile: %w", err)
	}

	if err := r.machine.move(StateFiltering); err != nil {
		return err
	}
	items, err := o.filter(ctx, r)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		r.report.Outcome = OutcomeNoMatch
		return r.machine.move(StateDone)
	}

	if err := r.machine.move(StateRanking); err != nil {
		return err
	}
	ranked, err := o.rank(ctx, r, items)
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		r.report.Outcome = OutcomeNoMatch
		return r.machine.move(StateDone)
	}

	if err := r.machine.move(StateExplaining); err != nil {
		return err
	}
	results, err := o.explain(ctx, r, items, ranked)
	if err != nil {
		return err
	}

	if err := o.deps.Results.SaveMatchResults(ctx, results); err != nil {
		return fmt.Errorf("save match results: %w", err)
	}
	r.report.Results = results
	r.report.Outcome = OutcomeMatched
	return r.machine.move(StateDone)
}

func (o *Orchestrator) filterRequest(r *run) filtering.Request {
	return filtering.Request{
		CandidateHash:      r.req.Candidate.Hash,
		Profile:            r.req.Candidate.Profile,
		Location:           r.req.Location,
		SeniorityTolerance: r.req.SeniorityTolerance,
		IgnoreViewHistory:  r.req.IgnoreViewHistory,
	}
}

// filter loads the jobs passing the storage push-down and applies the in-memory filters.
func (o *Orchestrator) filter(ctx context.Context, r *run) (map[string]*filtering.Item, error) {
	freq := o.filterRequest(r)

	list, err := o.deps.Jobs.Jobs(ctx, o.deps.Filter.Query(freq))
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	r.report.Considered = len(list)

	set, statuses, err := o.deps.Filter.Apply(ctx, freq, list)
	if err != nil {
		return nil, fmt.Errorf("apply filters: %w", err)
	}
	r.report.Filters = statuses
	r.report.FilteredOut = len(list) - set.Len()

	items := make(map[string]*filtering.Item, set.Len())
	for _, item := range set.Items {
		items[item.Job.UID] = item
	}
	return items, nil
}

// rank scores the filtered jobs against the candidate vector. Jobs without a stored vector are
// recorded as embedding failures and left out.
func (o *Orchestrator) rank(ctx context.Context, r *run, items map[string]*filtering.Item) ([]ranking.Scored, error) {
	candidateVec, err := o.candidateVector(ctx, r)
	if err != nil {
		return nil, err
	}

	uids := make([]string, 0, len(items))
	for uid := range items {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	vectors, err := o.deps.JobVectors.FetchMany(ctx, uids)
	if err != nil {
		return nil, fmt.Errorf("fetch job vectors: %w", err)
	}

	similarities, missing := ranking.ComputeSimilarities(candidateVec, uids, vectors)
	for _, uid := range missing {
		r.summary.Add(failure.Embedding(uid, errors.New("job has no stored vector")))
	}
	if len(missing) > 0 {
		r.logger.Warn("jobs without vectors skipped", zap.Int("count", len(missing)))
	}

	scoring := make([]ranking.Item, 0, len(similarities))
	for uid, sim := range similarities {
		scoring = append(scoring, ranking.Item{UID: uid, Similarity: sim, SkillFraction: items[uid].SkillFraction})
	}

	ranked, err := o.deps.Ranker.Rank(scoring, r.topN)
	if err != nil {
		return nil, err
	}
	r.report.Ranked = len(ranked)
	return ranked, nil
}

// candidateVector reuses the stored vector for the candidate hash or embeds the profile.
func (o *Orchestrator) candidateVector(ctx context.Context, r *run) ([]float32, error) {
	hash := r.req.Candidate.Hash
	if o.deps.CandidateVectors != nil {
		vec, err := o.deps.CandidateVectors.Fetch(ctx, hash)
		if err == nil {
			return vec, nil
		}
		if !errors.Is(err, embedding.ErrNotFound) {
			return nil, fmt.Errorf("fetch candidate vector: %w", err)
		}
	}

	vec, err := o.deps.JobVectors.Embed(ctx, r.req.Candidate.Profile.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("embed candidate profile: %w", err)
	}

	if o.deps.CandidateVectors != nil {
		meta := embedding.Metadata{"kind": "candidate", "seniority": r.req.Candidate.Profile.Seniority.String()}
		if err := o.deps.CandidateVectors.Upsert(ctx, hash, vec, meta); err != nil {
			return nil, fmt.Errorf("store candidate vector: %w", err)
		}
	}
	return vec, nil
}

// explain builds the results of the run. An explanation failure only degrades its own result.
func (o *Orchestrator) explain(ctx context.Context, r *run, items map[string]*filtering.Item, ranked []ranking.Scored) ([]repository.MatchResult, error) {
	profile := r.req.Candidate.Profile
	terms := termWords(profile.Terms())
	threshold := o.deps.Filter.Config().SkillThreshold
	createdAt := o.now().UTC()

	results := make([]repository.MatchResult, 0, len(ranked))
	for _, scored := range ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		job := items[scored.UID].Job
		result := repository.MatchResult{
			RunID:         r.id,
			CandidateHash: r.req.Candidate.Hash,
			JobUID:        job.UID,
			Rank:          scored.Rank,
			Title:         job.Title,
			CompanyName:   companyName(job),
			Location:      job.Location,
			ApplyURL:      job.ApplyURL(),
			Similarity:    scored.Similarity,
			SkillFraction: scored.SkillFraction,
			FinalScore:    scored.FinalScore,
			MissingSkills: MissingSkills(terms, job.Keywords, threshold, o.cfg.MaxMissingSkills),
			CreatedAt:     createdAt,
		}

		if o.deps.Explainer != nil && !o.cfg.SkipExplanations {
			o.describe(ctx, r, &result, profile.EmbeddingText(), job.Summary())
		}
		results = append(results, result)
	}
	return results, nil
}

func (o *Orchestrator) describe(ctx context.Context, r *run, result *repository.MatchResult, profileSummary, jobSummary string) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ExplainTimeout)
	defer cancel()

	explanation, err := o.deps.Explainer.Explain(callCtx, &ai.ExplainRequest{
		JobUID:         result.JobUID,
		ProfileSummary: profileSummary,
		JobSummary:     jobSummary,
		MissingSkills:  result.MissingSkills,
		FinalScore:     result.FinalScore,
	})
	if err != nil {
		result.Explanation = PlaceholderExplanation
		result.ExplanationFailed = true
		r.summary.Add(failure.FromCall(failure.KindExplanation, result.JobUID, err))
		r.logger.Warn("explanation failed", zap.String(logger.FieldJobUID, result.JobUID), zap.Error(err))
		return
	}

	result.Explanation = explanation.Text
	result.Tips = explanation.Tips
	if len(explanation.MissingSkills) > 0 {
		result.MissingSkills = explanation.MissingSkills
	}
}

// MissingSkills returns job keywords that fuzzy-match none of the candidate words, at most limit
// of them, in keyword order.
func MissingSkills(candidateWords, keywords []string, threshold float64, limit int) []string {
	missing := make([]string, 0)
	for _, keyword := range keywords {
		if limit > 0 && len(missing) == limit {
			break
		}
		if !fuzzy.Any(keyword, candidateWords, threshold) {
			missing = append(missing, keyword)
		}
	}
	return missing
}

// termWords splits multi-word terms so each word can match a keyword on its own.
func termWords(terms []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, term := range terms {
		for _, word := range strings.Fields(term) {
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			out = append(out, word)
		}
	}
	return out
}

func companyName(job *jobs.Job) string {
	if job.CompanyName != "" {
		return job.CompanyName
	}
	return job.CompanyID
}
