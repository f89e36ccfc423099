// Package ingest merges job batches into the repository and the job embedding store exactly once
// per uid.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/embedding"
	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/repository"
	"github.com/spigell/matchai/internal/seniority"
)

const (
	defaultBatchSize   = 32
	defaultItemTimeout = time.Minute
)

type Config struct {
	BatchSize        int             `mapstructure:"batch_size"`
	DefaultSeniority seniority.Level `mapstructure:"default_seniority"`
	ItemTimeout      time.Duration   `mapstructure:"item_timeout"`
	SkipRepair       bool            `mapstructure:"skip_repair"`
}

type Deps struct {
	Repository repository.JobRepository
	Index      *embedding.Index
	Logger     *zap.Logger
}

// Stats reports the outcome of one ingestion run.
type Stats struct {
	Received           int              `json:"received"`
	Inserted           int              `json:"inserted"`
	Skipped            int              `json:"skipped"`
	FailedValidation   int              `json:"failed_validation"`
	FailedEmbedding    int              `json:"failed_embedding"`
	Embedded           int              `json:"embedded"`
	Repaired           int              `json:"repaired"`
	CompaniesProcessed int              `json:"companies_processed,omitempty"`
	Fetched            int              `json:"jobs_fetched,omitempty"`
	Failures           []failure.Record `json:"failures,omitempty"`
}

// Fields renders stats as log fields.
func (s Stats) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("received", s.Received),
		zap.Int("inserted", s.Inserted),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed_validation", s.FailedValidation),
		zap.Int("failed_embedding", s.FailedEmbedding),
		zap.Int("embedded", s.Embedded),
		zap.Int("repaired", s.Repaired),
	}
}

type Coordinator struct {
	cfg    Config
	repo   repository.JobRepository
	index  *embedding.Index
	logger *zap.Logger
}

func New(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Repository == nil {
		return nil, failure.Configurationf("job repository is required")
	}
	if deps.Index == nil {
		return nil, failure.Configurationf("embedding index is required")
	}
	if cfg.BatchSize < 0 {
		return nil, failure.Configurationf("batch size must not be negative, got %d", cfg.BatchSize)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = defaultItemTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, repo: deps.Repository, index: deps.Index, logger: logger}, nil
}

// IngestRecords decodes untyped records and ingests them. Records that cannot be decoded count as
// validation failures.
func (c *Coordinator) IngestRecords(ctx context.Context, records []map[string]any) (Stats, error) {
	decoded, errs := jobs.Decode(records)
	run := newRun()
	run.stats.Received = len(records)
	for _, err := range errs {
		run.validationFailed(err)
	}
	return c.ingest(ctx, run, decoded)
}

// Ingest merges batch into storage. Running it twice on the same batch inserts nothing the second
// time. Per-item failures are collected in the stats; the returned error is reserved for
// repository, configuration and cancellation failures.
func (c *Coordinator) Ingest(ctx context.Context, batch []*jobs.Job) (Stats, error) {
	run := newRun()
	run.stats.Received = len(batch)
	return c.ingest(ctx, run, batch)
}

type run struct {
	stats   Stats
	summary *failure.Summary
}

func newRun() *run {
	return &run{summary: &failure.Summary{}}
}

func (r *run) validationFailed(err error) {
	r.stats.FailedValidation++
	r.summary.Add(err)
}

func (r *run) embeddingFailed(err error) {
	r.stats.FailedEmbedding++
	r.summary.Add(err)
}

func (r *run) finish() Stats {
	r.stats.Failures = r.summary.Records()
	return r.stats
}

func (c *Coordinator) ingest(ctx context.Context, r *run, batch []*jobs.Job) (Stats, error) {
	valid := c.validate(r, batch)

	existing, err := c.repo.ExistingJobUIDs(ctx)
	if err != nil {
		return r.finish(), fmt.Errorf("get existing job uids: %w", err)
	}

	fresh := make([]*jobs.Job, 0, len(valid))
	var known []string
	for _, job := range valid {
		if _, ok := existing[job.UID]; ok {
			r.stats.Skipped++
			known = append(known, job.UID)
			continue
		}
		fresh = append(fresh, job)
	}

	for start := 0; start < len(fresh); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(fresh))
		if err := c.insertChunk(ctx, r, fresh[start:end]); err != nil {
			return r.finish(), err
		}
	}

	if !c.cfg.SkipRepair && len(known) > 0 {
		if err := c.repair(ctx, r, known); err != nil {
			return r.finish(), err
		}
	}

	stats := r.finish()
	c.logger.Info("ingestion finished", stats.Fields()...)
	return stats, nil
}

func (c *Coordinator) validate(r *run, batch []*jobs.Job) []*jobs.Job {
	seen := make(map[string]struct{}, len(batch))
	valid := make([]*jobs.Job, 0, len(batch))

	for i, job := range batch {
		if job == nil {
			r.validationFailed(failure.Validationf(fmt.Sprintf("#%d", i), "empty record"))
			continue
		}
		job.UID = strings.TrimSpace(job.UID)
		job.Seniority = job.ResolveSeniority(c.cfg.DefaultSeniority)

		if err := job.Validate(); err != nil {
			id := job.UID
			if id == "" {
				id = fmt.Sprintf("#%d", i)
			}
			r.validationFailed(failure.Validation(id, err))
			continue
		}
		if _, dup := seen[job.UID]; dup {
			r.stats.Skipped++
			continue
		}
		seen[job.UID] = struct{}{}
		valid = append(valid, job)
	}
	return valid
}

// insertChunk embeds a chunk in one call and then stores each job with its vector. Cancellation
// is checked between items only.
func (c *Coordinator) insertChunk(ctx context.Context, r *run, chunk []*jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	texts := make([]string, len(chunk))
	for i, job := range chunk {
		job.Derive()
		texts[i] = embeddingText(job)
	}
	vectors, errs := c.index.EmbedBatch(ctx, texts)

	for i, job := range chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.storeItem(ctx, r, job, vectors[i], errs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) storeItem(ctx context.Context, r *run, job *jobs.Job, vector []float32, embedErr error) error {
	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ItemTimeout)
	defer cancel()

	inserted, err := c.repo.InsertJobs(itemCtx, []*jobs.Job{job})
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.UID, err)
	}
	if inserted == 0 {
		// another ingestion stored it first
		r.stats.Skipped++
		return nil
	}
	r.stats.Inserted++

	if embedErr != nil {
		r.embeddingFailed(withID(embedErr, job.UID))
		c.logger.Warn("job embedding failed", zap.String("job_uid", job.UID), zap.Error(embedErr))
		return nil
	}

	if err := c.index.Upsert(itemCtx, job.UID, vector, metadata(job)); err != nil {
		if failure.IsConfiguration(err) {
			return err
		}
		r.embeddingFailed(failure.FromCall(failure.KindEmbedding, job.UID, err))
		return nil
	}
	r.stats.Embedded++
	return nil
}

// repair re-embeds stored jobs that have no vector, typically after an earlier embedding failure.
func (c *Coordinator) repair(ctx context.Context, r *run, uids []string) error {
	vectors, err := c.index.ExistingIDs(ctx)
	if err != nil {
		return fmt.Errorf("get existing embedding ids: %w", err)
	}

	var missing []string
	for _, uid := range uids {
		if _, ok := vectors[uid]; !ok {
			missing = append(missing, uid)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	stored, err := c.repo.JobsByUIDs(ctx, missing)
	if err != nil {
		return fmt.Errorf("load jobs to repair: %w", err)
	}
	c.logger.Info("repairing missing job embeddings", zap.Int("jobs", len(stored)))

	for start := 0; start < len(stored); start += c.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := stored[start:min(start+c.cfg.BatchSize, len(stored))]

		texts := make([]string, len(chunk))
		for i, job := range chunk {
			if job.Text == "" {
				job.Derive()
			}
			texts[i] = embeddingText(job)
		}
		vecs, errs := c.index.EmbedBatch(ctx, texts)

		for i, job := range chunk {
			if errs[i] != nil {
				r.embeddingFailed(withID(errs[i], job.UID))
				continue
			}
			itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ItemTimeout)
			err := c.index.Upsert(itemCtx, job.UID, vecs[i], metadata(job))
			cancel()
			if err != nil {
				if failure.IsConfiguration(err) {
					return err
				}
				r.embeddingFailed(failure.FromCall(failure.KindEmbedding, job.UID, err))
				continue
			}
			r.stats.Repaired++
		}
	}
	return nil
}

func embeddingText(job *jobs.Job) string {
	if strings.TrimSpace(job.Text) != "" {
		return job.Text
	}
	return job.Title
}

func metadata(job *jobs.Job) embedding.Metadata {
	return embedding.Metadata{
		"title":       job.Title,
		"company_uid": job.CompanyID,
		"location":    job.Location,
		"seniority":   job.Seniority.String(),
	}
}

// withID attaches a job uid to an unbound classified failure.
func withID(err error, id string) error {
	var classified *failure.Error
	if errors.As(err, &classified) && classified.ID == "" {
		return &failure.Error{Kind: classified.Kind, ID: id, Err: classified.Err}
	}
	return failure.FromCall(failure.KindEmbedding, id, err)
}
