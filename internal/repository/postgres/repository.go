// Package postgres implements the repository on Postgres through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spigell/matchai/internal/fuzzy"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/repository"
)

var _ repository.Repository = (*Repository)(nil)

// levenshtein() from fuzzystrmatch rejects arguments longer than this.
const maxLevenshteinLength = 255

const locationPredicate = `(
	position(lower(trim(?)) in lower(location)) > 0
	OR lower(location) LIKE '%remote%'
	OR lower(workplace_type) LIKE '%remote%'
	OR CASE WHEN char_length(trim(location)) <= ? AND char_length(trim(?)) <= ?
		THEN (1 - levenshtein(lower(trim(location)), lower(trim(?)))::float8
			/ GREATEST(char_length(trim(location)), char_length(trim(?)), 1)) * 100 >= ?
		ELSE false END
)`

type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New migrates the schema and returns the repository.
func New(ctx context.Context, db *gorm.DB, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tx := db.WithContext(ctx)
	if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS fuzzystrmatch").Error; err != nil {
		return nil, fmt.Errorf("enable fuzzystrmatch: %w", err)
	}
	if err := tx.AutoMigrate(&jobModel{}, &companyModel{}, &candidateModel{}, &matchResultModel{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Debug("database migration completed")
	return &Repository{db: db, logger: logger}, nil
}

func (r *Repository) InsertJobs(ctx context.Context, batch []*jobs.Job) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	models := make([]jobModel, 0, len(batch))
	for _, job := range batch {
		m, err := toJobModel(job)
		if err != nil {
			return 0, err
		}
		models = append(models, m)
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models)
	if res.Error != nil {
		return 0, fmt.Errorf("insert jobs: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *Repository) ExistingJobUIDs(ctx context.Context) (map[string]struct{}, error) {
	var uids []string
	if err := r.db.WithContext(ctx).Model(&jobModel{}).Pluck("uid", &uids).Error; err != nil {
		return nil, fmt.Errorf("list job uids: %w", err)
	}
	out := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		out[uid] = struct{}{}
	}
	return out, nil
}

func (r *Repository) Jobs(ctx context.Context, q repository.Query) ([]*jobs.Job, error) {
	tx := r.db.WithContext(ctx).Model(&jobModel{})
	if q.Window != nil {
		tx = tx.Where("seniority BETWEEN ? AND ?", int(q.Window.Min), int(q.Window.Max))
	}
	if loc := strings.TrimSpace(q.Location); loc != "" {
		threshold := q.LocationThreshold
		if threshold <= 0 {
			threshold = fuzzy.DefaultThreshold
		}
		tx = tx.Where(locationPredicate,
			loc, maxLevenshteinLength, loc, maxLevenshteinLength, loc, loc, threshold)
	}
	tx = tx.Order("uid")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var models []jobModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	return toJobs(models)
}

func (r *Repository) JobStats(ctx context.Context) (repository.JobStats, error) {
	var row struct {
		Jobs      int
		Companies int
		Locations int
	}
	err := r.db.WithContext(ctx).Model(&jobModel{}).Select(
		"count(*) AS jobs, " +
			"count(DISTINCT NULLIF(trim(company_name), '')) AS companies, " +
			"count(DISTINCT NULLIF(trim(location), '')) AS locations",
	).Scan(&row).Error
	if err != nil {
		return repository.JobStats{}, fmt.Errorf("count jobs: %w", err)
	}
	return repository.JobStats{Jobs: row.Jobs, Companies: row.Companies, Locations: row.Locations}, nil
}

func (r *Repository) JobsByUIDs(ctx context.Context, uids []string) ([]*jobs.Job, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	var models []jobModel
	if err := r.db.WithContext(ctx).Where("uid IN ?", uids).Order("uid").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query jobs by uid: %w", err)
	}
	return toJobs(models)
}

func (r *Repository) InsertCompanies(ctx context.Context, companies []*jobs.Company) (int, error) {
	if len(companies) == 0 {
		return 0, nil
	}
	models := make([]companyModel, 0, len(companies))
	for _, c := range companies {
		models = append(models, companyModel{UID: c.UID, Name: c.Name, Token: c.Token, ExtractedFrom: c.ExtractedFrom})
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models)
	if res.Error != nil {
		return 0, fmt.Errorf("insert companies: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *Repository) Companies(ctx context.Context) ([]*jobs.Company, error) {
	var models []companyModel
	if err := r.db.WithContext(ctx).Order("uid").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	out := make([]*jobs.Company, 0, len(models))
	for _, m := range models {
		out = append(out, &jobs.Company{UID: m.UID, Name: m.Name, Token: m.Token, ExtractedFrom: m.ExtractedFrom})
	}
	return out, nil
}

func (r *Repository) SaveCandidate(ctx context.Context, c *repository.Candidate) error {
	m, err := toCandidateModel(c)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"profile", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save candidate: %w", err)
	}
	return nil
}

func (r *Repository) Candidate(ctx context.Context, hash string) (*repository.Candidate, error) {
	var m candidateModel
	err := r.db.WithContext(ctx).Where("hash = ?", hash).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	return m.toCandidate()
}

func (r *Repository) LatestCandidate(ctx context.Context) (*repository.Candidate, error) {
	var m candidateModel
	err := r.db.WithContext(ctx).Order("updated_at DESC").Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest candidate: %w", err)
	}
	return m.toCandidate()
}

func (r *Repository) SaveMatchResults(ctx context.Context, results []repository.MatchResult) error {
	if len(results) == 0 {
		return nil
	}
	models := make([]matchResultModel, 0, len(results))
	for _, res := range results {
		models = append(models, toResultModel(res))
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return fmt.Errorf("save match results: %w", err)
	}
	return nil
}

func (r *Repository) Results(ctx context.Context, hash string) ([]repository.MatchResult, error) {
	var models []matchResultModel
	err := r.db.WithContext(ctx).
		Where("candidate_hash = ?", hash).
		Order("created_at DESC, run_id, rank").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list match results: %w", err)
	}
	out := make([]repository.MatchResult, 0, len(models))
	for _, m := range models {
		out = append(out, m.toResult())
	}
	return out, nil
}

func (r *Repository) ViewCounts(ctx context.Context, hash string) (map[string]int, error) {
	var rows []struct {
		JobUID string
		Views  int
	}
	err := r.db.WithContext(ctx).Model(&matchResultModel{}).
		Select("job_uid, COUNT(DISTINCT run_id) AS views").
		Where("candidate_hash = ?", hash).
		Group("job_uid").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count job views: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.JobUID] = row.Views
	}
	return out, nil
}

func toJobs(models []jobModel) ([]*jobs.Job, error) {
	out := make([]*jobs.Job, 0, len(models))
	for _, m := range models {
		job, err := m.toJob()
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}
