// Package pgvector keeps embeddings in a Postgres table with a vector column.
package pgvector

import (
	"context"
	"fmt"
	"regexp"
	"time"

	pgv "github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spigell/matchai/internal/embedding"
	"github.com/spigell/matchai/internal/failure"
)

var tablePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Query limits are padded so ties at the cut are ordered locally.
const tieSlack = 16

type row struct {
	ID        string `gorm:"primaryKey"`
	Embedding pgv.Vector
	Metadata  datatypes.JSONMap
	UpdatedAt time.Time
}

type scored struct {
	ID    string
	Score float64
}

// Store is an embedding.Store backed by a single table.
type Store struct {
	db    *gorm.DB
	table string
	dim   int
}

// New creates the table when missing and verifies the stored dimension.
func New(ctx context.Context, db *gorm.DB, table string, dim int) (*Store, error) {
	if !tablePattern.MatchString(table) {
		return nil, failure.Configurationf("invalid embeddings table name %q", table)
	}
	if dim <= 0 {
		return nil, failure.Configurationf("invalid embedding dimension %d", dim)
	}

	s := &Store{db: db, table: table, dim: dim}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable vector extension: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id text PRIMARY KEY,
	embedding vector(%d) NOT NULL,
	metadata jsonb,
	updated_at timestamptz NOT NULL DEFAULT now()
)`, s.table, s.dim)
	if err := db.Exec(ddl).Error; err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}

	var stored int
	err := db.Raw(`SELECT atttypmod FROM pg_attribute
WHERE attrelid = ?::regclass AND attname = 'embedding'`, s.table).Scan(&stored).Error
	if err != nil {
		return fmt.Errorf("inspect table %s: %w", s.table, err)
	}
	if stored > 0 && stored != s.dim {
		return failure.Configurationf("table %s holds %d-dimensional vectors, embedder produces %d", s.table, stored, s.dim)
	}
	return nil
}

func (s *Store) Dimension() int { return s.dim }

func (s *Store) Upsert(ctx context.Context, records []embedding.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]row, 0, len(records))
	now := time.Now().UTC()
	for _, rec := range records {
		meta := make(datatypes.JSONMap, len(rec.Metadata))
		for k, v := range rec.Metadata {
			meta[k] = v
		}
		rows = append(rows, row{ID: rec.ID, Embedding: pgv.NewVector(rec.Vector), Metadata: meta, UpdatedAt: now})
	}

	return s.db.WithContext(ctx).Table(s.table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "metadata", "updated_at"}),
	}).Create(&rows).Error
}

func (s *Store) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Table(s.table).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *Store) Fetch(ctx context.Context, ids []string) (map[string][]float32, error) {
	var rows []row
	if err := s.db.WithContext(ctx).Table(s.table).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch vectors: %w", err)
	}
	out := make(map[string][]float32, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Embedding.Slice()
	}
	return out, nil
}

func (s *Store) QuerySimilar(ctx context.Context, vector []float32, topK int) ([]embedding.Match, error) {
	query := pgv.NewVector(vector)
	tx := s.db.WithContext(ctx).Table(s.table).
		Select("id, 1 - (embedding <=> ?) AS score", query).
		Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?, id", Vars: []any{query}}})
	if topK > 0 {
		tx = tx.Limit(topK + tieSlack)
	}

	var hits []scored
	if err := tx.Scan(&hits).Error; err != nil {
		return nil, fmt.Errorf("query similar: %w", err)
	}

	out := make([]embedding.Match, 0, len(hits))
	for _, h := range hits {
		out = append(out, embedding.Match{ID: h.ID, Score: h.Score})
	}
	embedding.SortMatches(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
