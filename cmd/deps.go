package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
	"gorm.io/gorm"

	"github.com/spigell/matchai/internal/ai"
	"github.com/spigell/matchai/internal/ai/gemini"
	"github.com/spigell/matchai/internal/cache"
	"github.com/spigell/matchai/internal/database"
	"github.com/spigell/matchai/internal/embedding"
	"github.com/spigell/matchai/internal/embedding/pgvector"
	"github.com/spigell/matchai/internal/embedding/qdrant"
	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/filtering"
	"github.com/spigell/matchai/internal/ingest"
	"github.com/spigell/matchai/internal/logger"
	"github.com/spigell/matchai/internal/matching"
	"github.com/spigell/matchai/internal/notify"
	"github.com/spigell/matchai/internal/profiles"
	"github.com/spigell/matchai/internal/ranking"
	"github.com/spigell/matchai/internal/repository"
	"github.com/spigell/matchai/internal/repository/postgres"
	"github.com/spigell/matchai/internal/secrets"
)

const (
	defaultDimension            = 384
	defaultJobsTable            = "job_embeddings"
	defaultCandidatesTable      = "candidate_embeddings"
	defaultJobsCollection       = "matchai_jobs"
	defaultCandidatesCollection = "matchai_candidates"
)

// components is everything a command may need, built once from the config.
type components struct {
	cfg              *Config
	logger           *zap.Logger
	repo             repository.Repository
	jobVectors       *embedding.Index
	candidateVectors *embedding.Index
	ingest           *ingest.Coordinator
	profiles         *profiles.Resolver
	matcher          *matching.Orchestrator
	notifier         *notify.Notifier

	db      *gorm.DB
	genai   *genai.Client
	closers []func() error
}

func newComponents(ctx context.Context, cfg *Config, log *zap.Logger) (*components, error) {
	c := &components{cfg: cfg, logger: log}
	if err := c.build(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *components) build(ctx context.Context) error {
	dim := c.cfg.Embedding.Dimension
	if dim == 0 {
		dim = defaultDimension
	}
	if dim < 0 {
		return failure.Configurationf("embedding dimension must be positive, got %d", dim)
	}

	if err := c.buildRepository(ctx); err != nil {
		return err
	}

	jobStore, candidateStore, err := c.buildVectorStores(ctx, dim)
	if err != nil {
		return err
	}

	embedder, err := c.buildEmbedder(ctx, dim)
	if err != nil {
		return err
	}

	c.jobVectors, err = embedding.NewIndex(embedder, jobStore, c.cfg.Embedding.Index, c.logger.Named("job_vectors"))
	if err != nil {
		return err
	}
	c.candidateVectors, err = embedding.NewIndex(embedder, candidateStore, c.cfg.Embedding.Index, c.logger.Named("candidate_vectors"))
	if err != nil {
		return err
	}

	c.ingest, err = ingest.New(c.cfg.Ingest, ingest.Deps{
		Repository: c.repo,
		Index:      c.jobVectors,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	explainer, parser, err := c.buildAI(ctx)
	if err != nil {
		return err
	}

	var profileCache profiles.Cache
	if c.cfg.Redis != nil && strings.TrimSpace(c.cfg.Redis.Addr) != "" {
		rcfg := *c.cfg.Redis
		rcfg.Password, err = secrets.Optional(secrets.Source{Name: "redis password", Value: rcfg.Password, Env: "MATCHAI_REDIS_PASSWORD"})
		if err != nil {
			return err
		}
		client, err := cache.Dial(ctx, rcfg)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, client.Close)
		profileCache = cache.NewProfiles(client, c.cfg.Redis.TTL)
	}

	c.profiles, err = profiles.New(profiles.Deps{
		Candidates: c.repo,
		Parser:     parser,
		Cache:      profileCache,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	engine, err := filtering.NewEngine(c.cfg.Filters, filtering.Deps{Views: c.repo, Logger: c.logger})
	if err != nil {
		return err
	}

	weights := ranking.DefaultWeights()
	if c.cfg.Weights != nil {
		weights = *c.cfg.Weights
	}
	ranker, err := ranking.New(weights)
	if err != nil {
		return err
	}

	c.matcher, err = matching.New(c.cfg.Match, matching.Deps{
		Jobs:             c.repo,
		Results:          c.repo,
		Filter:           engine,
		Ranker:           ranker,
		JobVectors:       c.jobVectors,
		CandidateVectors: c.candidateVectors,
		Explainer:        explainer,
		Logger:           c.logger,
	})
	if err != nil {
		return err
	}

	return c.buildNotifier()
}

func (c *components) buildNotifier() error {
	cfg := c.cfg.Notify
	if !cfg.Enabled {
		return nil
	}

	password, err := secrets.Load(secrets.Source{
		Name:  "smtp password",
		Value: cfg.Password,
		File:  cfg.PasswordFile,
		Env:   "MATCHAI_SMTP_PASSWORD",
	})
	if err != nil {
		return err
	}
	cfg.Password = password

	sender, err := notify.NewSMTP(cfg)
	if err != nil {
		return err
	}
	c.notifier, err = notify.New(cfg, sender, c.logger)
	return err
}

func (c *components) buildRepository(ctx context.Context) error {
	switch backend := strings.ToLower(c.cfg.Storage.Backend); backend {
	case "", "memory":
		c.logger.Warn("using in-memory storage, nothing survives this process")
		c.repo = repository.NewMemory()
		return nil
	case "postgres":
		db, err := c.database(ctx)
		if err != nil {
			return err
		}
		repo, err := postgres.New(ctx, db, c.logger)
		if err != nil {
			return err
		}
		c.repo = repo
		return nil
	default:
		return failure.Configurationf("unknown storage backend %q", c.cfg.Storage.Backend)
	}
}

func (c *components) buildVectorStores(ctx context.Context, dim int) (embedding.Store, embedding.Store, error) {
	storage := c.cfg.Storage
	switch vectors := strings.ToLower(storage.Vectors); vectors {
	case "", "memory":
		return embedding.NewMemory(dim), embedding.NewMemory(dim), nil
	case "pgvector":
		db, err := c.database(ctx)
		if err != nil {
			return nil, nil, err
		}
		jobs, err := pgvector.New(ctx, db, orDefault(storage.JobsTable, defaultJobsTable), dim)
		if err != nil {
			return nil, nil, err
		}
		candidates, err := pgvector.New(ctx, db, orDefault(storage.CandidatesTable, defaultCandidatesTable), dim)
		if err != nil {
			return nil, nil, err
		}
		return jobs, candidates, nil
	case "qdrant":
		qcfg := c.cfg.Qdrant
		apiKey, err := secrets.Optional(secrets.Source{Name: "qdrant api key", Value: qcfg.APIKey, Env: "MATCHAI_QDRANT_API_KEY"})
		if err != nil {
			return nil, nil, err
		}
		qcfg.APIKey = apiKey
		client, err := qdrant.Dial(qcfg)
		if err != nil {
			return nil, nil, err
		}
		c.closers = append(c.closers, client.Close)
		jobs, err := qdrant.New(ctx, client, orDefault(storage.JobsCollection, defaultJobsCollection), dim)
		if err != nil {
			return nil, nil, err
		}
		candidates, err := qdrant.New(ctx, client, orDefault(storage.CandidatesCollection, defaultCandidatesCollection), dim)
		if err != nil {
			return nil, nil, err
		}
		return jobs, candidates, nil
	default:
		return nil, nil, failure.Configurationf("unknown vector storage %q", storage.Vectors)
	}
}

func (c *components) buildEmbedder(ctx context.Context, dim int) (embedding.Embedder, error) {
	switch provider := strings.ToLower(c.cfg.Embedding.Provider); provider {
	case "", "hashing":
		return embedding.NewHashing(dim), nil
	case "gemini":
		client, err := c.genaiClient(ctx)
		if err != nil {
			return nil, err
		}
		return gemini.NewEmbedder(client, c.geminiConfig(), dim, c.logger), nil
	default:
		return nil, failure.Configurationf("unknown embedding provider %q", c.cfg.Embedding.Provider)
	}
}

// buildAI returns nil collaborators when AI is disabled. Results then carry no explanation and
// CVs must be uploaded with a structured profile.
func (c *components) buildAI(ctx context.Context) (ai.Explainer, ai.ProfileParser, error) {
	cfg := c.cfg.AI
	if cfg == nil || !cfg.Enabled {
		return nil, nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, nil, failure.Configurationf("unsupported ai provider: %s", cfg.Provider)
	}

	client, err := c.genaiClient(ctx)
	if err != nil {
		return nil, nil, err
	}

	gcfg := c.geminiConfig()
	generator := gemini.NewGenerator(client, gcfg, c.logger)

	explainer := gemini.NewExplainer(generator, gcfg.MaxLogLen, c.logger)
	explainer.SetPromptOverrides(gemini.PromptOverrides{
		Tone:             cfg.Tone,
		UserInstructions: cfg.UserInstructions,
	})
	parser := gemini.NewParser(generator, gcfg.MaxLogLen, c.logger)

	return explainer, parser, nil
}

func (c *components) geminiConfig() gemini.Config {
	if c.cfg.AI == nil || c.cfg.AI.Gemini == nil {
		return gemini.Config{}
	}
	return *c.cfg.AI.Gemini
}

func (c *components) genaiClient(ctx context.Context) (*genai.Client, error) {
	if c.genai != nil {
		return c.genai, nil
	}

	gcfg := c.geminiConfig()
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gcfg.APIKey,
		File:  gcfg.APIKeyFile,
		Env:   "GOOGLE_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (or set ai.gemini.api_key_file)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	c.genai = client
	return client, nil
}

func (c *components) database(ctx context.Context) (*gorm.DB, error) {
	if c.db != nil {
		return c.db, nil
	}

	dsn, err := secrets.Load(secrets.Source{Name: "database dsn", Value: c.cfg.Database.DSN, Env: "DATABASE_URL"})
	if err != nil {
		return nil, fmt.Errorf("%w (or set database.dsn, MATCHAI_DATABASE_URL)", err)
	}
	dbCfg := c.cfg.Database
	dbCfg.DSN = dsn

	db, err := database.Open(ctx, dbCfg, c.logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql handle: %w", err)
	}
	c.closers = append(c.closers, sqlDB.Close)
	c.db = db
	return db, nil
}

// Close releases connections in reverse order of creation.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("closing resource failed", zap.Error(err))
		}
	}
	c.closers = nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// runLogger tags a logger with the identity of a match run.
func runLogger(log *zap.Logger, report *matching.Report) *zap.Logger {
	return logger.WithRunFields(log, report.RunID, report.CandidateHash)
}
