// Package api exposes ingestion, matching and stored results over HTTP.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/ingest"
	"github.com/spigell/matchai/internal/logger"
	"github.com/spigell/matchai/internal/matching"
	"github.com/spigell/matchai/internal/profiles"
	"github.com/spigell/matchai/internal/repository"
)

const defaultBodyLimit = 8 << 20

type Ingester interface {
	IngestRecords(ctx context.Context, records []map[string]any) (ingest.Stats, error)
}

type Matcher interface {
	Match(ctx context.Context, req matching.Request) (*matching.Report, error)
}

// Candidates resolves the candidate a match request refers to.
type Candidates interface {
	Resolve(ctx context.Context, cvText string) (*repository.Candidate, profiles.Source, error)
	Lookup(ctx context.Context, hash string) (*repository.Candidate, error)
}

type Config struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	BodyLimit      int           `mapstructure:"body_limit"`
}

type Deps struct {
	Ingester   Ingester
	Matcher    Matcher
	Candidates Candidates
	Results    repository.ResultRepository
	Logger     *zap.Logger
}

type Server struct {
	app     *fiber.App
	cfg     Config
	deps    Deps
	logger  *zap.Logger
	version string
}

func New(cfg Config, deps Deps, version string) (*Server, error) {
	if deps.Ingester == nil || deps.Matcher == nil || deps.Candidates == nil || deps.Results == nil {
		return nil, failure.Configurationf("api server requires ingester, matcher, candidates and results")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = defaultBodyLimit
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.WithFields(deps.Logger),
		version: version,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "matchai",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.health)

	v1 := s.app.Group("/api/v1")
	v1.Post("/ingest", s.ingest)
	v1.Post("/match", s.match)
	v1.Get("/results/:hash", s.results)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", s.cfg.Addr))
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("api shutting down")
		return s.app.ShutdownWithTimeout(10 * time.Second)
	}
}

// requestContext bounds a handler's work by the configured timeout.
func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, repository.ErrNotFound):
		return fiber.StatusNotFound
	case failure.KindOf(err) == failure.KindValidation:
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
