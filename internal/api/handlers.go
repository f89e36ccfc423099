package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/logger"
	"github.com/spigell/matchai/internal/matching"
	"github.com/spigell/matchai/internal/profiles"
	"github.com/spigell/matchai/internal/repository"
)

type ingestRequest struct {
	Jobs []map[string]any `json:"jobs"`
}

type matchRequest struct {
	CandidateHash      string `json:"candidate_hash"`
	CVText             string `json:"cv_text"`
	Location           string `json:"location"`
	SeniorityTolerance *int   `json:"seniority_tolerance"`
	TopN               int    `json:"top_n"`
	IgnoreViewHistory  bool   `json:"ignore_view_history"`
}

type matchResponse struct {
	Source profiles.Source  `json:"candidate_source,omitempty"`
	Report *matching.Report `json:"report"`
	Error  string           `json:"error,omitempty"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": s.version})
}

// ingest accepts either {"jobs": [...]} or a bare array of job records.
func (s *Server) ingest(c *fiber.Ctx) error {
	body := c.Body()
	decode := s.app.Config().JSONDecoder

	var records []map[string]any
	trimmed := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := decode(body, &records); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("decode jobs: %v", err))
		}
	case strings.HasPrefix(trimmed, "{"):
		var req ingestRequest
		if err := decode(body, &req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("decode jobs: %v", err))
		}
		records = req.Jobs
	default:
		return fiber.NewError(fiber.StatusBadRequest, "body must be a json array or an object with a jobs field")
	}
	if len(records) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no jobs in request")
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	stats, err := s.deps.Ingester.IngestRecords(ctx, records)
	if err != nil {
		return err
	}
	s.logger.Info("api ingest finished", stats.Fields()...)
	return c.JSON(stats)
}

func (s *Server) match(c *fiber.Ctx) error {
	var req matchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("decode match request: %v", err))
	}
	if req.TopN < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "top_n must be positive")
	}
	if req.SeniorityTolerance != nil && *req.SeniorityTolerance < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "seniority_tolerance must not be negative")
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var (
		candidate *repository.Candidate
		source    profiles.Source
		err       error
	)
	if strings.TrimSpace(req.CVText) != "" {
		candidate, source, err = s.deps.Candidates.Resolve(ctx, req.CVText)
	} else {
		candidate, err = s.deps.Candidates.Lookup(ctx, req.CandidateHash)
	}
	if err != nil {
		return err
	}

	report, err := s.deps.Matcher.Match(ctx, matching.Request{
		Candidate:          candidate,
		Location:           req.Location,
		SeniorityTolerance: req.SeniorityTolerance,
		TopN:               req.TopN,
		IgnoreViewHistory:  req.IgnoreViewHistory,
	})
	if err != nil {
		s.logger.Warn("api match aborted", zap.String(logger.FieldRunID, report.RunID), zap.Error(err))
		return c.Status(statusFor(err)).JSON(matchResponse{Source: source, Report: report, Error: err.Error()})
	}
	return c.JSON(matchResponse{Source: source, Report: report})
}

func (s *Server) results(c *fiber.Ctx) error {
	hash := strings.TrimSpace(c.Params("hash"))
	if hash == "" {
		return fiber.NewError(fiber.StatusBadRequest, "candidate hash is required")
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	results, err := s.deps.Results.Results(ctx, hash)
	if err != nil {
		return err
	}
	if results == nil {
		results = []repository.MatchResult{}
	}
	return c.JSON(fiber.Map{"candidate_hash": hash, "results": results})
}
