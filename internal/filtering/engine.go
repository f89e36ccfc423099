package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/candidate"
	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/repository"
	"github.com/spigell/matchai/internal/seniority"
)

// Request is what a match run asks the engine to filter for.
type Request struct {
	CandidateHash string
	Profile       candidate.Profile
	Location      string
	// SeniorityTolerance overrides the configured tolerance when set.
	SeniorityTolerance *int
	IgnoreViewHistory  bool
}

type Deps struct {
	Views  ViewCounter
	Logger *zap.Logger
}

// Engine builds filter steps and storage push-down queries from one validated Config.
type Engine struct {
	cfg    Config
	views  ViewCounter
	logger *zap.Logger
}

func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxViews > 0 && deps.Views == nil {
		return nil, failure.Configurationf("max views is %d but no view history source is configured", cfg.MaxViews)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, views: deps.Views, logger: logger}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Window returns the accepted seniority range, or nil when the candidate level is unknown.
func (e *Engine) Window(req Request) *seniority.Window {
	if !req.Profile.Seniority.Known() {
		return nil
	}
	tolerance := e.cfg.SeniorityTolerance
	if req.SeniorityTolerance != nil && *req.SeniorityTolerance >= 0 {
		tolerance = *req.SeniorityTolerance
	}
	window := seniority.Around(req.Profile.Seniority, tolerance)
	return &window
}

// Query returns the location and seniority predicates for the repository to apply.
func (e *Engine) Query(req Request) repository.Query {
	return repository.Query{
		Location:          req.Location,
		LocationThreshold: e.cfg.LocationThreshold,
		Window:            e.Window(req),
	}
}

// Steps returns the filters for a request in execution order.
func (e *Engine) Steps(req Request) []Filter {
	steps := []Filter{
		NewViewHistory(&ViewHistoryConfig{
			CandidateHash: req.CandidateHash,
			MaxViews:      e.cfg.MaxViews,
			Ignore:        req.IgnoreViewHistory,
		}, &ViewHistoryDeps{Views: e.views, Logger: e.logger}),
		NewExcludedCompanies(e.cfg.ExcludedCompanies, e.logger),
		NewExcludeFile(e.cfg.ExcludeFile, e.logger),
		NewLocation(req.Location, e.cfg.LocationThreshold, e.logger),
	}

	if window := e.Window(req); window != nil {
		steps = append(steps, NewSeniority(*window, e.logger))
	} else {
		s := NewSeniority(seniority.Window{}, e.logger)
		s.Disable("candidate seniority is unknown")
		steps = append(steps, s)
	}

	steps = append(steps, NewSkills(e.cfg, req.Profile.MatchSkills(), e.logger))

	if len(e.cfg.ExcludedCompanies) == 0 {
		DisableByName(steps, "excluded_companies", "no companies are excluded")
	}
	if e.cfg.ExcludeFile == "" {
		DisableByName(steps, "exclude_file", "exclude file is not set")
	}
	return steps
}

// Apply runs every step over list and returns the surviving items in input order.
func (e *Engine) Apply(ctx context.Context, req Request, list []*jobs.Job) (*Set, []Status, error) {
	steps := e.Steps(req)
	set, err := Run(ctx, e.logger, steps, NewSet(list))
	if err != nil {
		return nil, nil, err
	}
	return set, Describe(steps), nil
}
