// Package profiles turns CV text into a stored candidate, reusing earlier parses when the same CV
// was seen before.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/ai"
	"github.com/spigell/matchai/internal/candidate"
	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/logger"
	"github.com/spigell/matchai/internal/repository"
	"github.com/spigell/matchai/internal/utils"
)

// Cache is an optional fast lookup in front of the repository.
type Cache interface {
	Get(ctx context.Context, hash string) (candidate.Profile, error)
	Set(ctx context.Context, hash string, profile candidate.Profile) error
}

// Source tells where a resolved profile came from.
type Source string

const (
	SourceCache      Source = "cache"
	SourceRepository Source = "repository"
	SourceParser     Source = "parser"
)

type Deps struct {
	Candidates repository.CandidateRepository
	Parser     ai.ProfileParser
	Cache      Cache
	Logger     *zap.Logger
}

type Resolver struct {
	candidates repository.CandidateRepository
	parser     ai.ProfileParser
	cache      Cache
	logger     *zap.Logger
	now        func() time.Time
}

func New(deps Deps) (*Resolver, error) {
	if deps.Candidates == nil {
		return nil, failure.Configurationf("profile resolver requires a candidate repository")
	}
	return &Resolver{
		candidates: deps.Candidates,
		parser:     deps.Parser,
		cache:      deps.Cache,
		logger:     logger.WithFields(deps.Logger),
		now:        time.Now,
	}, nil
}

// Resolve returns the candidate for cvText. A miss in both the cache and the repository parses
// the text and stores the result in both.
func (r *Resolver) Resolve(ctx context.Context, cvText string) (*repository.Candidate, Source, error) {
	if strings.TrimSpace(cvText) == "" {
		return nil, "", failure.Validationf("", "cv text is empty")
	}

	hash := candidate.Hash(cvText)
	log := r.logger.With(zap.String(logger.FieldCandidateHash, utils.ShortHash(hash)))

	if r.cache != nil {
		profile, err := r.cache.Get(ctx, hash)
		if err == nil {
			log.Debug("profile found in cache")
			return &repository.Candidate{Hash: hash, Profile: profile}, SourceCache, nil
		}
		log.Debug("profile cache lookup missed", zap.Error(err))
	}

	stored, err := r.candidates.Candidate(ctx, hash)
	switch {
	case err == nil:
		log.Debug("profile found in repository")
		r.remember(ctx, log, hash, stored.Profile)
		return stored, SourceRepository, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, "", fmt.Errorf("lookup candidate: %w", err)
	}

	if r.parser == nil {
		return nil, "", failure.Configurationf("cv %s is not stored and no profile parser is configured", utils.ShortHash(hash))
	}

	profile, err := r.parser.ParseProfile(ctx, cvText)
	if err != nil {
		return nil, "", fmt.Errorf("parse cv: %w", err)
	}

	c := &repository.Candidate{Hash: hash, Profile: profile.Normalize(), UpdatedAt: r.now().UTC()}
	if err := r.candidates.SaveCandidate(ctx, c); err != nil {
		return nil, "", fmt.Errorf("save candidate: %w", err)
	}
	r.remember(ctx, log, hash, c.Profile)

	log.Info("profile parsed",
		zap.Int("skills", len(c.Profile.Skills)),
		zap.String("seniority", c.Profile.Seniority.String()),
	)
	return c, SourceParser, nil
}

// Store saves an already structured profile under the hash of cvText, bypassing the parser.
func (r *Resolver) Store(ctx context.Context, cvText string, profile candidate.Profile) (*repository.Candidate, error) {
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, failure.Validation("", err)
	}

	hash := candidate.Hash(cvText)
	c := &repository.Candidate{Hash: hash, Profile: profile, UpdatedAt: r.now().UTC()}
	if err := r.candidates.SaveCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("save candidate: %w", err)
	}
	r.remember(ctx, r.logger, hash, profile)
	return c, nil
}

// Lookup returns a stored candidate by hash, or the latest one when hash is empty.
func (r *Resolver) Lookup(ctx context.Context, hash string) (*repository.Candidate, error) {
	if strings.TrimSpace(hash) == "" {
		return r.candidates.LatestCandidate(ctx)
	}
	if r.cache != nil {
		if profile, err := r.cache.Get(ctx, hash); err == nil {
			return &repository.Candidate{Hash: hash, Profile: profile}, nil
		}
	}
	return r.candidates.Candidate(ctx, hash)
}

func (r *Resolver) remember(ctx context.Context, log *zap.Logger, hash string, profile candidate.Profile) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, hash, profile); err != nil {
		log.Warn("caching profile failed", zap.Error(err))
	}
}
