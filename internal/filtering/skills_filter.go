package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type skillsFilter struct {
	toggle
	cfg    Config
	skills []string
	logger *zap.Logger
}

// NewSkills creates a filter that keeps jobs whose keywords cover the candidate skills according
// to the configured policy. It records the skill fraction on every kept item.
func NewSkills(cfg Config, skills []string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &skillsFilter{cfg: cfg, skills: skills, logger: logger}
}

func (f *skillsFilter) Name() string { return "skills" }

func (f *skillsFilter) Validate() error { return f.cfg.Validate() }

func (f *skillsFilter) Apply(_ context.Context, set *Set) (*Set, Step, error) {
	initial := set.Len()
	dropped := set.Keep(func(item *Item) bool {
		match := MatchSkills(f.skills, item.Job.Keywords, f.cfg.SkillThreshold)
		item.SkillFraction = match.Fraction
		item.MatchedSkills = match.Matched
		return SkillVerdict(f.cfg, match).Pass
	})

	if len(dropped) > 0 {
		f.logger.Debug("excluding jobs by skills",
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", set.Len()),
		)
	}

	return set, Step{Initial: initial, Dropped: len(dropped), Left: set.Len()}, nil
}

func (f *skillsFilter) Status() Status {
	details := map[string]string{
		"policy":    string(f.cfg.SkillPolicy),
		"threshold": fmt.Sprintf("%.0f", f.cfg.SkillThreshold),
		"skills":    fmt.Sprintf("%d", len(f.skills)),
	}
	if f.cfg.SkillPolicy == PolicyFraction {
		details["min_fraction"] = fmt.Sprintf("%.2f", f.cfg.MinSkillFraction)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
