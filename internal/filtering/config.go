package filtering

import (
	"fmt"
	"strings"

	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/fuzzy"
)

// Policy decides when a job passes the skill predicate.
type Policy string

const (
	// PolicyAny passes a job when at least one candidate skill matches.
	PolicyAny Policy = "any"
	// PolicyFraction passes a job when the matched share of candidate skills reaches MinSkillFraction.
	PolicyFraction Policy = "fraction"
)

// Config contains configuration settings consumed by the filters.
type Config struct {
	SkillThreshold     float64  `mapstructure:"skill_threshold"`
	SkillPolicy        Policy   `mapstructure:"skill_policy"`
	MinSkillFraction   float64  `mapstructure:"min_skill_fraction"`
	SeniorityTolerance int      `mapstructure:"seniority_tolerance"`
	LocationThreshold  float64  `mapstructure:"location_threshold"`
	ExcludedCompanies  []string `mapstructure:"excluded_companies"`
	ExcludeFile        string   `mapstructure:"exclude_file"`
	MaxViews           int      `mapstructure:"max_views"`
}

// WithDefaults fills zero values with defaults.
func (c Config) WithDefaults() Config {
	if c.SkillThreshold == 0 {
		c.SkillThreshold = fuzzy.DefaultThreshold
	}
	if c.LocationThreshold == 0 {
		c.LocationThreshold = fuzzy.DefaultThreshold
	}
	if c.SkillPolicy == "" {
		c.SkillPolicy = PolicyAny
	}
	c.SkillPolicy = Policy(strings.ToLower(string(c.SkillPolicy)))
	return c
}

// Validate reports invalid settings as configuration failures.
func (c Config) Validate() error {
	if c.SkillThreshold <= 0 || c.SkillThreshold > 100 {
		return failure.Configurationf("skill threshold must be in (0, 100], got %v", c.SkillThreshold)
	}
	if c.LocationThreshold <= 0 || c.LocationThreshold > 100 {
		return failure.Configurationf("location threshold must be in (0, 100], got %v", c.LocationThreshold)
	}
	switch c.SkillPolicy {
	case PolicyAny:
	case PolicyFraction:
		if c.MinSkillFraction < 0 || c.MinSkillFraction > 1 {
			return failure.Configurationf("min skill fraction must be in [0, 1], got %v", c.MinSkillFraction)
		}
	default:
		return failure.Configuration(fmt.Errorf("unknown skill policy %q", c.SkillPolicy))
	}
	if c.SeniorityTolerance < 0 {
		return failure.Configurationf("seniority tolerance must not be negative, got %d", c.SeniorityTolerance)
	}
	if c.MaxViews < 0 {
		return failure.Configurationf("max views must not be negative, got %d", c.MaxViews)
	}
	return nil
}
