package candidate

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/matchai/internal/preprocess"
	"github.com/spigell/matchai/internal/seniority"
)

// Profile is the structured form of a CV. Treat it as a value: normalize once with Normalize and
// never mutate afterwards.
type Profile struct {
	Skills          []string        `json:"skills" yaml:"skills" mapstructure:"skills"`
	Tools           []string        `json:"tools_frameworks" yaml:"tools_frameworks" mapstructure:"tools_frameworks"`
	Domains         []string        `json:"domains" yaml:"domains" mapstructure:"domains"`
	Keywords        []string        `json:"keywords,omitempty" yaml:"keywords" mapstructure:"keywords"`
	Seniority       seniority.Level `json:"seniority" yaml:"seniority" mapstructure:"seniority"`
	YearsExperience float64         `json:"years_experience" yaml:"years_experience" mapstructure:"years_experience"`
	Summary         string          `json:"summary,omitempty" yaml:"summary" mapstructure:"summary"`
}

// Hash identifies a CV by the sha256 of its source text.
func Hash(cvText string) string {
	sum := sha256.Sum256([]byte(cvText))
	return fmt.Sprintf("%x", sum[:])
}

// Normalize returns a copy with lowercased, trimmed and deduplicated term lists.
func (p Profile) Normalize() Profile {
	p.Skills = cleanTerms(p.Skills)
	p.Tools = cleanTerms(p.Tools)
	p.Domains = cleanTerms(p.Domains)
	p.Keywords = cleanTerms(p.Keywords)
	p.Summary = strings.TrimSpace(p.Summary)
	return p
}

// Validate checks the fields the matching pipeline relies on.
func (p Profile) Validate() error {
	if !p.Seniority.Known() {
		return errors.New("seniority level is required")
	}
	if p.YearsExperience < 0 {
		return fmt.Errorf("years of experience must be non-negative, got %v", p.YearsExperience)
	}
	return nil
}

// MatchSkills returns skills and tools in keyword space, the set the skill filter scores.
func (p Profile) MatchSkills() []string {
	return preprocess.NormalizeTerms(p.Skills, p.Tools)
}

// Terms returns skills, tools and domains in keyword space.
func (p Profile) Terms() []string {
	return preprocess.NormalizeTerms(p.Skills, p.Tools, p.Domains)
}

// EmbeddingText renders the profile as the text embedded for similarity ranking.
func (p Profile) EmbeddingText() string {
	parts := make([]string, 0, 5)
	if p.Summary != "" {
		parts = append(parts, p.Summary)
	}
	if len(p.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(p.Skills, ", "))
	}
	if len(p.Tools) > 0 {
		parts = append(parts, "Tools: "+strings.Join(p.Tools, ", "))
	}
	if len(p.Domains) > 0 {
		parts = append(parts, "Domains: "+strings.Join(p.Domains, ", "))
	}
	if p.Seniority.Known() {
		parts = append(parts, "Seniority: "+p.Seniority.String())
	}
	return strings.Join(parts, "\n")
}

func cleanTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.Join(strings.Fields(strings.ToLower(term)), " ")
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}
