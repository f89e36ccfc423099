package filtering

import (
	"strings"

	"github.com/spigell/matchai/internal/fuzzy"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/seniority"
)

// Verdict is the outcome of one predicate. Strength is in [0, 1].
type Verdict struct {
	Pass     bool
	Strength float64
}

// SkillMatch describes how many candidate skills a job covers.
type SkillMatch struct {
	Matched  []string
	Total    int
	Fraction float64
}

// MatchSkills fuzzy-matches normalized candidate skills against job keywords. A multi-word skill
// matches when each of its words matches some keyword.
func MatchSkills(skills, keywords []string, threshold float64) SkillMatch {
	m := SkillMatch{Total: len(skills)}
	if len(skills) == 0 {
		return m
	}
	for _, skill := range skills {
		if skillMatches(skill, keywords, threshold) {
			m.Matched = append(m.Matched, skill)
		}
	}
	m.Fraction = float64(len(m.Matched)) / float64(m.Total)
	return m
}

func skillMatches(skill string, keywords []string, threshold float64) bool {
	words := strings.Fields(skill)
	if len(words) == 0 {
		return false
	}
	for _, word := range words {
		if !fuzzy.Any(word, keywords, threshold) {
			return false
		}
	}
	return true
}

// SkillVerdict applies the pass policy. A candidate without skills passes every job.
func SkillVerdict(cfg Config, m SkillMatch) Verdict {
	if m.Total == 0 {
		return Verdict{Pass: true}
	}
	switch cfg.SkillPolicy {
	case PolicyFraction:
		return Verdict{Pass: m.Fraction >= cfg.MinSkillFraction, Strength: m.Fraction}
	default:
		return Verdict{Pass: len(m.Matched) > 0, Strength: m.Fraction}
	}
}

// SeniorityVerdict passes jobs whose level is inside window.
func SeniorityVerdict(window seniority.Window, level seniority.Level) Verdict {
	if window.Contains(level) {
		return Verdict{Pass: true, Strength: 1}
	}
	return Verdict{}
}

// LocationVerdict passes remote jobs, jobs whose location contains the requested one, and jobs
// whose location is within the edit-distance threshold. No requested location passes everything.
func LocationVerdict(requested string, job *jobs.Job, threshold float64) Verdict {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" || job.IsRemote() {
		return Verdict{Pass: true, Strength: 1}
	}
	location := strings.ToLower(strings.TrimSpace(job.Location))
	if strings.Contains(location, requested) {
		return Verdict{Pass: true, Strength: 1}
	}
	ratio := fuzzy.Ratio(location, requested)
	return Verdict{Pass: ratio >= threshold, Strength: ratio / 100}
}
