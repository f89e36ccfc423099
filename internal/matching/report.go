package matching

import (
	"time"

	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/filtering"
	"github.com/spigell/matchai/internal/repository"
)

// Outcome separates runs that found nothing from runs that could not finish.
type Outcome string

const (
	OutcomeMatched Outcome = "matched"
	OutcomeNoMatch Outcome = "no_match"
	OutcomeAborted Outcome = "aborted"
)

// Report is the summary of one match run.
type Report struct {
	RunID         string                   `json:"run_id"`
	CandidateHash string                   `json:"candidate_hash"`
	Outcome       Outcome                  `json:"outcome"`
	State         State                    `json:"state"`
	History       []State                  `json:"history"`
	Considered    int                      `json:"considered"`
	FilteredOut   int                      `json:"filtered_out"`
	Ranked        int                      `json:"ranked"`
	Filters       []filtering.Status       `json:"filters,omitempty"`
	Results       []repository.MatchResult `json:"results"`
	Failures      []failure.Record         `json:"failures,omitempty"`
	Error         string                   `json:"error,omitempty"`
	StartedAt     time.Time                `json:"started_at"`
	FinishedAt    time.Time                `json:"finished_at"`
}

func (r *Report) finish(m *machine, summary *failure.Summary, now time.Time) {
	r.State = m.current()
	r.History = append([]State(nil), m.history...)
	r.Failures = summary.Records()
	r.FinishedAt = now.UTC()
	if r.Results == nil {
		r.Results = []repository.MatchResult{}
	}
}

// ExplanationFailures counts results that carry the placeholder explanation.
func (r *Report) ExplanationFailures() int {
	n := 0
	for _, res := range r.Results {
		if res.ExplanationFailed {
			n++
		}
	}
	return n
}
