// Package ai holds the contracts of the language-model collaborators: CV parsing and match
// explanation. Implementations live in subpackages.
package ai

import (
	"context"

	"github.com/spigell/matchai/internal/candidate"
)

// ExplainRequest describes one ranked job to explain.
type ExplainRequest struct {
	JobUID         string
	ProfileSummary string
	JobSummary     string
	MissingSkills  []string
	FinalScore     float64
}

// Explanation is a short, human readable account of a match.
type Explanation struct {
	Text string
	// MissingSkills is the model's refinement of the requested missing skills. Empty when the
	// model returned none.
	MissingSkills []string
	Tips          []string
	Raw           string
}

type Explainer interface {
	Explain(ctx context.Context, req *ExplainRequest) (*Explanation, error)
}

// ProfileParser extracts a structured profile from CV text.
type ProfileParser interface {
	ParseProfile(ctx context.Context, cvText string) (*candidate.Profile, error)
}
