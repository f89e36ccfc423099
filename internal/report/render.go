// Package report renders match results for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/spigell/matchai/internal/matching"
	"github.com/spigell/matchai/internal/repository"
	"github.com/spigell/matchai/internal/utils"
)

const maxExplanationLen = 160

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	outcomeStyle = map[matching.Outcome]lipgloss.Style{
		matching.OutcomeMatched: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		matching.OutcomeNoMatch: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		matching.OutcomeAborted: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

// Results renders ranked results as a table.
func Results(results []repository.MatchResult) string {
	if len(results) == 0 {
		return mutedStyle.Render("no results")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("#", "Job", "Company", "Location", "Score", "Similarity", "Skills", "Missing").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return cellStyle
		})

	for _, r := range results {
		t.Row(
			fmt.Sprintf("%d", r.Rank),
			r.Title,
			r.CompanyName,
			r.Location,
			fmt.Sprintf("%.3f", r.FinalScore),
			fmt.Sprintf("%.3f", r.Similarity),
			fmt.Sprintf("%.0f%%", r.SkillFraction*100),
			strings.Join(r.MissingSkills, ", "),
		)
	}
	return t.Render()
}

// Overview is the state of the stores shown by the info command.
type Overview struct {
	Storage string              `json:"storage"`
	Vectors string              `json:"vectors"`
	Stats   repository.JobStats `json:"stats"`
	// Sources counts registered careers API companies.
	Sources int `json:"sources"`
	// Candidate is the hash of the latest uploaded CV, empty when none is stored.
	Candidate string `json:"candidate,omitempty"`
}

// Info renders the overview as a two column table.
func Info(o Overview) string {
	cv := "no"
	if o.Candidate != "" {
		cv = "yes (" + utils.ShortHash(o.Candidate) + ")"
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Metric", "Value").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return cellStyle
		})
	t.Row("Storage", o.Storage)
	t.Row("Vectors", o.Vectors)
	t.Row("Total jobs", fmt.Sprintf("%d", o.Stats.Jobs))
	t.Row("Unique companies", fmt.Sprintf("%d", o.Stats.Companies))
	t.Row("Unique locations", fmt.Sprintf("%d", o.Stats.Locations))
	t.Row("Source companies", fmt.Sprintf("%d", o.Sources))
	t.Row("CV uploaded", cv)
	return t.Render()
}

// Explanations lists the explanation, tips and apply link of every result.
func Explanations(results []repository.MatchResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%s %s\n", titleStyle.Render(fmt.Sprintf("%d.", r.Rank)), titleStyle.Render(r.Title))
		explanation := utils.TruncateForLog(r.Explanation, maxExplanationLen)
		if r.ExplanationFailed {
			explanation = warnStyle.Render(explanation)
		}
		fmt.Fprintf(&b, "   %s\n", explanation)
		for _, tip := range r.Tips {
			fmt.Fprintf(&b, "   tip: %s\n", tip)
		}
		if r.ApplyURL != "" {
			fmt.Fprintf(&b, "   %s\n", mutedStyle.Render(r.ApplyURL))
		}
	}
	return b.String()
}

// Summary renders the run summary line followed by per-item failures.
func Summary(rep *matching.Report) string {
	style, ok := outcomeStyle[rep.Outcome]
	if !ok {
		style = lipgloss.NewStyle()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s run %s: considered %d, filtered out %d, ranked %d\n",
		style.Render(string(rep.Outcome)),
		rep.RunID,
		rep.Considered,
		rep.FilteredOut,
		rep.Ranked,
	)
	if rep.Error != "" {
		fmt.Fprintf(&b, "%s\n", outcomeStyle[matching.OutcomeAborted].Render("error: "+rep.Error))
	}
	for _, f := range rep.Failures {
		id := f.ID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(&b, "%s\n", warnStyle.Render(fmt.Sprintf("  %s %s: %s", f.Kind, id, f.Message)))
	}
	return b.String()
}

// Render combines the summary, the result table and the explanations.
func Render(rep *matching.Report) string {
	parts := []string{Summary(rep), Results(rep.Results)}
	if len(rep.Results) > 0 {
		parts = append(parts, Explanations(rep.Results))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
