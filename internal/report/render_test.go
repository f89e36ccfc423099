package report

import (
	"strings"
	"testing"

	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/matching"
	"github.com/spigell/matchai/internal/repository"
)

func sampleReport() *matching.Report {
	return &matching.Report{
		RunID:       "run-1",
		Outcome:     matching.OutcomeMatched,
		Considered:  2,
		FilteredOut: 1,
		Ranked:      1,
		Results: []repository.MatchResult{{
			Rank:          1,
			JobUID:        "A",
			Title:         "Data Engineer",
			CompanyName:   "Acme",
			Location:      "New York",
			FinalScore:    0.85,
			Similarity:    0.75,
			SkillFraction: 1,
			MissingSkills: []string{"airflow"},
			Explanation:   "Strong Python and SQL overlap.",
			Tips:          []string{"Review Airflow DAGs"},
			ApplyURL:      "https://jobs.example.com/A",
		}},
		Failures: []failure.Record{{Kind: failure.KindEmbedding, ID: "B", Message: "job has no stored vector"}},
	}
}

func TestRender(t *testing.T) {
	out := Render(sampleReport())

	for _, want := range []string{
		"matched", "run-1", "considered 2, filtered out 1, ranked 1",
		"embedding B: job has no stored vector",
		"Data Engineer", "Acme", "0.850", "0.750", "100%", "airflow",
		"Strong Python and SQL overlap.", "tip: Review Airflow DAGs", "https://jobs.example.com/A",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderWithoutResults(t *testing.T) {
	rep := &matching.Report{RunID: "run-2", Outcome: matching.OutcomeAborted, Error: "database unreachable"}

	out := Render(rep)
	if !strings.Contains(out, "no results") {
		t.Fatalf("expected empty marker, got:\n%s", out)
	}
	if !strings.Contains(out, "error: database unreachable") {
		t.Fatalf("expected error line, got:\n%s", out)
	}
}

func TestExplanationsTruncates(t *testing.T) {
	long := strings.Repeat("x", maxExplanationLen+50)
	out := Explanations([]repository.MatchResult{{Rank: 1, Title: "T", Explanation: long}})
	if strings.Contains(out, long) {
		t.Fatalf("expected explanation to be truncated")
	}
	if !strings.Contains(out, "...") {
		t.Fatalf("expected ellipsis, got %q", out)
	}
}

func TestInfo(t *testing.T) {
	out := Info(Overview{
		Storage:   "postgres",
		Vectors:   "qdrant",
		Stats:     repository.JobStats{Jobs: 42, Companies: 7, Locations: 5},
		Sources:   3,
		Candidate: "0123456789abcdef0123456789abcdef",
	})
	for _, want := range []string{
		"Total jobs", "42", "Unique companies", "7", "Unique locations", "5",
		"Source companies", "3", "postgres", "qdrant", "yes (0123456789abcdef",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	if out := Info(Overview{Storage: "memory"}); strings.Contains(out, "yes") {
		t.Fatalf("expected no CV to be reported, got:\n%s", out)
	}
}
