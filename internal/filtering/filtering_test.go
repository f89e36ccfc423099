package filtering

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/matchai/internal/candidate"
	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/preprocess"
	"github.com/spigell/matchai/internal/seniority"
)

func newJob(uid, company, location string, level seniority.Level, requirements string) *jobs.Job {
	job := &jobs.Job{
		UID:       uid,
		CompanyID: company,
		Title:     "Engineer",
		Location:  location,
		Seniority: level,
		Details:   []jobs.Detail{{Name: "Requirements", Value: "<p>" + requirements + "</p>", Order: 1}},
	}
	job.Derive()
	return job
}

func exampleJobs() []*jobs.Job {
	return []*jobs.Job{
		newJob("A", "acme", "NYC", seniority.Mid, "Python, SQL, data pipelines"),
		newJob("B", "acme", "NYC", seniority.Mid, "Java, Spring"),
		newJob("C", "acme", "NYC", seniority.Senior, "Python and SQL"),
		newJob("D", "acme", "London", seniority.Mid, "Python, SQL"),
	}
}

func exampleRequest() Request {
	return Request{
		CandidateHash: "hash",
		Profile:       candidate.Profile{Skills: []string{"Python", "SQL"}, Seniority: seniority.Mid},
		Location:      "NYC",
	}
}

func preprocessTerms(terms ...string) []string {
	return preprocess.NormalizeTerms(terms)
}

func uidsOf(set *Set) []string {
	out := make([]string, 0, set.Len())
	for _, item := range set.Items {
		out = append(out, item.Job.UID)
	}
	return out
}

func TestEngineExample(t *testing.T) {
	engine, err := NewEngine(Config{}, Deps{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	set, statuses, err := engine.Apply(context.Background(), exampleRequest(), exampleJobs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := uidsOf(set); len(got) != 1 || got[0] != "A" {
		t.Fatalf("expected only job A to survive, got %v", got)
	}
	if set.Items[0].SkillFraction != 1.0 {
		t.Fatalf("expected skill fraction 1.0, got %v", set.Items[0].SkillFraction)
	}
	if len(statuses) != 6 {
		t.Fatalf("expected 6 filter statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "view_history" || statuses[0].Enabled {
		t.Fatalf("expected disabled view history, got %+v", statuses[0])
	}
}

func TestUnsetExclusionsAreDisabled(t *testing.T) {
	engine, err := NewEngine(Config{}, Deps{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := Describe(engine.Steps(exampleRequest()))
	reasons := map[string]string{}
	for _, status := range statuses {
		if !status.Enabled {
			reasons[status.Name] = status.Reason
		}
	}
	if reasons["exclude_file"] != "exclude file is not set" {
		t.Fatalf("expected exclude_file disabled, got %+v", statuses)
	}
	if reasons["excluded_companies"] != "no companies are excluded" {
		t.Fatalf("expected excluded_companies disabled, got %+v", statuses)
	}

	configured, err := NewEngine(Config{
		ExcludedCompanies: []string{"acme"},
		ExcludeFile:       filepath.Join(t.TempDir(), "excluded.json"),
	}, Deps{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, status := range Describe(configured.Steps(exampleRequest())) {
		if (status.Name == "exclude_file" || status.Name == "excluded_companies") && !status.Enabled {
			t.Fatalf("expected %s enabled when configured, got %+v", status.Name, status)
		}
	}
}

func TestSeniorityToleranceOverride(t *testing.T) {
	engine, err := NewEngine(Config{}, Deps{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := exampleRequest()
	one := 1
	req.SeniorityTolerance = &one

	set, _, err := engine.Apply(context.Background(), req, exampleJobs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := uidsOf(set); len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Fatalf("expected A and C, got %v", got)
	}

	query := engine.Query(req)
	if query.Window == nil || query.Window.Min != seniority.Junior || query.Window.Max != seniority.Senior {
		t.Fatalf("unexpected push-down window %+v", query.Window)
	}
}

func TestSkillPolicies(t *testing.T) {
	t.Parallel()

	job := newJob("A", "acme", "NYC", seniority.Mid, "Python only")
	skills := []string{"python", "sql", "kafka"}

	tests := []struct {
		name string
		cfg  Config
		pass bool
	}{
		{name: "any", cfg: Config{SkillPolicy: PolicyAny}, pass: true},
		{name: "fraction below minimum", cfg: Config{SkillPolicy: PolicyFraction, MinSkillFraction: 0.5}, pass: false},
		{name: "fraction reached", cfg: Config{SkillPolicy: PolicyFraction, MinSkillFraction: 0.3}, pass: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg.WithDefaults()
			match := MatchSkills(skills, job.Keywords, cfg.SkillThreshold)
			if got := SkillVerdict(cfg, match).Pass; got != tt.pass {
				t.Fatalf("expected pass=%v, got %v (fraction %v)", tt.pass, got, match.Fraction)
			}
		})
	}
}

func TestMatchSkillsMultiWordAndTypos(t *testing.T) {
	job := newJob("A", "acme", "NYC", seniority.Mid, "Experience with machine learning and Kubernetes")
	skills := candidate.Profile{Skills: []string{"Machine Learning", "kubernets", "deep learning"}}.MatchSkills()

	match := MatchSkills(skills, job.Keywords, 80)
	if len(match.Matched) != 2 {
		t.Fatalf("expected two matched skills, got %v from keywords %v", match.Matched, job.Keywords)
	}

	empty := MatchSkills(nil, job.Keywords, 80)
	if empty.Fraction != 0 || !SkillVerdict(Config{SkillPolicy: PolicyAny}, empty).Pass {
		t.Fatalf("candidate without skills should pass with fraction 0")
	}
}

func TestShortTechnologySkillsMatch(t *testing.T) {
	t.Parallel()

	job := newJob("A", "acme", "NYC", seniority.Mid, "Embedded C and R for analytics, IT operations")
	skills := preprocessTerms("C", "R", "IT")

	m := MatchSkills(skills, job.Keywords, 80)
	if m.Fraction != 1.0 {
		t.Fatalf("expected every short skill to match, got %v of %v", m.Matched, skills)
	}
}

func TestSkillThresholdMonotonic(t *testing.T) {
	req := exampleRequest()
	req.Profile.Skills = []string{"pythn", "sequel"}
	req.Location = ""

	var previous map[string]struct{}
	for _, threshold := range []float64{50, 70, 80, 90, 100} {
		engine, err := NewEngine(Config{SkillThreshold: threshold, SeniorityTolerance: 4}, Deps{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		set, _, err := engine.Apply(context.Background(), req, exampleJobs())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		current := make(map[string]struct{})
		for _, uid := range uidsOf(set) {
			current[uid] = struct{}{}
			if previous != nil {
				if _, ok := previous[uid]; !ok {
					t.Fatalf("threshold %v admitted %s which a lower threshold dropped", threshold, uid)
				}
			}
		}
		previous = current
	}
}

func TestLocationVerdict(t *testing.T) {
	remote := newJob("R", "acme", "Anywhere", seniority.Mid, "Go")
	remote.WorkplaceType = "remote"

	if !LocationVerdict("Berlin", remote, 80).Pass {
		t.Fatalf("remote jobs always pass")
	}
	if !LocationVerdict("", newJob("X", "acme", "London", seniority.Mid, "Go"), 80).Pass {
		t.Fatalf("empty location passes")
	}
	if !LocationVerdict("Tel Aviv", newJob("T", "acme", "Tel-Aviv", seniority.Mid, "Go"), 80).Pass {
		t.Fatalf("expected edit-distance fallback to pass")
	}
	if LocationVerdict("Berlin", newJob("L", "acme", "London", seniority.Mid, "Go"), 80).Pass {
		t.Fatalf("did not expect London to match Berlin")
	}
}

type stubViews struct {
	counts map[string]int
	err    error
}

func (s *stubViews) ViewCounts(context.Context, string) (map[string]int, error) {
	return s.counts, s.err
}

func TestViewHistory(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	engine, err := NewEngine(Config{MaxViews: 2}, Deps{Views: &stubViews{counts: map[string]int{"A": 2, "B": 1}}, Logger: logger})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := exampleRequest()
	req.Profile.Skills = nil
	req.Location = ""

	set, _, err := engine.Apply(context.Background(), req, exampleJobs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := uidsOf(set); len(got) != 2 || got[0] != "B" || got[1] != "D" {
		t.Fatalf("expected B and D, got %v", got)
	}

	steps := logs.FilterMessage("filter step").All()
	if len(steps) != 6 {
		t.Fatalf("expected 6 filter step logs, got %d", len(steps))
	}
	if steps[0].ContextMap()["name"] != "view_history" || steps[0].ContextMap()["dropped"] != int64(1) {
		t.Fatalf("unexpected first step log %v", steps[0].ContextMap())
	}

	req.IgnoreViewHistory = true
	set, _, err = engine.Apply(context.Background(), req, exampleJobs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("expected view history to be ignored, got %v", uidsOf(set))
	}
}

func TestViewHistoryError(t *testing.T) {
	engine, err := NewEngine(Config{MaxViews: 1}, Deps{Views: &stubViews{err: errors.New("db down")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := engine.Apply(context.Background(), exampleRequest(), exampleJobs()); err == nil {
		t.Fatalf("expected view history error")
	}
}

func TestExcludedCompaniesAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")

	excluded, err := LoadExcludedJobs(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all := exampleJobs()
	if !excluded.Add(all[3]) || excluded.Add(all[3]) {
		t.Fatalf("expected exactly one addition")
	}
	if err := excluded.Save(path); err != nil {
		t.Fatalf("save exclude file: %v", err)
	}

	list := append(all, newJob("E", "blocked", "NYC", seniority.Mid, "Python"))
	steps := []Filter{
		NewExcludedCompanies([]string{"blocked"}, nil),
		NewExcludeFile(path, nil),
	}
	set, err := Run(context.Background(), nil, steps, NewSet(list))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := uidsOf(set); len(got) != 3 || got[2] != "C" {
		t.Fatalf("expected A, B and C, got %v", got)
	}

	statuses := Describe(steps)
	if statuses[0].Details["companies"] != "blocked" || statuses[1].Details["path"] != path {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "threshold too high", cfg: Config{SkillThreshold: 120}},
		{name: "unknown policy", cfg: Config{SkillPolicy: "most"}},
		{name: "fraction out of range", cfg: Config{SkillPolicy: PolicyFraction, MinSkillFraction: 1.5}},
		{name: "negative tolerance", cfg: Config{SeniorityTolerance: -1}},
		{name: "negative max views", cfg: Config{MaxViews: -1}},
		{name: "views without source", cfg: Config{MaxViews: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewEngine(tt.cfg, Deps{})
			if !failure.IsConfiguration(err) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestDisabledFilterIsSkipped(t *testing.T) {
	steps := []Filter{NewExcludedCompanies([]string{"acme"}, nil)}
	DisableByName(steps, "excluded_companies", "testing")

	set, err := Run(context.Background(), nil, steps, NewSet(exampleJobs()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Len() != 4 {
		t.Fatalf("expected disabled filter to keep all jobs, got %d", set.Len())
	}
	if status := Describe(steps)[0]; status.Enabled || status.Reason != "testing" {
		t.Fatalf("unexpected status %+v", status)
	}
}
