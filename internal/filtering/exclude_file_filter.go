package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/jobs"
)

// ExcludedJobs is the content of an exclude file.
type ExcludedJobs struct {
	Items []*ExcludedJob
}

type ExcludedJob struct {
	UID         string
	Title       string
	CompanyName string
	URL         string
	ExcludedAt  time.Time
}

// LoadExcludedJobs reads an exclude file. A missing or empty file holds no jobs.
func LoadExcludedJobs(path string) (*ExcludedJobs, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ExcludedJobs{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Add appends job unless its uid is already excluded.
func (e *ExcludedJobs) Add(job *jobs.Job) bool {
	for _, item := range e.Items {
		if item.UID == job.UID {
			return false
		}
	}
	e.Items = append(e.Items, &ExcludedJob{
		UID:         job.UID,
		Title:       job.Title,
		CompanyName: job.CompanyName,
		URL:         job.ApplyURL(),
		ExcludedAt:  time.Now().UTC(),
	})
	return true
}

func (e *ExcludedJobs) UIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		out[item.UID] = struct{}{}
	}
	return out
}

// Save writes the file back, replacing its content.
func (e *ExcludedJobs) Save(path string) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

type excludeFileFilter struct {
	toggle
	path   string
	logger *zap.Logger
}

// NewExcludeFile creates a filter that removes jobs listed in an exclude file.
func NewExcludeFile(path string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &excludeFileFilter{path: path, logger: logger}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate() error { return nil }

func (f *excludeFileFilter) Apply(_ context.Context, set *Set) (*Set, Step, error) {
	initial := set.Len()
	if f.path == "" {
		return set, Step{Initial: initial, Dropped: 0, Left: set.Len()}, nil
	}

	excluded, err := LoadExcludedJobs(f.path)
	if err != nil {
		return set, Step{}, fmt.Errorf("getting excluded jobs from file: %w", err)
	}

	removed := set.Exclude(excluded.UIDs())
	if len(removed) > 0 {
		f.logger.Info("excluding jobs based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_jobs", removed),
			zap.Int("jobs_left", set.Len()),
		)
	}

	return set, Step{Initial: initial, Dropped: len(removed), Left: set.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

func sortedCopy(list []string) []string {
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}
