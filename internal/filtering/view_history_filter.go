package filtering

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

const forceFlagSetMsg = "force flag is set"

// ViewCounter reports how many match runs already showed each job to a candidate.
type ViewCounter interface {
	ViewCounts(ctx context.Context, candidateHash string) (map[string]int, error)
}

type viewHistoryFilter struct {
	toggle
	deps *ViewHistoryDeps
	cfg  *ViewHistoryConfig
}

type ViewHistoryDeps struct {
	Views  ViewCounter
	Logger *zap.Logger
}

type ViewHistoryConfig struct {
	CandidateHash string
	// MaxViews is how many times a job may be shown before it is dropped. Zero disables the filter.
	MaxViews int
	Ignore   bool
}

// NewViewHistory creates a filter that removes jobs the candidate has already been shown too often.
func NewViewHistory(cfg *ViewHistoryConfig, deps *ViewHistoryDeps) Filter {
	if cfg == nil {
		cfg = &ViewHistoryConfig{}
	}
	f := &viewHistoryFilter{deps: deps, cfg: cfg}
	if cfg.MaxViews == 0 {
		f.Disable("max views is 0")
	}
	return f
}

func (f *viewHistoryFilter) Name() string { return "view_history" }

func (f *viewHistoryFilter) Validate() error {
	if f.deps == nil || f.deps.Views == nil {
		return fmt.Errorf("view history source is required")
	}

	if f.deps.Logger == nil {
		return fmt.Errorf("logger is required")
	}

	if f.cfg.CandidateHash == "" {
		return fmt.Errorf("candidate hash is required")
	}

	return nil
}

func (f *viewHistoryFilter) Apply(ctx context.Context, set *Set) (*Set, Step, error) {
	initial := set.Len()
	if f.cfg.Ignore {
		f.deps.Logger.Info("ignoring view history", zap.String("reason", forceFlagSetMsg))
		return set, Step{Initial: initial, Dropped: 0, Left: set.Len()}, nil
	}

	counts, err := f.deps.Views.ViewCounts(ctx, f.cfg.CandidateHash)
	if err != nil {
		return set, Step{}, fmt.Errorf("get view counts: %w", err)
	}

	seen := make(map[string]struct{})
	for uid, views := range counts {
		if views >= f.cfg.MaxViews {
			seen[uid] = struct{}{}
		}
	}

	excluded := set.Exclude(seen)
	if len(excluded) > 0 {
		sort.Strings(excluded)
		f.deps.Logger.Info("excluding jobs already shown to the candidate",
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", set.Len()),
		)
	}

	return set, Step{Initial: initial, Dropped: len(excluded), Left: set.Len()}, nil
}

func (f *viewHistoryFilter) Status() Status {
	details := map[string]string{
		"max_views":    strconv.Itoa(f.cfg.MaxViews),
		"exclude_seen": strconv.FormatBool(!f.cfg.Ignore),
	}
	reason := f.reason
	if f.cfg.Ignore {
		reason = "skip requested via flag"
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: reason, Details: details}
}
