package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/seniority"
)

type seniorityFilter struct {
	toggle
	window seniority.Window
	logger *zap.Logger
}

// NewSeniority creates a filter that keeps jobs whose level is inside window.
func NewSeniority(window seniority.Window, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &seniorityFilter{window: window, logger: logger}
}

func (f *seniorityFilter) Name() string { return "seniority" }

func (f *seniorityFilter) Validate() error { return nil }

func (f *seniorityFilter) Apply(_ context.Context, set *Set) (*Set, Step, error) {
	initial := set.Len()
	dropped := set.Keep(func(item *Item) bool {
		return SeniorityVerdict(f.window, item.Job.Seniority).Pass
	})

	if len(dropped) > 0 {
		f.logger.Debug("excluding jobs by seniority",
			zap.Stringer("min", f.window.Min),
			zap.Stringer("max", f.window.Max),
			zap.Strings("excluded_jobs", dropped),
		)
	}

	return set, Step{Initial: initial, Dropped: len(dropped), Left: set.Len()}, nil
}

func (f *seniorityFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min": f.window.Min.String(), "max": f.window.Max.String()},
	}
}
