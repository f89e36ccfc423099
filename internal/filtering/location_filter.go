package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type locationFilter struct {
	toggle
	location  string
	threshold float64
	logger    *zap.Logger
}

// NewLocation creates a filter that keeps remote jobs and jobs near the requested location.
func NewLocation(location string, threshold float64, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &locationFilter{location: location, threshold: threshold, logger: logger}
}

func (f *locationFilter) Name() string { return "location" }

func (f *locationFilter) Validate() error {
	if f.threshold <= 0 || f.threshold > 100 {
		return fmt.Errorf("location threshold must be in (0, 100], got %v", f.threshold)
	}
	return nil
}

func (f *locationFilter) Apply(_ context.Context, set *Set) (*Set, Step, error) {
	initial := set.Len()
	if f.location == "" {
		return set, Step{Initial: initial, Dropped: 0, Left: set.Len()}, nil
	}

	dropped := set.Keep(func(item *Item) bool {
		return LocationVerdict(f.location, item.Job, f.threshold).Pass
	})

	if len(dropped) > 0 {
		f.logger.Debug("excluding jobs by location",
			zap.String("location", f.location),
			zap.Strings("excluded_jobs", dropped),
		)
	}

	return set, Step{Initial: initial, Dropped: len(dropped), Left: set.Len()}, nil
}

func (f *locationFilter) Status() Status {
	details := map[string]string{}
	if f.location != "" {
		details["location"] = f.location
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
