package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

type excludedCompaniesFilter struct {
	toggle
	companies map[string]struct{}
	logger    *zap.Logger
}

// NewExcludedCompanies creates a filter that removes jobs of the configured companies.
func NewExcludedCompanies(companies []string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(map[string]struct{}, len(companies))
	for _, c := range companies {
		if c = strings.TrimSpace(c); c != "" {
			set[c] = struct{}{}
		}
	}
	return &excludedCompaniesFilter{companies: set, logger: logger}
}

func (f *excludedCompaniesFilter) Name() string { return "excluded_companies" }

func (f *excludedCompaniesFilter) Validate() error { return nil }

func (f *excludedCompaniesFilter) Apply(_ context.Context, set *Set) (*Set, Step, error) {
	initial := set.Len()
	if len(f.companies) == 0 {
		return set, Step{Initial: initial, Dropped: 0, Left: set.Len()}, nil
	}

	excluded := set.Keep(func(item *Item) bool {
		_, blocked := f.companies[item.Job.CompanyID]
		return !blocked
	})
	if len(excluded) > 0 {
		f.logger.Info("excluding jobs by companies",
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", set.Len()),
		)
	}

	return set, Step{Initial: initial, Dropped: len(excluded), Left: set.Len()}, nil
}

func (f *excludedCompaniesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		names := make([]string, 0, len(f.companies))
		for c := range f.companies {
			names = append(names, c)
		}
		details["companies"] = strings.Join(sortedCopy(names), ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
