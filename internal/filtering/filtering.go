// Package filtering removes jobs that cannot fit a candidate before any similarity work is done.
// Each Filter is one deterministic step; Run applies them in order and logs what each dropped.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/jobs"
)

// Filter represents a single filtering step applied to jobs.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, set *Set) (*Set, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Item is a job that is still in the running, with what the filters learned about it.
type Item struct {
	Job           *jobs.Job
	SkillFraction float64
	MatchedSkills []string
}

// Set is an ordered collection of items.
type Set struct {
	Items []*Item
}

func NewSet(list []*jobs.Job) *Set {
	items := make([]*Item, 0, len(list))
	for _, job := range list {
		items = append(items, &Item{Job: job})
	}
	return &Set{Items: items}
}

func (s *Set) Len() int { return len(s.Items) }

// Keep retains items for which keep returns true and returns the uids of the dropped ones.
func (s *Set) Keep(keep func(*Item) bool) []string {
	kept := s.Items[:0]
	var dropped []string
	for _, item := range s.Items {
		if keep(item) {
			kept = append(kept, item)
			continue
		}
		dropped = append(dropped, item.Job.UID)
	}
	for i := len(kept); i < len(s.Items); i++ {
		s.Items[i] = nil
	}
	s.Items = kept
	return dropped
}

// Exclude drops items whose uid is in uids.
func (s *Set) Exclude(uids map[string]struct{}) []string {
	return s.Keep(func(item *Item) bool {
		_, found := uids[item.Job.UID]
		return !found
	})
}

func (s *Set) Jobs() []*jobs.Job {
	out := make([]*jobs.Job, 0, len(s.Items))
	for _, item := range s.Items {
		out = append(out, item.Job)
	}
	return out
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns what is left.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, set *Set) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, info, err := step.Apply(ctx, set)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		set = next
	}

	return set, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// toggle carries the enabled state shared by every filter.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }
