package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/matcher"
)

// Filter represents a single filtering step applied to ranked matches.
// Filters only drop matches; ranks assigned by the matcher are kept.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, matches []matcher.Match) ([]matcher.Match, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	Companies     []string `mapstructure:"companies"`
	ExcludeFile   string   `mapstructure:"exclude-file"`
	MinSimilarity float64  `mapstructure:"min-similarity"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// Default returns every filter in the order they run.
func Default() []Filter {
	return []Filter{
		NewCompanies(),
		NewExcludeFile(),
		NewMinSimilarity(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run validates the enabled filters and then applies them sequentially.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, matches []matcher.Match) ([]matcher.Match, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, info, err := step.Apply(ctx, deps, matches)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		matches = next
	}

	return matches, nil
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

// keep returns the matches accepted by fn and the titles of the dropped ones.
func keep(matches []matcher.Match, fn func(matcher.Match) bool) ([]matcher.Match, []string) {
	kept := make([]matcher.Match, 0, len(matches))
	var dropped []string
	for _, m := range matches {
		if fn(m) {
			kept = append(kept, m)
			continue
		}
		dropped = append(dropped, m.Key().String())
	}
	return kept, dropped
}

func step(initial int, kept []matcher.Match) Step {
	return Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}
}
