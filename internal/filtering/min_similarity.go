package filtering

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/matcher"
)

type minSimilarityFilter struct {
	disabled  bool
	reason    string
	threshold float64
}

// NewMinSimilarity creates a filter that removes ranked matches scoring below a threshold.
// Unranked matches are kept.
func NewMinSimilarity() Filter {
	return &minSimilarityFilter{}
}

func (f *minSimilarityFilter) Name() string { return "min_similarity" }

func (f *minSimilarityFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *minSimilarityFilter) IsEnabled() bool { return !f.disabled }

func (f *minSimilarityFilter) Validate(cfg *Config) error {
	f.threshold = 0
	if cfg == nil {
		return nil
	}
	if cfg.MinSimilarity < 0 || cfg.MinSimilarity > 1 {
		return errors.New("min similarity must be between 0 and 1")
	}
	f.threshold = cfg.MinSimilarity
	return nil
}

func (f *minSimilarityFilter) Apply(_ context.Context, deps Deps, matches []matcher.Match) ([]matcher.Match, Step, error) {
	initial := len(matches)
	if f.threshold <= 0 {
		return matches, step(initial, matches), nil
	}

	kept, dropped := keep(matches, func(m matcher.Match) bool {
		return m.Similarity == nil || *m.Similarity >= f.threshold
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding jobs below similarity threshold",
			zap.Float64("threshold", f.threshold),
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", len(kept)),
		)
	}

	return kept, step(initial, kept), nil
}

func (f *minSimilarityFilter) Status() Status {
	details := map[string]string{}
	if f.threshold > 0 {
		details["threshold"] = strconv.FormatFloat(f.threshold, 'f', 2, 64)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
