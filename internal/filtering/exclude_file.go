package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/listings"
	"github.com/spigell/job-matcher/internal/matcher"
)

type excludeFileFilter struct {
	disabled bool
	reason   string
	path     string
}

// NewExcludeFile creates a filter that removes matches listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return !f.disabled }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, matches []matcher.Match) ([]matcher.Match, Step, error) {
	initial := len(matches)
	if f.path == "" {
		return matches, step(initial, matches), nil
	}

	excluded, err := listings.GetExcludedJobsFromFile(f.path)
	if err != nil {
		return nil, Step{}, fmt.Errorf("getting excluded jobs from file: %w", err)
	}

	keys := make(map[string]struct{}, len(excluded.Items))
	for _, key := range excluded.Keys() {
		keys[key] = struct{}{}
	}

	kept, dropped := keep(matches, func(m matcher.Match) bool {
		_, found := keys[m.Key().String()]
		return !found
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding jobs based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", len(kept)),
		)
	}

	return kept, step(initial, kept), nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
