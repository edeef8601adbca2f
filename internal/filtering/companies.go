package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/matcher"
)

type companiesFilter struct {
	disabled  bool
	reason    string
	companies map[string]struct{}
	names     []string
}

// NewCompanies creates a filter that removes matches by companies configured in the config.
func NewCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *companiesFilter) IsEnabled() bool { return !f.disabled }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = map[string]struct{}{}
	f.names = nil
	if cfg == nil {
		return nil
	}
	for _, name := range cfg.Companies {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f.companies[strings.ToLower(name)] = struct{}{}
		f.names = append(f.names, name)
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, matches []matcher.Match) ([]matcher.Match, Step, error) {
	initial := len(matches)
	if len(f.companies) == 0 {
		return matches, step(initial, matches), nil
	}

	kept, dropped := keep(matches, func(m matcher.Match) bool {
		_, excluded := f.companies[strings.ToLower(strings.TrimSpace(m.Company))]
		return !excluded
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding jobs by companies",
			zap.Strings("excluded_companies", f.names),
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", len(kept)),
		)
	}

	return kept, step(initial, kept), nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.names) > 0 {
		details["companies"] = strings.Join(f.names, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
