package filtering

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-matcher/internal/listings"
	"github.com/spigell/job-matcher/internal/matcher"
)

func score(v float64) *float64 { return &v }

func ranked() []matcher.Match {
	return []matcher.Match{
		{Job: listings.Job{Title: "Go Engineer", Company: "Acme", ApplicationLink: "https://a"}, Similarity: score(1), Rank: 1},
		{Job: listings.Job{Title: "SRE", Company: "Initech", ApplicationLink: "https://b"}, Similarity: score(0.6), Rank: 2},
		{Job: listings.Job{Title: "Backend", Company: "acme ", ApplicationLink: "https://c"}, Similarity: score(0.2), Rank: 3},
		{Job: listings.Job{Title: "Data", Company: "Globex", ApplicationLink: "https://d"}, Similarity: score(0), Rank: 4},
	}
}

func titles(matches []matcher.Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Title
	}
	return out
}

func TestRunAppliesFiltersInOrderAndKeepsRanks(t *testing.T) {
	dir := t.TempDir()
	excludePath := filepath.Join(dir, "exclude.json")

	excluded := (&listings.Jobs{Items: []listings.Job{ranked()[1].Job}}).ToExcluded("applied")
	require.NoError(t, excluded.ToFile(excludePath))

	core, observed := observer.New(zapcore.InfoLevel)
	cfg := &Config{
		Companies:     []string{"ACME"},
		ExcludeFile:   excludePath,
		MinSimilarity: 0.1,
	}

	out, err := Run(context.Background(), cfg, Deps{Logger: zap.New(core)}, Default(), ranked())
	require.NoError(t, err)

	assert.Empty(t, out)

	steps := observed.FilterMessage("filter step").All()
	require.Len(t, steps, 3)
	assert.Equal(t, "companies", steps[0].ContextMap()["name"])
	assert.EqualValues(t, 2, steps[0].ContextMap()["dropped"])
	assert.EqualValues(t, 1, steps[1].ContextMap()["dropped"])
	assert.EqualValues(t, 1, steps[2].ContextMap()["dropped"])
	assert.EqualValues(t, 0, steps[2].ContextMap()["left"])
}

func TestMinSimilarityKeepsRanks(t *testing.T) {
	out, err := Run(context.Background(), &Config{MinSimilarity: 0.5}, Deps{}, Default(), ranked())
	require.NoError(t, err)

	assert.Equal(t, []string{"Go Engineer", "SRE"}, titles(out))
	assert.Equal(t, 1, out[0].Rank)
	assert.Equal(t, 2, out[1].Rank)
}

func TestMinSimilarityKeepsUnrankedMatches(t *testing.T) {
	unranked := []matcher.Match{{Job: listings.Job{Title: "a"}}, {Job: listings.Job{Title: "b"}}}

	out, err := Run(context.Background(), &Config{MinSimilarity: 0.9}, Deps{}, Default(), unranked)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMinSimilarityValidation(t *testing.T) {
	_, err := Run(context.Background(), &Config{MinSimilarity: 1.5}, Deps{}, Default(), ranked())
	assert.ErrorContains(t, err, "min_similarity")
}

func TestDisabledFilterIsSkipped(t *testing.T) {
	steps := Default()
	DisableByName(steps, "companies", "flag")

	out, err := Run(context.Background(), &Config{Companies: []string{"Acme"}, MinSimilarity: 1.5}, Deps{}, steps[:1], ranked())
	require.NoError(t, err)
	assert.Len(t, out, 4)

	statuses := Describe(steps)
	require.Len(t, statuses, 3)
	assert.False(t, statuses[0].Enabled)
	assert.Equal(t, "flag", statuses[0].Reason)
}

func TestExcludeFileMissingIsEmpty(t *testing.T) {
	cfg := &Config{ExcludeFile: filepath.Join(t.TempDir(), "missing.json")}

	out, err := Run(context.Background(), cfg, Deps{}, []Filter{NewExcludeFile()}, ranked())
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, &Config{}, Deps{}, Default(), ranked())
	assert.ErrorIs(t, err, context.Canceled)
}
