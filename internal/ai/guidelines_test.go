package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-matcher/internal/embedding"
)

func TestGuidelinesRankByCloseness(t *testing.T) {
	ctx := context.Background()
	rules := []string{
		"Quantify your achievements with numbers",
		"List technical skills separately",
		"  ",
		"Keep the resume to one page",
	}

	g, err := NewGuidelines(ctx, embedding.NewHashing(128), rules)
	require.NoError(t, err)

	got, err := g.Relevant(ctx, "list technical skills separately please", 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "List technical skills separately", got[0])
}

func TestGuidelinesWithoutRules(t *testing.T) {
	ctx := context.Background()

	g, err := NewGuidelines(ctx, embedding.NewHashing(8), nil)
	require.NoError(t, err)

	got, err := g.Relevant(ctx, "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	var missing *Guidelines
	got, err = missing.Relevant(ctx, "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGuidelinesDefaultSet(t *testing.T) {
	g, err := NewGuidelines(context.Background(), embedding.NewHashing(64), DefaultGuidelines)
	require.NoError(t, err)

	got, err := g.Relevant(context.Background(), "resume", 0)
	require.NoError(t, err)
	assert.Len(t, got, len(DefaultGuidelines))
}
