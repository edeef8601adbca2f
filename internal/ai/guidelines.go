package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/index"
)

// DefaultGuidelines are short resume writing rules for applicant tracking systems.
var DefaultGuidelines = []string{
	"Use action verbs like 'Led', 'Managed', 'Developed', instead of passive phrases.",
	"Quantify your achievements, e.g., 'increased sales by 20%'.",
	"Keep resume length to one page unless you have 10+ years of experience.",
	"Tailor your resume to each job description by including relevant keywords.",
	"Use consistent formatting: bullet points, font size, spacing.",
	"Avoid vague terms like 'team player', focus on specific results.",
	"List technical skills and tools separately in a skills section.",
	"Start each bullet point with a powerful verb.",
}

// Guidelines returns the writing rules closest to a resume.
type Guidelines struct {
	embedder embedding.Embedder
	catalog  *index.Catalog[string]
}

// NewGuidelines embeds rules once and keeps them in an index. Blank rules are skipped.
func NewGuidelines(ctx context.Context, embedder embedding.Embedder, rules []string) (*Guidelines, error) {
	cleaned := make([]string, 0, len(rules))
	for _, rule := range rules {
		if rule = strings.TrimSpace(rule); rule != "" {
			cleaned = append(cleaned, rule)
		}
	}

	vecs, err := embedder.Embed(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("embed guidelines: %w", err)
	}
	if err := embedding.Check(vecs, len(cleaned), embedder.Dimension()); err != nil {
		return nil, err
	}

	catalog, err := index.NewCatalog(cleaned, vecs)
	if err != nil {
		return nil, fmt.Errorf("index guidelines: %w", err)
	}

	return &Guidelines{embedder: embedder, catalog: catalog}, nil
}

// Relevant returns up to k rules ordered by closeness to text.
func (g *Guidelines) Relevant(ctx context.Context, text string, k int) ([]string, error) {
	if g == nil || g.catalog.Len() == 0 {
		return nil, nil
	}

	vecs, err := g.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed resume: %w", err)
	}
	if err := embedding.Check(vecs, 1, g.embedder.Dimension()); err != nil {
		return nil, err
	}

	hits, err := g.catalog.Search(vecs[0], k)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Item
	}
	return out, nil
}
