package ai

import "context"

// Generator sends a system instruction and a user message to a text model.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// JobSummary is the part of a job posting the writers need.
type JobSummary struct {
	Title       string
	Company     string
	Description string
}

// Writer produces the generated documents around matching.
type Writer interface {
	EnhanceResume(ctx context.Context, rawResume string) (string, error)
	CoverLetter(ctx context.Context, resume string, job JobSummary) (string, error)
	LearningPath(ctx context.Context, resume string, jobs []JobSummary) (string, error)
}
