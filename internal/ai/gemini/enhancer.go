package gemini

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/utils"
)

const (
	logPreviewLimit   = 200
	defaultGuidelineK = 3
)

//go:embed prompts/system.md
var systemPrompt string

//go:embed prompts/enhance.md
var enhancePrompt string

//go:embed prompts/cover_letter.md
var coverLetterPrompt string

//go:embed prompts/learning_path.md
var learningPathPrompt string

// Enhancer writes application documents with a text model.
type Enhancer struct {
	generator  ai.Generator
	guidelines *ai.Guidelines
	logger     *zap.Logger
}

var _ ai.Writer = (*Enhancer)(nil)

// NewEnhancer creates an Enhancer. guidelines may be nil.
func NewEnhancer(generator ai.Generator, guidelines *ai.Guidelines, log *zap.Logger) *Enhancer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Enhancer{
		generator:  generator,
		guidelines: guidelines,
		logger:     log,
	}
}

// EnhanceResume rewrites a raw resume into **Header** delimited sections.
func (e *Enhancer) EnhanceResume(ctx context.Context, rawResume string) (string, error) {
	rawResume = strings.TrimSpace(rawResume)
	if rawResume == "" {
		return "", errors.New("resume must not be empty")
	}

	rules, err := e.guidelines.Relevant(ctx, rawResume, defaultGuidelineK)
	if err != nil {
		return "", fmt.Errorf("find guidelines: %w", err)
	}

	guidelines := "- none"
	if len(rules) > 0 {
		guidelines = "- " + strings.Join(rules, "\n- ")
	}

	prompt := render(enhancePrompt, map[string]string{
		"GUIDELINES": guidelines,
		"RESUME":     rawResume,
	})

	return e.generate(ctx, "enhance resume", prompt)
}

// CoverLetter writes a cover letter for job.
func (e *Enhancer) CoverLetter(ctx context.Context, resume string, job ai.JobSummary) (string, error) {
	if strings.TrimSpace(resume) == "" {
		return "", errors.New("resume must not be empty")
	}

	prompt := render(coverLetterPrompt, map[string]string{
		"TITLE":       orDefault(job.Title, "the open position"),
		"COMPANY":     orDefault(job.Company, "the company"),
		"RESUME":      strings.TrimSpace(resume),
		"DESCRIPTION": orDefault(job.Description, "not provided"),
	})

	return e.generate(ctx, "cover letter", prompt)
}

// LearningPath suggests how to close the skill gap between resume and jobs.
func (e *Enhancer) LearningPath(ctx context.Context, resume string, jobs []ai.JobSummary) (string, error) {
	if strings.TrimSpace(resume) == "" {
		return "", errors.New("resume must not be empty")
	}
	if len(jobs) == 0 {
		return "", errors.New("at least one job is required")
	}

	var b strings.Builder
	for i, job := range jobs {
		fmt.Fprintf(&b, "%d. %s at %s\n%s\n\n", i+1,
			orDefault(job.Title, "Untitled"),
			orDefault(job.Company, "unknown company"),
			strings.TrimSpace(job.Description))
	}

	prompt := render(learningPathPrompt, map[string]string{
		"RESUME": strings.TrimSpace(resume),
		"JOBS":   strings.TrimSpace(b.String()),
	})

	return e.generate(ctx, "learning path", prompt)
}

func (e *Enhancer) generate(ctx context.Context, task, prompt string) (string, error) {
	if e.generator == nil {
		return "", errors.New("text generator is not configured")
	}

	log := e.logger.With(zap.String("task", task), zap.String("model", e.generator.Model()))
	log.Debug("sending prompt", zap.String("prompt", utils.TruncateForLog(prompt, logPreviewLimit)))

	out, err := e.generator.GenerateContent(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", task, err)
	}

	log.Debug("got answer", zap.String("answer", utils.TruncateForLog(out, logPreviewLimit)))
	return out, nil
}

func render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(template))
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}
