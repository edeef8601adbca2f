package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-matcher/internal/apperr"
	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/logger"
)

const (
	defaultEmbeddingModel     = "gemini-embedding-001"
	defaultEmbeddingDimension = 768
	embeddingTaskType         = "SEMANTIC_SIMILARITY"
	// maxEmbedBatch is the number of contents the API takes in one request.
	maxEmbedBatch = 100
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// EmbedderOptions tunes an Embedder. Zero values fall back to defaults.
type EmbedderOptions struct {
	Model     string
	Dimension int
	// Timeout bounds every single request.
	Timeout time.Duration
}

// Embedder produces vectors with the Gemini embedding API.
type Embedder struct {
	models    contentEmbedder
	model     string
	dimension int
	timeout   time.Duration
	batchSize int
	logger    *zap.Logger
}

var _ embedding.Embedder = (*Embedder)(nil)

func NewEmbedder(client *genai.Client, opts EmbedderOptions, log *zap.Logger) *Embedder {
	e := newEmbedder(client.Models, opts.Model, opts.Dimension, log)
	if opts.Timeout > 0 {
		e.timeout = opts.Timeout
	}
	return e
}

func newEmbedder(models contentEmbedder, model string, dimension int, log *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	if dimension <= 0 {
		dimension = defaultEmbeddingDimension
	}
	return &Embedder{
		models:    models,
		model:     model,
		dimension: dimension,
		timeout:   embedding.DefaultTimeout,
		batchSize: maxEmbedBatch,
		logger:    logger.WithCommonFields(log, "gemini", model),
	}
}

// Embed sends texts in batches of at most maxEmbedBatch and joins the
// answers in input order. Empty texts are sent as a single space so that
// every input keeps its slot in the response.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}

	e.logger.Debug("embedded texts", zap.Int("count", len(texts)))

	if err := embedding.Check(out, len(texts), e.dimension); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			text = " "
		}
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	dim := int32(e.dimension)
	resp, err := e.models.EmbedContent(callCtx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             embeddingTaskType,
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, embedding.RemoteError(ctx, "gemini embed content", e.timeout, err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, apperr.UpstreamUnavailable(fmt.Sprintf("gemini returned %d embeddings for %d texts", got, len(texts)), nil)
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, apperr.UpstreamUnavailable(fmt.Sprintf("gemini returned no embedding for text %d", i), nil)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Model() string { return e.model }
