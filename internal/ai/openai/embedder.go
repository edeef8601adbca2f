// Package openai embeds text with the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/apperr"
	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/logger"
)

const (
	defaultModel     = string(sdk.EmbeddingModelTextEmbedding3Small)
	defaultDimension = 1536
)

type embeddingsAPI interface {
	New(ctx context.Context, body sdk.EmbeddingNewParams, opts ...option.RequestOption) (*sdk.CreateEmbeddingResponse, error)
}

// Config holds connection settings for the OpenAI provider.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	// Timeout bounds every single request. Zero selects embedding.DefaultTimeout.
	Timeout time.Duration
}

// Embedder implements embedding.Embedder on top of the official SDK.
type Embedder struct {
	api       embeddingsAPI
	model     string
	dimension int
	timeout   time.Duration
	logger    *zap.Logger
}

var _ embedding.Embedder = (*Embedder)(nil)

func NewEmbedder(cfg Config, log *zap.Logger) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := sdk.NewClient(opts...)
	e := newEmbedder(&client.Embeddings, cfg.Model, cfg.Dimension, log)
	if cfg.Timeout > 0 {
		e.timeout = cfg.Timeout
	}
	return e, nil
}

func newEmbedder(api embeddingsAPI, model string, dimension int, log *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if dimension <= 0 {
		dimension = defaultDimension
	}
	return &Embedder{
		api:       api,
		model:     model,
		dimension: dimension,
		timeout:   embedding.DefaultTimeout,
		logger:    logger.WithCommonFields(log, "openai", model),
	}
}

// Embed sends one request and places every returned vector at the index the
// API reports for it.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	input := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			text = " "
		}
		input[i] = text
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.api.New(callCtx, sdk.EmbeddingNewParams{
		Input:      sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: input},
		Model:      sdk.EmbeddingModel(e.model),
		Dimensions: sdk.Int(int64(e.dimension)),
	})
	if err != nil {
		return nil, embedding.RemoteError(ctx, "openai create embeddings", e.timeout, err)
	}
	if resp == nil || len(resp.Data) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Data)
		}
		return nil, apperr.UpstreamUnavailable(fmt.Sprintf("openai returned %d embeddings for %d texts", got, len(texts)), nil)
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			return nil, apperr.UpstreamUnavailable(fmt.Sprintf("openai returned unexpected embedding index %d", idx), nil)
		}
		vec := make([]float32, len(item.Embedding))
		for j, x := range item.Embedding {
			vec[j] = float32(x)
		}
		out[idx] = vec
	}

	e.logger.Debug("embedded texts", zap.Int("count", len(texts)), zap.Int64("tokens", resp.Usage.TotalTokens))

	if err := embedding.Check(out, len(texts), e.dimension); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Model() string { return e.model }
