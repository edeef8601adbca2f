package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-matcher/internal/apperr"
	"github.com/spigell/job-matcher/internal/embedding"
)

type fakeEmbeddings struct {
	params sdk.EmbeddingNewParams
	resp   *sdk.CreateEmbeddingResponse
	err    error
	calls  int
	// block makes New wait for its ctx to end.
	block bool
}

func (f *fakeEmbeddings) New(ctx context.Context, body sdk.EmbeddingNewParams, _ ...option.RequestOption) (*sdk.CreateEmbeddingResponse, error) {
	f.calls++
	f.params = body
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func response(items ...sdk.Embedding) *sdk.CreateEmbeddingResponse {
	return &sdk.CreateEmbeddingResponse{Data: items}
}

func TestEmbedReordersByIndex(t *testing.T) {
	api := &fakeEmbeddings{resp: response(
		sdk.Embedding{Index: 1, Embedding: []float64{0, 1}},
		sdk.Embedding{Index: 0, Embedding: []float64{1, 0}},
	)}
	e := newEmbedder(api, "", 2, nil)

	vecs, err := e.Embed(context.Background(), []string{"first", ""})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, []string{"first", " "}, api.params.Input.OfArrayOfStrings)
	assert.Equal(t, sdk.EmbeddingModel(defaultModel), api.params.Model)
}

func TestEmbedErrors(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeEmbeddings
		want error
	}{
		{"transport", &fakeEmbeddings{err: errors.New("502")}, apperr.ErrUpstreamUnavailable},
		{"short response", &fakeEmbeddings{resp: response(sdk.Embedding{Index: 0, Embedding: []float64{1, 0}})}, apperr.ErrUpstreamUnavailable},
		{"duplicate index", &fakeEmbeddings{resp: response(
			sdk.Embedding{Index: 0, Embedding: []float64{1, 0}},
			sdk.Embedding{Index: 0, Embedding: []float64{0, 1}},
		)}, apperr.ErrUpstreamUnavailable},
		{"dimension", &fakeEmbeddings{resp: response(
			sdk.Embedding{Index: 0, Embedding: []float64{1, 0}},
			sdk.Embedding{Index: 1, Embedding: []float64{1}},
		)}, apperr.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEmbedder(tt.api, "m", 2, nil)
			_, err := e.Embed(context.Background(), []string{"a", "b"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEmbedTimeoutIsUpstreamFailure(t *testing.T) {
	e := newEmbedder(&fakeEmbeddings{block: true}, "m", 2, nil)
	e.timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := e.Embed(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEmbedReturnsSessionCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEmbedder(&fakeEmbeddings{block: true}, "m", 2, nil)
	_, err := e.Embed(ctx, []string{"a"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}

func TestEmbedEmptyBatchSkipsRequest(t *testing.T) {
	api := &fakeEmbeddings{}
	e := newEmbedder(api, "m", 2, nil)

	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Zero(t, api.calls)
}

func TestNewEmbedderRequiresKey(t *testing.T) {
	_, err := NewEmbedder(Config{APIKey: "  "}, nil)
	assert.Error(t, err)

	e, err := NewEmbedder(Config{APIKey: "sk-test", Dimension: 256}, nil)
	require.NoError(t, err)
	assert.Equal(t, 256, e.Dimension())
	assert.Equal(t, embedding.DefaultTimeout, e.timeout)

	e, err = NewEmbedder(Config{APIKey: "sk-test", Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, e.timeout)
	assert.Equal(t, string(defaultModel), e.Model())
}
