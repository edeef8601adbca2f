package gemini

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/spigell/job-matcher/internal/apperr"
)

type fakeModels struct {
	calls   int
	model   string
	batches [][]*genai.Content
	config  *genai.EmbedContentConfig
	resp    *genai.EmbedContentResponse
	err     error
	// embed answers instead of resp and err when set.
	embed func(ctx context.Context, contents []*genai.Content) (*genai.EmbedContentResponse, error)
}

func (f *fakeModels) EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.calls++
	f.model = model
	f.batches = append(f.batches, contents)
	f.config = config
	if f.embed != nil {
		return f.embed(ctx, contents)
	}
	return f.resp, f.err
}

func embeddings(vectors ...[]float32) *genai.EmbedContentResponse {
	resp := &genai.EmbedContentResponse{}
	for _, v := range vectors {
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: v})
	}
	return resp
}

func TestEmbedderSendsOneRequestForSmallInput(t *testing.T) {
	models := &fakeModels{resp: embeddings([]float32{1, 0}, []float32{0, 1})}
	e := newEmbedder(models, "", 2, nil)

	vecs, err := e.Embed(context.Background(), []string{"go", ""})
	require.NoError(t, err)

	assert.Equal(t, 1, models.calls)
	assert.Equal(t, defaultEmbeddingModel, models.model)
	assert.Equal(t, " ", models.batches[0][1].Parts[0].Text, "empty text is sent as a space")
	require.NotNil(t, models.config.OutputDimensionality)
	assert.EqualValues(t, 2, *models.config.OutputDimensionality)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestEmbedderSplitsLargeInput(t *testing.T) {
	// every text is its own index; the fake echoes it back as the vector
	models := &fakeModels{embed: func(_ context.Context, contents []*genai.Content) (*genai.EmbedContentResponse, error) {
		resp := &genai.EmbedContentResponse{}
		for _, c := range contents {
			n, err := strconv.Atoi(c.Parts[0].Text)
			if err != nil {
				return nil, err
			}
			resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: []float32{float32(n)}})
		}
		return resp, nil
	}}
	e := newEmbedder(models, "m", 1, nil)

	texts := make([]string, 2*maxEmbedBatch+50)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}

	vecs, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, models.batches, 3)
	assert.Len(t, models.batches[0], maxEmbedBatch)
	assert.Len(t, models.batches[1], maxEmbedBatch)
	assert.Len(t, models.batches[2], 50)
	assert.Equal(t, strconv.Itoa(maxEmbedBatch), models.batches[1][0].Parts[0].Text)

	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i)}, v, "vector %d", i)
	}
}

func TestEmbedderFailedBatchFailsWholeCall(t *testing.T) {
	models := &fakeModels{embed: func(_ context.Context, contents []*genai.Content) (*genai.EmbedContentResponse, error) {
		if contents[0].Parts[0].Text == "second" {
			return nil, errors.New("503")
		}
		resp := &genai.EmbedContentResponse{}
		for range contents {
			resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: []float32{1}})
		}
		return resp, nil
	}}
	e := newEmbedder(models, "m", 1, nil)
	e.batchSize = 1

	vecs, err := e.Embed(context.Background(), []string{"first", "second", "third"})
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Nil(t, vecs)
	assert.Equal(t, 2, models.calls, "no request after a failed batch")
}

func TestEmbedderEmptyInput(t *testing.T) {
	models := &fakeModels{}
	e := newEmbedder(models, "m", 2, nil)

	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Zero(t, models.calls)
}

func TestEmbedderErrors(t *testing.T) {
	tests := []struct {
		name   string
		models *fakeModels
		want   error
	}{
		{
			name:   "transport failure",
			models: &fakeModels{err: errors.New("503")},
			want:   apperr.ErrUpstreamUnavailable,
		},
		{
			name:   "count mismatch",
			models: &fakeModels{resp: embeddings([]float32{1, 0})},
			want:   apperr.ErrUpstreamUnavailable,
		},
		{
			name:   "wrong dimension",
			models: &fakeModels{resp: embeddings([]float32{1, 0}, []float32{1})},
			want:   apperr.ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEmbedder(tt.models, "m", 2, nil)
			_, err := e.Embed(context.Background(), []string{"a", "b"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEmbedderTimeoutIsUpstreamFailure(t *testing.T) {
	models := &fakeModels{embed: func(ctx context.Context, _ []*genai.Content) (*genai.EmbedContentResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	e := newEmbedder(models, "m", 2, nil)
	e.timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := e.Embed(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEmbedderReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEmbedder(&fakeModels{err: errors.New("request canceled")}, "m", 2, nil)
	_, err := e.Embed(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}

func TestEmbedderDefaults(t *testing.T) {
	e := newEmbedder(&fakeModels{}, " ", 0, nil)
	assert.Equal(t, defaultEmbeddingModel, e.Model())
	assert.Equal(t, defaultEmbeddingDimension, e.Dimension())
	assert.Equal(t, maxEmbedBatch, e.batchSize)
}
