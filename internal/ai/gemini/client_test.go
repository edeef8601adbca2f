package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue map[string][]fakeChatResponse
}

type chatCallRecord struct {
	model  string
	config *genai.GenerateContentConfig
	chat   *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func newFakeChatCreator() *fakeChatCreator {
	return &fakeChatCreator{queue: make(map[string][]fakeChatResponse)}
}

func (f *fakeChatCreator) enqueue(model string, resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[model] = append(f.queue[model], fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	responses := f.queue[model]
	if len(responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := responses[0]
	f.queue[model] = responses[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, chat: chat})
	return chat, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func newTestGenerator(chats chatCreator, maxRetries int) *Generator {
	return &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: maxRetries,
		logger:     zap.NewNop(),
	}
}

// recordWaits replaces wait for the test and returns the requested delays.
func recordWaits(t *testing.T) *[]time.Duration {
	t.Helper()
	original := wait
	t.Cleanup(func() { wait = original })

	var delays []time.Duration
	wait = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return &delays
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	delays := recordWaits(t)

	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	chats.enqueue("gemini-pro", textResponse("retry ok"), nil)

	output, err := newTestGenerator(chats, 2).GenerateContent(context.Background(), "system", "message")
	require.NoError(t, err)

	assert.Equal(t, "retry ok", output)
	require.Len(t, chats.calls, 2)
	assert.Equal(t, []time.Duration{baseRetryDelay}, *delays)

	for _, call := range chats.calls {
		require.NotNil(t, call.config)
		require.NotNil(t, call.config.SystemInstruction)
		assert.Equal(t, "system", call.config.SystemInstruction.Parts[0].Text)
		assert.Equal(t, []string{"message"}, call.chat.messages)
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	delays := recordWaits(t)

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	for i := 0; i < 3; i++ {
		chats.enqueue("gemini-pro", nil, tempErr)
	}

	_, err := newTestGenerator(chats, 3).GenerateContent(context.Background(), "sys", "msg")
	require.Error(t, err)

	assert.Len(t, chats.calls, 3)
	assert.Equal(t, []time.Duration{baseRetryDelay, 2 * baseRetryDelay}, *delays, "backoff doubles")
}

func TestGeneratorUsesShortQuotaHint(t *testing.T) {
	delays := recordWaits(t)

	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "Please retry in 3.5s.",
	})
	chats.enqueue("gemini-pro", textResponse("ok"), nil)

	output, err := newTestGenerator(chats, 3).GenerateContent(context.Background(), "", "msg")
	require.NoError(t, err)

	assert.Equal(t, "ok", output)
	assert.Equal(t, []time.Duration{3500 * time.Millisecond}, *delays)
	assert.Nil(t, chats.calls[0].config.SystemInstruction, "blank system prompt is not sent")
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	delays := recordWaits(t)

	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	_, err := newTestGenerator(chats, 3).GenerateContent(context.Background(), "sys", "msg")
	require.Error(t, err)

	assert.Len(t, chats.calls, 1)
	assert.Empty(t, *delays)
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	delays := recordWaits(t)

	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	_, err := newTestGenerator(chats, 3).GenerateContent(context.Background(), "sys", "msg")
	require.Error(t, err)

	assert.Len(t, chats.calls, 1)
	assert.Empty(t, *delays)
}

func TestGeneratorCancelledDuringBackoff(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", nil, genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"})
	chats.enqueue("gemini-pro", textResponse("too late"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	_, err := newTestGenerator(chats, 3).GenerateContent(ctx, "sys", "msg")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), baseRetryDelay, "backoff must stop on cancellation")
	assert.Len(t, chats.calls, 1, "no attempt after cancellation")
}

func TestGeneratorRejectsEmptyMessage(t *testing.T) {
	chats := newFakeChatCreator()

	_, err := newTestGenerator(chats, 1).GenerateContent(context.Background(), "sys", "  ")
	require.Error(t, err)
	assert.Empty(t, chats.calls)
}

func TestResponseTextJoinsParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: " first "}, nil, {Text: ""}}}},
			nil,
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "second"}}}},
		},
	}

	out, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", out)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}
