package ollama

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/providers/compat"
)

type fakeDoer struct {
	lastReq *http.Request
	body    string
	status  int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(f.body))}, nil
}

func chatClient(t *testing.T) *compat.Client {
	t.Helper()
	c, err := compat.New(noopCompletions{}, compat.Variant{ProviderID: "ollama", DefaultModel: "llama3.2"}, compat.Options{})
	require.NoError(t, err)
	return c
}

type noopCompletions struct{}

func (noopCompletions) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	return &openai.ChatCompletion{}, nil
}

func (noopCompletions) NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk] {
	return nil
}

func TestNewRequiresChatClient(t *testing.T) {
	_, err := New(nil, &fakeDoer{}, "http://localhost:11434")
	assert.Error(t, err)
}

func TestListModelsParsesTags(t *testing.T) {
	doer := &fakeDoer{body: `{"models":[{"name":"llama3.2","size":123,"modified_at":"2026-01-01T00:00:00Z"}]}`}
	client, err := New(chatClient(t), doer, "http://localhost:11434")
	require.NoError(t, err)

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llama3.2", models[0].Name)
	assert.Equal(t, "http://localhost:11434/api/tags", doer.lastReq.URL.String())
}

func TestPullModelStreamsProgress(t *testing.T) {
	doer := &fakeDoer{body: "{\"status\":\"pulling manifest\"}\n{\"status\":\"success\"}\n"}
	client, err := New(chatClient(t), doer, "http://localhost:11434")
	require.NoError(t, err)

	var statuses []string
	err = client.PullModel(context.Background(), "llama3.2", func(p PullModelProgress) {
		statuses = append(statuses, p.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pulling manifest", "success"}, statuses)
}

func TestListModelsRejectsNonOKStatus(t *testing.T) {
	doer := &fakeDoer{status: http.StatusInternalServerError}
	client, err := New(chatClient(t), doer, "http://localhost:11434")
	require.NoError(t, err)
	_, err = client.ListModels(context.Background())
	assert.Error(t, err)
}
