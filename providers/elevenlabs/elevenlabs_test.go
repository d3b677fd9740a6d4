package elevenlabs

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/capability"
)

type fakeDoer struct {
	lastReq *http.Request
	lastBody string
	status   int
	body     string
	header   http.Header
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		f.lastBody = string(data)
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	header := f.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Header: header, Body: io.NopCloser(bytes.NewBufferString(f.body))}, nil
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestTextToSpeechSendsVoiceSettingsAndReturnsAudio(t *testing.T) {
	doer := &fakeDoer{body: "fake-mp3-bytes", header: http.Header{"Content-Type": []string{"audio/mpeg"}}}
	client, err := New(doer, Options{APIKey: "key", DefaultVoice: "voice123"})
	require.NoError(t, err)

	result, err := client.TextToSpeech(context.Background(), capability.TextToSpeechRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "fake-mp3-bytes", string(result.AudioBytes))
	assert.Equal(t, "audio/mpeg", result.ContentType)
	assert.Contains(t, doer.lastReq.URL.String(), "/text-to-speech/voice123")
	assert.Equal(t, "key", doer.lastReq.Header.Get("xi-api-key"))
	assert.Contains(t, doer.lastBody, "eleven_monolingual_v1")
	assert.Contains(t, doer.lastBody, "\"stability\":0.5")
}

func TestTextToSpeechRejectsEmptyText(t *testing.T) {
	client, err := New(&fakeDoer{}, Options{APIKey: "key", DefaultVoice: "voice123"})
	require.NoError(t, err)
	_, err = client.TextToSpeech(context.Background(), capability.TextToSpeechRequest{})
	assert.Error(t, err)
}

func TestTextToSpeechRequiresVoice(t *testing.T) {
	client, err := New(&fakeDoer{}, Options{APIKey: "key"})
	require.NoError(t, err)
	_, err = client.TextToSpeech(context.Background(), capability.TextToSpeechRequest{Text: "hi"})
	assert.Error(t, err)
}

func TestTextToSpeechRejectsNonOKStatus(t *testing.T) {
	doer := &fakeDoer{status: http.StatusUnauthorized, body: "bad key"}
	client, err := New(doer, Options{APIKey: "key", DefaultVoice: "voice123"})
	require.NoError(t, err)
	_, err = client.TextToSpeech(context.Background(), capability.TextToSpeechRequest{Text: "hi"})
	assert.Error(t, err)
}

func TestTextToSpeechStreamUsesStreamEndpointAndEmitsFinal(t *testing.T) {
	doer := &fakeDoer{body: "chunk-bytes", header: http.Header{"Content-Type": []string{"audio/mpeg"}}}
	client, err := New(doer, Options{APIKey: "key", DefaultVoice: "voice123"})
	require.NoError(t, err)

	meta, events, err := client.TextToSpeechStream(context.Background(), capability.TextToSpeechRequest{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", meta.ContentType)
	assert.Contains(t, doer.lastReq.URL.String(), "/stream")

	var gotBytes []byte
	var sawFinal bool
	for ev := range events {
		gotBytes = append(gotBytes, ev.Bytes...)
		if ev.Final {
			sawFinal = true
		}
	}
	assert.Equal(t, "chunk-bytes", string(gotBytes))
	assert.True(t, sawFinal)
}

func TestSpeechToTextRejectsEmptyAudio(t *testing.T) {
	client, err := New(&fakeDoer{}, Options{APIKey: "key"})
	require.NoError(t, err)
	_, err = client.SpeechToText(context.Background(), capability.SpeechToTextRequest{})
	assert.Error(t, err)
}

func TestSpeechToTextParsesWords(t *testing.T) {
	doer := &fakeDoer{body: `{"text":"hello world","language_code":"en","words":[{"text":"hello","start":0,"end":0.5}]}`}
	client, err := New(doer, Options{APIKey: "key"})
	require.NoError(t, err)

	result, err := client.SpeechToText(context.Background(), capability.SpeechToTextRequest{AudioBytes: []byte("pcm-data")})
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Text)
	assert.Equal(t, "en", result.Language)
	require.Len(t, result.Words, 1)
	assert.Equal(t, "hello", result.Words[0].Word)
}
