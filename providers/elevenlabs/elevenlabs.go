// Package elevenlabs implements capability.TextToSpeechCapability,
// capability.StreamingTextToSpeechCapability, and
// capability.SpeechToTextCapability against ElevenLabs' REST API, grounded
// on the request/response shape in internal/tts/tts.go's elevenlabsTTS
// helper: POST /v1/text-to-speech/{voice_id} with an "xi-api-key" header
// and a {text, model_id, voice_settings} JSON body, returning raw audio
// bytes rather than a JSON envelope.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/registry"
)

// ProviderID is the registry key for this adapter.
const ProviderID = "elevenlabs"

// defaultBaseURL matches the grounding file's hardcoded "https://api.elevenlabs.io/v1".
const defaultBaseURL = "https://api.elevenlabs.io/v1"

// defaultModelID matches ElevenLabsConfig's DefaultConfig.
const defaultModelID = "eleven_monolingual_v1"

// HTTPDoer is the minimal HTTP transport this adapter needs. Satisfied by
// *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// VoiceSettings mirrors the grounding file's inline voice_settings object.
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
}

// Options configures the adapter.
type Options struct {
	APIKey        string
	BaseURL       string
	DefaultVoice  string
	ModelID       string
	VoiceSettings VoiceSettings
}

// Client implements the llmkit audio capabilities against ElevenLabs.
type Client struct {
	http          HTTPDoer
	apiKey        string
	baseURL       string
	defaultVoice  string
	modelID       string
	voiceSettings VoiceSettings
}

// New builds a Client from httpDoer and opts.
func New(httpDoer HTTPDoer, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs: api key is required")
	}
	if httpDoer == nil {
		httpDoer = http.DefaultClient
	}
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	modelID := opts.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}
	settings := opts.VoiceSettings
	if settings.Stability == 0 && settings.SimilarityBoost == 0 {
		settings = VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	}
	return &Client{
		http:          httpDoer,
		apiKey:        opts.APIKey,
		baseURL:       baseURL,
		defaultVoice:  opts.DefaultVoice,
		modelID:       modelID,
		voiceSettings: settings,
	}, nil
}

type ttsRequestBody struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings ttsVoiceSettingsWire   `json:"voice_settings"`
}

type ttsVoiceSettingsWire struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (c *Client) ttsURL(voiceID, outputFormat string, streaming bool) string {
	path := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID)
	if streaming {
		path += "/stream"
	}
	if outputFormat != "" {
		path += "?output_format=" + outputFormat
	}
	return path
}

func (c *Client) buildTTSRequest(ctx context.Context, req capability.TextToSpeechRequest, streaming bool) (*http.Request, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, llmerr.New(llmerr.KindInvalidRequest, ProviderID, "text_to_speech", "text is required", nil)
	}
	voiceID := req.Voice
	if voiceID == "" {
		voiceID = c.defaultVoice
	}
	if voiceID == "" {
		return nil, llmerr.New(llmerr.KindInvalidRequest, ProviderID, "text_to_speech", "voice is required", nil)
	}

	body := ttsRequestBody{
		Text:    req.Text,
		ModelID: c.modelID,
		VoiceSettings: ttsVoiceSettingsWire{
			Stability:       c.voiceSettings.Stability,
			SimilarityBoost: c.voiceSettings.SimilarityBoost,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ttsURL(voiceID, req.Format, streaming), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	return httpReq, nil
}

// TextToSpeech synthesizes speech in a single non-streaming call.
func (c *Client) TextToSpeech(ctx context.Context, req capability.TextToSpeechRequest) (capability.TextToSpeechResult, error) {
	httpReq, err := c.buildTTSRequest(ctx, req, false)
	if err != nil {
		return capability.TextToSpeechResult{}, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return capability.TextToSpeechResult{}, llmerr.New(llmerr.KindHTTP, ProviderID, "text_to_speech", err.Error(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return capability.TextToSpeechResult{}, httpStatusError(ProviderID, "text_to_speech", resp)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return capability.TextToSpeechResult{}, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return capability.TextToSpeechResult{
		AudioBytes:  audio,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// TextToSpeechStream synthesizes speech incrementally, following the
// capability.StreamingTextToSpeechCapability contract: metadata first (no
// AudioBytes), then ordered AudioDataEvents read off ElevenLabs' chunked
// /stream response body.
func (c *Client) TextToSpeechStream(ctx context.Context, req capability.TextToSpeechRequest) (capability.TextToSpeechResult, <-chan capability.AudioDataEvent, error) {
	httpReq, err := c.buildTTSRequest(ctx, req, true)
	if err != nil {
		return capability.TextToSpeechResult{}, nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return capability.TextToSpeechResult{}, nil, llmerr.New(llmerr.KindHTTP, ProviderID, "text_to_speech_stream", err.Error(), err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return capability.TextToSpeechResult{}, nil, httpStatusError(ProviderID, "text_to_speech_stream", resp)
	}

	meta := capability.TextToSpeechResult{ContentType: resp.Header.Get("Content-Type")}
	out := make(chan capability.AudioDataEvent, 4)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		buf := make([]byte, 4096)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case out <- capability.AudioDataEvent{Bytes: chunk}:
				case <-ctx.Done():
					return
				}
			}
			if readErr == io.EOF {
				select {
				case out <- capability.AudioDataEvent{Final: true}:
				case <-ctx.Done():
				}
				return
			}
			if readErr != nil {
				return
			}
		}
	}()
	return meta, out, nil
}

// SpeechToText transcribes audio via ElevenLabs' multipart /speech-to-text
// endpoint.
func (c *Client) SpeechToText(ctx context.Context, req capability.SpeechToTextRequest) (capability.SpeechToTextResult, error) {
	if len(req.AudioBytes) == 0 {
		return capability.SpeechToTextResult{}, llmerr.New(llmerr.KindInvalidRequest, ProviderID, "speech_to_text", "audio is required", nil)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("model_id", "scribe_v1"); err != nil {
		return capability.SpeechToTextResult{}, fmt.Errorf("elevenlabs: write model_id field: %w", err)
	}
	if req.Language != "" {
		if err := writer.WriteField("language_code", req.Language); err != nil {
			return capability.SpeechToTextResult{}, fmt.Errorf("elevenlabs: write language_code field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", "audio")
	if err != nil {
		return capability.SpeechToTextResult{}, fmt.Errorf("elevenlabs: create form file: %w", err)
	}
	if _, err := part.Write(req.AudioBytes); err != nil {
		return capability.SpeechToTextResult{}, fmt.Errorf("elevenlabs: write audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return capability.SpeechToTextResult{}, fmt.Errorf("elevenlabs: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech-to-text", &body)
	if err != nil {
		return capability.SpeechToTextResult{}, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return capability.SpeechToTextResult{}, llmerr.New(llmerr.KindHTTP, ProviderID, "speech_to_text", err.Error(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return capability.SpeechToTextResult{}, httpStatusError(ProviderID, "speech_to_text", resp)
	}

	var decoded struct {
		Text     string `json:"text"`
		Language string `json:"language_code"`
		Words    []struct {
			Text  string  `json:"text"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return capability.SpeechToTextResult{}, fmt.Errorf("elevenlabs: decode response: %w", err)
	}

	result := capability.SpeechToTextResult{Text: decoded.Text, Language: decoded.Language}
	for _, w := range decoded.Words {
		result.Words = append(result.Words, capability.Word{Word: w.Text, Start: w.Start, End: w.End})
	}
	return result, nil
}

func httpStatusError(provider, operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	return llmerr.FromHTTPStatus(provider, operation, resp.StatusCode, strings.TrimSpace(string(body)), retryAfterSeconds(resp), nil)
}

func retryAfterSeconds(resp *http.Response) int {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return secs
}

type factory struct{}

// Factory is the package-level registry.Factory singleton, registered into
// registry.Default by the llmkit umbrella package.
var Factory registry.Factory = factory{}

func (factory) ProviderID() string  { return ProviderID }
func (factory) DisplayName() string { return "ElevenLabs" }

func (factory) SupportedCapabilities() []registry.CapabilityKind {
	return []registry.CapabilityKind{registry.CapabilityTTS, registry.CapabilityStreamingTTS, registry.CapabilitySTT}
}

func (factory) Validate(cfg llmconfig.Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("elevenlabs: api key is required")
	}
	return nil
}

func (factory) Defaults() llmconfig.Config {
	return llmconfig.Config{BaseURL: defaultBaseURL}
}

func (factory) Create(cfg llmconfig.Config) (registry.Provider, error) {
	voiceID, _ := cfg.ProviderOption(ProviderID, "voice_id")
	voice, _ := voiceID.(string)
	if voice == "" {
		voice = cfg.Model
	}
	client, err := New(http.DefaultClient, Options{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, DefaultVoice: voice})
	if err != nil {
		return registry.Provider{}, err
	}
	var tts capability.TextToSpeechCapability = client
	var streamingTTS capability.StreamingTextToSpeechCapability = client
	var stt capability.SpeechToTextCapability = client
	return registry.Provider{TTS: tts, StreamingTTS: streamingTTS, STT: stt}, nil
}
