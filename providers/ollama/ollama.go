// Package ollama wires providers/compat to Ollama's OpenAI-compatible Chat
// Completions endpoint, and additionally exposes Ollama's native
// model-management endpoints (pull, list) as optional methods outside the
// capability.ChatCapability contract — the local-runtime admin surface
// SPEC_FULL.md calls out as supplemental, not part of the core contract.
package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/providers/compat"
	"github.com/cortexflow/llmkit/registry"
)

// ProviderID is the registry key for this adapter.
const ProviderID = "ollama"

var variant = compat.Variant{
	ProviderID:     ProviderID,
	DisplayName:    "Ollama",
	DefaultBaseURL: "http://localhost:11434/v1",
	DefaultModel:   "llama3.2",
	RequiresAPIKey: false,
}

// HTTPDoer is the minimal HTTP transport this adapter's admin endpoints
// need. Satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps a compat chat client together with Ollama's native
// model-management endpoints.
type Client struct {
	*compat.Client
	http    HTTPDoer
	baseURL string
}

// New builds a Client. baseURL is the Ollama server root (e.g.
// "http://localhost:11434"), distinct from the OpenAI-compatible
// "<root>/v1" path the embedded compat.Client talks to.
func New(chat *compat.Client, httpDoer HTTPDoer, baseURL string) (*Client, error) {
	if chat == nil {
		return nil, fmt.Errorf("ollama: chat client is required")
	}
	if httpDoer == nil {
		httpDoer = http.DefaultClient
	}
	return &Client{Client: chat, http: httpDoer, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// PullModelProgress reports one line of Ollama's newline-delimited JSON
// pull progress stream.
type PullModelProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// PullModel downloads a model, invoking progress for each status line
// Ollama's /api/pull endpoint streams back.
func (c *Client) PullModel(ctx context.Context, model string, progress func(PullModelProgress)) error {
	body, err := json.Marshal(map[string]any{"name": model, "stream": true})
	if err != nil {
		return fmt.Errorf("ollama: encode pull request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("ollama: build pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: pull request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: pull request returned HTTP %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var p PullModelProgress
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			continue
		}
		if progress != nil {
			progress(p)
		}
	}
	return scanner.Err()
}

// ModelInfo describes one locally-available model, as returned by
// Ollama's /api/tags endpoint.
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// ListModels returns the models currently pulled on the Ollama server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: build list request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: list request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: list request returned HTTP %d", resp.StatusCode)
	}
	var decoded struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("ollama: decode list response: %w", err)
	}
	return decoded.Models, nil
}

type factory struct{}

// Factory is the package-level registry.Factory singleton, registered into
// registry.Default by the llmkit umbrella package.
var Factory registry.Factory = factory{}

func (factory) ProviderID() string  { return ProviderID }
func (factory) DisplayName() string { return variant.DisplayName }

func (factory) SupportedCapabilities() []registry.CapabilityKind {
	return []registry.CapabilityKind{registry.CapabilityChat}
}

// Validate requires only a model: Ollama is a local runtime with no
// API-key concept.
func (factory) Validate(cfg llmconfig.Config) error {
	if cfg.Model == "" {
		return fmt.Errorf("ollama: model is required")
	}
	return nil
}

func (factory) Defaults() llmconfig.Config {
	return llmconfig.Config{BaseURL: variant.DefaultBaseURL, Model: variant.DefaultModel}
}

func (factory) Create(cfg llmconfig.Config) (registry.Provider, error) {
	chatClient, err := compat.NewFromAPIKey(variant, cfg.APIKey, cfg.BaseURL, cfg.Model)
	if err != nil {
		return registry.Provider{}, err
	}
	rootURL := strings.TrimSuffix(cfg.BaseURL, "/v1")
	if rootURL == "" {
		rootURL = strings.TrimSuffix(variant.DefaultBaseURL, "/v1")
	}
	client, err := New(chatClient, http.DefaultClient, rootURL)
	if err != nil {
		return registry.Provider{}, err
	}
	var chat capability.ChatCapability = client
	return registry.Provider{Chat: chat}, nil
}
