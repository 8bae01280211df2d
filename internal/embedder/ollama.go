// internal/embedder/ollama.go
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MereWhiplash/pubembed/internal/types"
)

// DefaultModel is the Ollama model used when none is configured
const DefaultModel = "nomic-embed-text"

// Ollama implements Embedder using Ollama API
type Ollama struct {
	baseURL string
	model   string
	http    *http.Client
	pull    *http.Client
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewOllama creates a new Ollama embedder. A zero timeout disables the
// per-request deadline for embedding calls.
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if model == "" {
		model = DefaultModel
	}
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http: &http.Client{
			Timeout: timeout,
		},
		// pulls can take minutes on a cold cache, the context bounds them
		pull: &http.Client{},
	}
}

// Model returns the configured model name
func (o *Ollama) Model() string {
	return o.model
}

func (o *Ollama) post(ctx context.Context, client *http.Client, path string, body interface{}) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// Embed calls /api/embed and returns the first vector of the response
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.post(ctx, o.http, "/api/embed", embedRequest{Model: o.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrGeneration, err)
	}
	defer resp.Body.Close()

	var embResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", types.ErrGeneration, err)
	}

	if len(embResp.Embeddings) == 0 || len(embResp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: ollama returned no embedding", types.ErrGeneration)
	}

	return embResp.Embeddings[0], nil
}

// EnsureModel pulls the model if Ollama does not have it yet. Pulling a model
// that is already present is a cheap no-op on the Ollama side.
func (o *Ollama) EnsureModel(ctx context.Context) error {
	resp, err := o.post(ctx, o.pull, "/api/pull", pullRequest{Model: o.model, Stream: false})
	if err != nil {
		return fmt.Errorf("%w: failed to pull model %s: %w", types.ErrGeneration, o.model, err)
	}
	defer resp.Body.Close()

	var pullResp pullResponse
	if err := json.NewDecoder(resp.Body).Decode(&pullResp); err != nil {
		return fmt.Errorf("%w: failed to decode pull response: %w", types.ErrGeneration, err)
	}
	if pullResp.Error != "" {
		return fmt.Errorf("%w: failed to pull model %s: %s", types.ErrGeneration, o.model, pullResp.Error)
	}
	if pullResp.Status != "success" {
		return fmt.Errorf("%w: unexpected pull status %q for model %s", types.ErrGeneration, pullResp.Status, o.model)
	}
	return nil
}
