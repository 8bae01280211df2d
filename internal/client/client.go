// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MereWhiplash/pubembed/internal/api"
	"github.com/MereWhiplash/pubembed/internal/types"
)

// Client is an HTTP client for the embedding API.
// It satisfies embedder.Embedder, so a remote API can stand in for Ollama.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a new API client
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.http.Do(req)
}

func decodeDetail(resp *http.Response) string {
	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Detail == "" {
		return resp.Status
	}
	return errResp.Detail
}

// Ping checks that the API answers
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/ping", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error: %s", decodeDetail(resp))
	}

	var pong string
	if err := json.NewDecoder(resp.Body).Decode(&pong); err != nil {
		return fmt.Errorf("failed to decode ping response: %w", err)
	}
	if pong != "pong!" {
		return fmt.Errorf("unexpected ping response %q", pong)
	}
	return nil
}

// Embed asks the API for the embedding of text.
// A 422 comes back as a *types.ValidationError, anything else as ErrGeneration.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/embed", api.EmbedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrGeneration, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		return nil, &types.ValidationError{Message: decodeDetail(resp)}
	default:
		return nil, fmt.Errorf("%w: API error %d: %s", types.ErrGeneration, resp.StatusCode, decodeDetail(resp))
	}

	var result api.EmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", types.ErrGeneration, err)
	}
	return result.Embedding, nil
}

// EnsureModel checks that the API is up; the server owns the model
func (c *Client) EnsureModel(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", types.ErrGeneration, err)
	}
	return nil
}
