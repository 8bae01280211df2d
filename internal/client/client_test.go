package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/pubembed/internal/api"
	"github.com/MereWhiplash/pubembed/internal/client"
	"github.com/MereWhiplash/pubembed/internal/embedder"
	"github.com/MereWhiplash/pubembed/internal/service"
	"github.com/MereWhiplash/pubembed/internal/types"
)

var _ embedder.Embedder = (*client.Client)(nil)

type fixedEmbedder struct {
	vector []float32
	err    error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

// newAPIServer runs the real router in front of a fixed embedder
func newAPIServer(t *testing.T, emb *fixedEmbedder) *httptest.Server {
	t.Helper()
	h := api.NewRouter(api.NewHandlers(service.New(emb), nil), nil, api.RouterConfig{})
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return server
}

func TestClient_Embed(t *testing.T) {
	server := newAPIServer(t, &fixedEmbedder{vector: []float32{0.25, 0.5}})

	c := client.New(server.URL+"/", 5*time.Second)
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.5}, vec)
}

func TestClient_Embed_Validation(t *testing.T) {
	server := newAPIServer(t, &fixedEmbedder{vector: []float32{1}})

	c := client.New(server.URL, 5*time.Second)
	_, err := c.Embed(context.Background(), "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, "text must not be empty", err.Error())
}

func TestClient_Embed_ServerError(t *testing.T) {
	server := newAPIServer(t, &fixedEmbedder{err: errors.New("model exploded")})

	c := client.New(server.URL, 5*time.Second)
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrGeneration)
	assert.Contains(t, err.Error(), "model exploded")
}

func TestClient_Embed_Unreachable(t *testing.T) {
	c := client.New("http://127.0.0.1:1", time.Second)
	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, types.ErrGeneration)
}

func TestClient_Embed_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := client.New(server.URL, time.Second)
	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, types.ErrGeneration)
}

func TestClient_Ping(t *testing.T) {
	server := newAPIServer(t, &fixedEmbedder{})

	c := client.New(server.URL, time.Second)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestClient_Ping_Unexpected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode("pong")
	}))
	defer server.Close()

	c := client.New(server.URL, time.Second)
	assert.Error(t, c.Ping(context.Background()))
}

func TestClient_Ping_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := client.New(server.URL, time.Second)
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

var _ embedder.ModelPreparer = (*client.Client)(nil)

func TestClient_EnsureModel(t *testing.T) {
	server := newAPIServer(t, &fixedEmbedder{})

	c := client.New(server.URL, time.Second)
	assert.NoError(t, c.EnsureModel(context.Background()))
}

func TestClient_EnsureModel_Down(t *testing.T) {
	c := client.New("http://127.0.0.1:1", time.Second)
	err := c.EnsureModel(context.Background())
	assert.ErrorIs(t, err, types.ErrGeneration)
}
