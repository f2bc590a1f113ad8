package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func embeddingsHandler(t *testing.T, dimension int, reverse bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dimension)
			vec[0] = float32(i + 1)
			data[i] = item{Embedding: vec, Index: i}
		}
		if reverse {
			for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
				data[i], data[j] = data[j], data[i]
			}
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data":  data,
			"model": req.Model,
		})
	}
}

func TestRemoteProvider_GenerateBatch(t *testing.T) {
	srv := newTestServer(t, embeddingsHandler(t, 8, false))
	p := newRemoteProvider(ProviderOpenAI, srv.URL, "test-key", DefaultOpenAIModel, 8, nil)

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"a", "b", "c"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	assert.Equal(t, ProviderOpenAI, resp.Provider)
	assert.Equal(t, float32(1), resp.Embeddings[0].Vector[0])
	assert.Equal(t, float32(3), resp.Embeddings[2].Vector[0])
}

func TestRemoteProvider_ReordersByIndex(t *testing.T) {
	srv := newTestServer(t, embeddingsHandler(t, 4, true))
	p := newRemoteProvider(ProviderJina, srv.URL, "test-key", DefaultJinaModel, 4, nil)

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"x", "y", "z"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	for i := range resp.Embeddings {
		assert.Equal(t, float32(i+1), resp.Embeddings[i].Vector[0])
	}
}

func TestRemoteProvider_UsesCache(t *testing.T) {
	var calls int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		embeddingsHandler(t, 4, false)(w, r)
	})
	p := newRemoteProvider(ProviderOpenAI, srv.URL, "test-key", DefaultOpenAIModel, 4, NewCache(10))

	ctx := context.Background()
	first, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached text"})
	require.NoError(t, err)
	second, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached text"})
	require.NoError(t, err)

	assert.Equal(t, first.Vector, second.Vector)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemoteProvider_RetriesThenFails(t *testing.T) {
	var calls int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	p := newRemoteProvider(ProviderOpenAI, srv.URL, "test-key", DefaultOpenAIModel, 4, nil)

	_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(MaxRetries), atomic.LoadInt32(&calls))
}

func TestRemoteProvider_BatchTooLarge(t *testing.T) {
	p := newRemoteProvider(ProviderOpenAI, "http://unused", "test-key", DefaultOpenAIModel, 4, nil)

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestNewProviders_RequireAPIKey(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvJinaAPIKey, "")

	_, err := NewOpenAIProvider("", nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = NewJinaProvider("", nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}
