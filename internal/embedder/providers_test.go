package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	calls := new(int)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		*calls++
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Prompt)

		vec := []float32{float32(len(req.Prompt)), 1, 2}
		require.NoError(t, json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec}))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestOllamaProvider_Embed(t *testing.T) {
	srv, calls := newOllamaServer(t)
	ctx := context.Background()

	o := NewOllamaProvider(srv.URL, "test-model", nil)
	require.NoError(t, o.Load(ctx))

	vectors, err := o.Embed(ctx, []string{"ab", "abcd"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{2, 1, 2}, vectors[0])
	assert.Equal(t, []float32{4, 1, 2}, vectors[1])
	assert.Equal(t, 2, *calls)
	assert.Equal(t, 3, o.Dimension())
}

func TestOllamaProvider_CacheSkipsAPICall(t *testing.T) {
	srv, calls := newOllamaServer(t)
	ctx := context.Background()

	o := NewOllamaProvider(srv.URL, "test-model", NewCache(10))
	require.NoError(t, o.Load(ctx))

	_, err := o.EmbedSingle(ctx, "same text")
	require.NoError(t, err)
	_, err = o.EmbedSingle(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, 1, *calls)
}

func TestOllamaProvider_EmbedBeforeLoad(t *testing.T) {
	o := NewOllamaProvider("http://localhost:1", "m", nil)
	_, err := o.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestOllamaProvider_LoadFailsWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOllamaProvider(srv.URL, "m", nil)
	assert.ErrorIs(t, o.Load(context.Background()), ErrProviderFailed)
}

func newOpenAIServer(t *testing.T, reorder bool) (*httptest.Server, *int) {
	t.Helper()
	calls := new(int)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

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
		for i, text := range req.Input {
			data[i] = item{Embedding: []float32{float32(len(text)), 0}, Index: i}
		}
		if reorder && len(data) > 1 {
			data[0], data[1] = data[1], data[0]
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{"data": data}))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestOpenAIProvider_Embed(t *testing.T) {
	srv, calls := newOpenAIServer(t, false)
	ctx := context.Background()

	o, err := NewOpenAIProvider(srv.URL+"/v1", "sk-test", "test-model", nil)
	require.NoError(t, err)
	require.NoError(t, o.Load(ctx))

	vectors, err := o.Embed(ctx, []string{"a", "abc"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{3, 0}, vectors[1])
	assert.Equal(t, 1, *calls, "one sub-batch for a small input")
}

func TestOpenAIProvider_ReordersByIndexField(t *testing.T) {
	srv, _ := newOpenAIServer(t, true)
	ctx := context.Background()

	o, err := NewOpenAIProvider(srv.URL+"/v1", "sk-test", "", nil)
	require.NoError(t, err)
	require.NoError(t, o.Load(ctx))

	vectors, err := o.Embed(ctx, []string{"a", "abc"})

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{3, 0}, vectors[1])
}

func TestOpenAIProvider_EmbedSingleUsesCache(t *testing.T) {
	srv, calls := newOpenAIServer(t, false)
	ctx := context.Background()

	o, err := NewOpenAIProvider(srv.URL+"/v1", "sk-test", "", NewCache(10))
	require.NoError(t, err)
	require.NoError(t, o.Load(ctx))

	_, err = o.EmbedSingle(ctx, "query")
	require.NoError(t, err)
	_, err = o.EmbedSingle(ctx, "query")
	require.NoError(t, err)

	assert.Equal(t, 1, *calls)
}

func TestOpenAIProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider("", "", "", nil)
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	got, err := retry(context.Background(), func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	_, err := retry(context.Background(), func() (int, error) {
		attempts++
		return 0, errors.New("permanent")
	})

	assert.Error(t, err)
	assert.Equal(t, maxRetries, attempts)
}

func TestRetry_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := retry(ctx, func() (int, error) {
		attempts++
		return 0, errors.New("transient")
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, attempts, 1)
}
