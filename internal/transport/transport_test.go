package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/just/a/path")
	assert.Error(t, err)

	_, err = New("://bad")
	assert.Error(t, err)
}

func TestDoSendsRequest(t *testing.T) {
	var got *http.Request
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	client, err := New(server.URL+"/v2/", WithAPIKey("", "secret"))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/items",
		Query:  url.Values{"page": {"2"}},
		Header: http.Header{"X-Tenant": {"acme"}},
		Body:   map[string]any{"name": "bolt"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"id":1}`, string(resp.Body))

	assert.Equal(t, "/v2/items", got.URL.Path)
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "acme", got.Header.Get("X-Tenant"))
	assert.Equal(t, "secret", got.Header.Get(DefaultAPIKeyHeader))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "oascall/1.0", got.Header.Get("User-Agent"))
	assert.Equal(t, map[string]any{"name": "bolt"}, gotBody)
}

func TestDoAuthentication(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client, err := New(server.URL, WithBearer("tok"))
	require.NoError(t, err)
	_, err = client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)

	client, err = New(server.URL, WithBasicAuth("user", "pass"))
	require.NoError(t, err)
	_, err = client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, "Basic dXNlcjpwYXNz", auth)
}

func TestDoRequestHeadersOverrideDefaults(t *testing.T) {
	var accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
	}))
	defer server.Close()

	client, err := New(server.URL)
	require.NoError(t, err)

	_, err = client.Do(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "/",
		Header: http.Header{"Accept": {"text/csv"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", accept)
}

func TestDoHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client, err := New(server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Do(ctx, &Request{Method: http.MethodGet, Path: "/slow"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoConcurrentUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Query().Get("n")))
	}))
	defer server.Close()

	client, err := New(server.URL)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q := url.Values{}
			q.Set("n", string(rune('a'+n)))
			resp, err := client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/", Query: q})
			if assert.NoError(t, err) {
				assert.Equal(t, string(rune('a'+n)), string(resp.Body))
			}
		}(i)
	}
	wg.Wait()
}

func TestFunc(t *testing.T) {
	var tr Transport = Func(func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{StatusCode: http.StatusTeapot}, nil
	})
	resp, err := tr.Do(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}
