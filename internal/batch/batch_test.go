package batch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/moamenhredeen/oascall/internal/apierr"
	"github.com/moamenhredeen/oascall/internal/generator"
	"github.com/moamenhredeen/oascall/internal/invoke"
	"github.com/moamenhredeen/oascall/internal/registry"
	"github.com/moamenhredeen/oascall/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setup(t *testing.T, handler http.HandlerFunc) (*registry.Registry, *invoke.Invoker) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := transport.New(server.URL)
	require.NoError(t, err)

	log := quietLogger()
	reg := registry.New(registry.FromFile("testdata/plants-api.json"), registry.WithLogger(log))
	require.NoError(t, reg.Load())

	return reg, invoke.New(client, invoke.WithLogger(log))
}

func TestRunSummarizesOutcomes(t *testing.T) {
	reg, iv := setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/plants/7" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	calls := []Call{
		{Operation: "healthAlerts", Input: map[string]any{"start_date": "2024-01-01"}},
		{Operation: "getPlant", Input: map[string]any{"plantId": 7, "X-Tenant": "acme"}},
		{Operation: "nope"},
		{Operation: "healthAlerts", Input: map[string]any{}},
		{Operation: "deletePlant", Input: map[string]any{"plantId": 3}},
	}

	runner := NewRunner(reg, iv, Config{Concurrency: 3}, WithLogger(quietLogger()))
	summary := runner.Run(context.Background(), calls, nil)

	assert.Equal(t, 5, summary.TotalCalls)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 3, summary.Failed)
	assert.InDelta(t, 60.0, summary.ErrorRate, 0.001)
	assert.Equal(t, map[string]int{
		string(apierr.KindAuthentication):    1,
		string(apierr.KindOperationNotFound): 1,
		string(apierr.KindInvalidInput):      1,
	}, summary.FailuresByKind)
	assert.Equal(t, map[int]int{200: 2, 401: 1}, summary.StatusCodes)

	require.Len(t, summary.Results, 5)
	assert.Equal(t, "healthAlerts", summary.Results[0].Operation)
	assert.Equal(t, "/plants/3", summary.Results[4].Path)
	assert.Equal(t, "DELETE", summary.Results[4].Method)
	assert.True(t, summary.MaxTime >= summary.MinTime)
}

func TestRunReportsEvents(t *testing.T) {
	reg, iv := setup(t, func(w http.ResponseWriter, r *http.Request) {})

	calls := []Call{
		{Operation: "deletePlant", Input: map[string]any{"plantId": 1}},
		{Operation: "deletePlant", Input: map[string]any{"plantId": 2}},
		{Operation: "deletePlant", Input: map[string]any{"plantId": 3}},
	}

	var mu sync.Mutex
	started, completed := 0, 0
	onEvent := func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Type {
		case EventStarting:
			started++
			assert.Nil(t, e.Result)
		case EventCompleted:
			completed++
			assert.NotNil(t, e.Result)
			assert.Equal(t, 3, e.Total)
		}
	}

	NewRunner(reg, iv, Config{Concurrency: 2, RateLimit: 1000}, WithLogger(quietLogger())).
		Run(context.Background(), calls, onEvent)

	assert.Equal(t, 3, started)
	assert.Equal(t, 3, completed)
}

func TestRunCancelled(t *testing.T) {
	reg, iv := setup(t, func(w http.ResponseWriter, r *http.Request) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := NewRunner(reg, iv, DefaultConfig(), WithLogger(quietLogger())).
		Run(ctx, []Call{{Operation: "deletePlant", Input: map[string]any{"plantId": 1}}}, nil)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.FailuresByKind[string(apierr.KindUnclassified)])
}

func TestLoadCalls(t *testing.T) {
	calls, err := LoadCalls("testdata/calls.yaml")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "healthAlerts", calls[0].Operation)
	assert.Equal(t, "Wind", calls[0].Input["asset_type"])
	assert.Equal(t, 7, calls[1].Input["plantId"])

	calls, err = LoadCalls("testdata/calls.json")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "deletePlant", calls[1].Operation)
	assert.Equal(t, json.Number("3"), calls[1].Input["plantId"])
}

func TestLoadCallsRequiresOperation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"input":{}}]`), 0o644))

	_, err := LoadCalls(path)
	assert.Error(t, err)
}

func TestGenerateCalls(t *testing.T) {
	reg, iv := setup(t, func(w http.ResponseWriter, r *http.Request) {})

	ops := reg.List(registry.Filter{Tag: "plants"})
	calls, err := GenerateCalls(reg, ops, generator.NewSeeded(1), 2, false)
	require.NoError(t, err)
	require.Len(t, calls, 4)
	assert.Equal(t, "getPlant", calls[0].Operation)
	assert.Equal(t, 42, calls[0].Input["plantId"])

	summary := NewRunner(reg, iv, Config{Concurrency: 2}, WithLogger(quietLogger())).
		Run(context.Background(), calls, nil)
	assert.Equal(t, 4, summary.Succeeded, "generated inputs bind and dispatch")
}
