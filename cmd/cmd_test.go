package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moamenhredeen/oascall/internal/registry"
	"github.com/moamenhredeen/oascall/internal/schema"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		viper.Reset()
		invokeSet, invokeHeaders, invokeInput = nil, nil, ""
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.yaml")
	require.NoError(t, os.WriteFile(path, []byte("start_date: \"2024-01-01\"\npage: 1\n"), 0o644))

	values, err := readInput(nil, path, []string{"page=2", "asset_type=Wind", `ids=[1,2]`}, []string{"X-Trace: abc"})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", values["start_date"])
	assert.Equal(t, json.Number("2"), values["page"], "--set wins over the file")
	assert.Equal(t, "Wind", values["asset_type"])
	assert.Equal(t, []any{json.Number("1"), json.Number("2")}, values["ids"])
	assert.Equal(t, map[string]any{"X-Trace": "abc"}, values[schema.ExtraHeadersField])
}

func TestReadInputFromStdin(t *testing.T) {
	values, err := readInput(strings.NewReader(`{"plantId": 7}`), "-", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, values["plantId"])
}

func TestReadInputRejectsMalformedFlags(t *testing.T) {
	_, err := readInput(nil, "", []string{"novalue"}, nil)
	assert.Error(t, err)

	_, err = readInput(nil, "", nil, []string{"no-colon"})
	assert.Error(t, err)
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, "list", "testdata/plants-api.json", "--tag", "plants", "-o", "json")
	require.NoError(t, err)

	var ops []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &ops))
	require.Len(t, ops, 2)
	assert.Equal(t, "getPlant", ops[0]["name"])
}

func TestDescribeUnknownOperation(t *testing.T) {
	_, err := execute(t, "describe", "testdata/plants-api.json", "nope")
	assert.Error(t, err)
}

func TestInvokeCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthalerts", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start_date"))
		_, _ = w.Write([]byte(`{"alerts":[]}`))
	}))
	defer server.Close()

	out, err := execute(t, "invoke", "testdata/plants-api.json", "healthAlerts",
		"--server", server.URL, "--set", "start_date=2024-01-01")
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, float64(200), result["status_code"])
	assert.Equal(t, map[string]any{"alerts": []any{}}, result["data"])
}

func TestReadInputKeepsLargeIntegers(t *testing.T) {
	values, err := readInput(nil, "", []string{"id=9007199254740993", "start=2024-01-01", "pair=1 2"}, nil)
	require.NoError(t, err)

	assert.Equal(t, json.Number("9007199254740993"), values["id"])
	assert.Equal(t, "2024-01-01", values["start"])
	assert.Equal(t, "1 2", values["pair"])
}

func TestInvokeNumericTextForStringPathParameter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/companies/123/projects/456/items", r.URL.Path)
	}))
	defer server.Close()

	_, err := execute(t, "invoke", "testdata/plants-api.json", "put_companies_company_id_projects_project_id_items",
		"--server", server.URL, "--set", "company_id=123", "--set", "project_id=456")
	require.NoError(t, err)
}

func TestInvokeLargeIntegerRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/plants/9007199254740993", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":9007199254740993}`))
	}))
	defer server.Close()

	out, err := execute(t, "invoke", "testdata/plants-api.json", "getPlant",
		"--server", server.URL, "--set", "plantId=9007199254740993", "--set", "X-Tenant=acme")
	require.NoError(t, err)

	dec := json.NewDecoder(strings.NewReader(out))
	dec.UseNumber()
	var result map[string]any
	require.NoError(t, dec.Decode(&result))
	assert.Equal(t, map[string]any{"id": json.Number("9007199254740993")}, result["data"])
}

func TestNewInvokerUsesBasicAuth(t *testing.T) {
	t.Cleanup(viper.Reset)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", pass)
	}))
	defer server.Close()

	viper.Set("server", server.URL)
	viper.Set("username", "alice")
	viper.Set("password", "secret")

	reg, err := loadRegistry("testdata/plants-api.json")
	require.NoError(t, err)
	iv, err := newInvoker(reg)
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), iv, "healthAlerts", map[string]any{"start_date": "2024-01-01"})
	require.NoError(t, err)
}

func TestNewInvokerRelativeServerSuggestsFlag(t *testing.T) {
	t.Cleanup(viper.Reset)

	reg := registry.New(registry.FromBytes([]byte(`{
		"openapi": "3.0.3",
		"info": {"title": "Relative", "version": "1.0.0"},
		"servers": [{"url": "/api/v3"}],
		"paths": {}
	}`)), registry.WithLogger(log))
	require.NoError(t, reg.Load())

	_, err := newInvoker(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/api/v3")
	assert.Contains(t, err.Error(), "--server")
}
