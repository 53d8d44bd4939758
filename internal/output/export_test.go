package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSummary() models.BatchSummary {
	s := models.NewBatchSummary(2, 0)
	s.AddResult(models.CallResult{Operation: "healthAlerts", Method: "GET", Path: "/healthalerts", StatusCode: 200, Duration: 1500 * time.Microsecond})
	s.AddResult(models.CallResult{Operation: "getPlant", Method: "GET", Path: "/plants/7", StatusCode: 401, Kind: "authentication_failure", Error: "authentication_failure [getPlant] (HTTP 401)"})
	s.Finalize(time.Second)
	return s
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSummary(), FormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(2), decoded["total_calls"])
	assert.Equal(t, map[string]any{"authentication_failure": float64(1)}, decoded["failures_by_kind"])
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSummary(), FormatYAML))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["total_calls"])
	assert.Equal(t, 1, decoded["failed"])
}

func TestWriteRejectsCSV(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, map[string]any{}, FormatCSV))
}

func TestExportBatchSummaryCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, ExportBatchSummary(sampleSummary(), FormatCSV, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "operation", rows[0][0])
	assert.Equal(t, []string{"healthAlerts", "GET", "/healthalerts", "200", "1.50", "", ""}, rows[1])
	assert.Equal(t, "authentication_failure", rows[2][5])
}

func TestExportBatchSummaryJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, ExportBatchSummary(sampleSummary(), FormatJSON, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded models.BatchSummary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1, decoded.Succeeded)
	assert.Len(t, decoded.Results, 2)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("csv", FormatJSON, FormatYAML)
	assert.Error(t, err)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, "200:3, 404:1", StatusCodes(map[int]int{404: 1, 200: 3}))
	assert.Equal(t, "", StatusCodes(nil))
}
