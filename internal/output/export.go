package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
	"gopkg.in/yaml.v3"
)

// Format represents the output format type
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// Write encodes v as JSON or YAML
func Write(w io.Writer, v any, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportBatchSummary exports batch results to the specified format
func ExportBatchSummary(summary models.BatchSummary, format Format, filePath string) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	if format == FormatCSV {
		return exportBatchCSV(w, summary)
	}
	return Write(w, summary, format)
}

// getWriter returns an io.Writer for output (stdout or file)
func getWriter(filePath string) (io.Writer, io.Closer, error) {
	if filePath == "" {
		return os.Stdout, nil, nil
	}

	f, err := os.Create(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f, nil
}

// exportBatchCSV writes one row per call
func exportBatchCSV(w io.Writer, summary models.BatchSummary) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"operation", "method", "path", "status_code", "duration_ms", "kind", "error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range summary.Results {
		row := []string{
			r.Operation,
			r.Method,
			r.Path,
			strconv.Itoa(r.StatusCode),
			fmt.Sprintf("%.2f", float64(r.Duration.Microseconds())/1000),
			r.Kind,
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// StatusCodes renders a status histogram as "200:3, 404:1"
func StatusCodes(codes map[int]int) string {
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(keys))
	for _, code := range keys {
		parts = append(parts, fmt.Sprintf("%d:%d", code, codes[code]))
	}
	return strings.Join(parts, ", ")
}

// ParseFormat parses a string into a Format, returning error if invalid.
// allowed restricts the accepted formats; when empty every format is accepted.
func ParseFormat(s string, allowed ...Format) (Format, error) {
	if len(allowed) == 0 {
		allowed = []Format{FormatJSON, FormatYAML, FormatCSV}
	}

	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "yml" {
		f = FormatYAML
	}

	names := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
		names = append(names, "'"+string(a)+"'")
	}

	return "", fmt.Errorf("invalid format '%s': must be one of %s", s, strings.Join(names, ", "))
}
