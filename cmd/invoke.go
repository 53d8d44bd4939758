package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/moamenhredeen/oascall/internal/apierr"
	"github.com/moamenhredeen/oascall/internal/output"
	"github.com/moamenhredeen/oascall/internal/schema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	invokeInput   string
	invokeSet     []string
	invokeHeaders []string
	invokeOutput  string
)

// invokeCmd represents the invoke command
var invokeCmd = &cobra.Command{
	Use:   "invoke [openapi-spec-file] [operation]",
	Short: "Call one operation",
	Long: `Call one operation with validated input.

Input is read from a JSON or YAML file (or stdin with --input -) and may be
completed with --set name=value. Values given to --set are read as JSON when
they parse, and as plain strings otherwise.

Examples:
  oascall invoke api-spec.json healthAlerts --set start_date=2024-01-01
  oascall invoke api-spec.json createItem --input item.yaml -H "X-Trace: 1"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindServerFlags(cmd)

		format, err := output.ParseFormat(invokeOutput, output.FormatJSON, output.FormatYAML)
		if err != nil {
			return err
		}

		reg, err := loadRegistry(args[0])
		if err != nil {
			return err
		}

		values, err := readInput(cmd.InOrStdin(), invokeInput, invokeSet, invokeHeaders)
		if err != nil {
			return err
		}

		iv, err := newInvoker(reg)
		if err != nil {
			return err
		}

		var s *spinner.Spinner
		if isTTY {
			s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			s.Suffix = " Calling " + args[1] + "..."
			s.Start()
		}

		result, err := reg.Invoke(cmd.Context(), iv, args[1], values)

		if s != nil {
			s.Stop()
		}

		if err != nil {
			printFailure(cmd.ErrOrStderr(), err)
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s %s -> %d (%v)\n",
			green("✓"), result.Method, result.Path, result.StatusCode, result.Duration.Round(time.Millisecond))

		return output.Write(cmd.OutOrStdout(), result, format)
	},
}

// readInput merges the input file, --set values and -H headers
func readInput(stdin io.Reader, file string, sets, headers []string) (map[string]any, error) {
	values := map[string]any{}

	if file != "" {
		var data []byte
		var err error
		if file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}

		// YAML is a superset of JSON
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to decode input: %w", err)
		}
		if values == nil {
			values = map[string]any{}
		}
	}

	for _, kv := range sets {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: want name=value", kv)
		}

		values[name] = parseValue(raw)
	}

	if len(headers) > 0 {
		extra, _ := values[schema.ExtraHeadersField].(map[string]any)
		if extra == nil {
			extra = map[string]any{}
		}
		for _, h := range headers {
			key, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("invalid header %q: want 'Name: value'", h)
			}
			extra[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		values[schema.ExtraHeadersField] = extra
	}

	return values, nil
}

// parseValue reads a --set value as JSON, keeping numbers as json.Number,
// and falls back to the raw text
func parseValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}

// printFailure explains a classified failure
func printFailure(w io.Writer, err error) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		return
	}

	fmt.Fprintf(w, "%s %s\n", red("✗"), apiErr.Kind)
	if apiErr.Detail != nil && verbose {
		_ = output.Write(w, apiErr.Detail, output.FormatJSON)
	}
	switch {
	case apiErr.NeedsReauth():
		fmt.Fprintln(w, yellow("  Refresh credentials before retrying"))
	case apiErr.Retryable():
		fmt.Fprintln(w, yellow("  The service may recover; retry with backoff"))
	}
}

func init() {
	rootCmd.AddCommand(invokeCmd)

	addServerFlags(invokeCmd)
	invokeCmd.Flags().StringVarP(&invokeInput, "input", "i", "", "Input file (JSON or YAML), - for stdin")
	invokeCmd.Flags().StringArrayVar(&invokeSet, "set", nil, "Set an input field (name=value)")
	invokeCmd.Flags().StringArrayVarP(&invokeHeaders, "header", "H", nil, "Extra request header (Name: value)")
	invokeCmd.Flags().StringVarP(&invokeOutput, "output", "o", "json", "Output format: json, yaml")
}
