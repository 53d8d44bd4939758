package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/moamenhredeen/oascall/internal/batch"
	"github.com/moamenhredeen/oascall/internal/generator"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/output"
	"github.com/moamenhredeen/oascall/internal/registry"
	"github.com/spf13/cobra"
)

var (
	batchCalls        string
	batchGenerate     bool
	batchRequiredOnly bool
	batchRepeat       int
	batchFilter       registry.Filter
	batchConcurrency  int
	batchRateLimit    float64
	batchOutputFormat string
	batchOutputFile   string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [openapi-spec-file]",
	Short: "Run many calls concurrently",
	Long: `Run many operation calls concurrently and summarize the outcomes.

Calls come from a JSON or YAML file holding a list of {operation, input}
entries, or are generated from the parameter metadata of every operation
matching the filters.

Examples:
  # Calls from a file, 4 workers, at most 10 calls per second
  oascall batch api-spec.json --calls calls.yaml -c 4 --rate 10

  # Generated calls for every GET tagged "Plants", exported as CSV
  oascall batch api-spec.json --generate --tag plants --method get -o csv --output-file out.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	bindServerFlags(cmd)

	if (batchCalls == "") == !batchGenerate {
		return fmt.Errorf("exactly one of --calls or --generate is required")
	}

	var format output.Format
	if batchOutputFormat != "" {
		var err error
		if format, err = output.ParseFormat(batchOutputFormat); err != nil {
			return err
		}
	}

	reg, err := loadRegistry(args[0])
	if err != nil {
		return err
	}

	var calls []batch.Call
	if batchGenerate {
		ops := reg.List(batchFilter)
		calls, err = batch.GenerateCalls(reg, ops, generator.NewGenerator(), batchRepeat, batchRequiredOnly)
	} else {
		calls, err = batch.LoadCalls(batchCalls)
	}
	if err != nil {
		return err
	}

	if len(calls) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No operations found matching the criteria")
		return nil
	}

	iv, err := newInvoker(reg)
	if err != nil {
		return err
	}

	config := batch.Config{
		Concurrency: batchConcurrency,
		RateLimit:   batchRateLimit,
		Timeout:     0, // the transport enforces --timeout
	}

	// Progress goes to stderr so stdout stays clean for exported results
	progress := cmd.ErrOrStderr()

	fmt.Fprintf(progress, "\n%s\n", white("=== Batch Configuration ==="))
	fmt.Fprintf(progress, "Calls:       %d\n", len(calls))
	fmt.Fprintf(progress, "Concurrency: %d\n", max(1, config.Concurrency))
	if config.RateLimit > 0 {
		fmt.Fprintf(progress, "Rate Limit:  %.0f req/sec\n", config.RateLimit)
	}
	fmt.Fprintln(progress)

	var s *spinner.Spinner
	if isTTY {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = fmt.Sprintf(" 0/%d", len(calls))
		s.Start()
	}

	var mu sync.Mutex
	onEvent := func(event batch.Event) {
		if event.Type != batch.EventCompleted {
			return
		}

		mu.Lock()
		defer mu.Unlock()

		if s != nil {
			s.Suffix = fmt.Sprintf(" %d/%d", event.Completed, event.Total)
		}

		if !verbose {
			return
		}

		if s != nil {
			s.Stop()
			defer s.Start()
		}

		r := event.Result
		prefix := fmt.Sprintf("[%d/%d]", event.Index+1, event.Total)
		if r.Succeeded() {
			fmt.Fprintf(progress, "%s %s %s %s -> %d\n", prefix, green("✓"), r.Method, r.Path, r.StatusCode)
		} else {
			fmt.Fprintf(progress, "%s %s %s: %s\n", prefix, red("✗"), r.Operation, red(r.Error))
		}
	}

	summary := batch.NewRunner(reg, iv, config, batch.WithLogger(log)).Run(cmd.Context(), calls, onEvent)

	if s != nil {
		s.Stop()
	}

	if format != "" {
		if err := output.ExportBatchSummary(summary, format, batchOutputFile); err != nil {
			return fmt.Errorf("failed to export results: %w", err)
		}
		if batchOutputFile != "" {
			fmt.Fprintf(progress, "\nResults exported to: %s\n", batchOutputFile)
			displayBatchSummary(progress, summary)
		}
	} else {
		displayBatchSummary(cmd.OutOrStdout(), summary)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d calls failed", summary.Failed, summary.TotalCalls)
	}
	return nil
}

func displayBatchSummary(w io.Writer, summary models.BatchSummary) {
	ms := func(d time.Duration) float64 {
		return float64(d.Microseconds()) / 1000
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", white("=== Batch Summary ==="))
	fmt.Fprintf(w, "Total Calls:    %d\n", summary.TotalCalls)
	fmt.Fprintf(w, "Succeeded:      %s\n", green(summary.Succeeded))
	fmt.Fprintf(w, "Total Duration: %v\n", summary.TotalDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "Throughput:     %s\n", cyan(fmt.Sprintf("%.1f req/sec", summary.RequestsPerSec)))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s\n", white("Latency:"))
	fmt.Fprintf(w, "  min=%.2fms | p50=%.2fms | p90=%.2fms | p99=%.2fms | max=%.2fms\n",
		ms(summary.MinTime), ms(summary.P50Time), ms(summary.P90Time), ms(summary.P99Time), ms(summary.MaxTime))
	if len(summary.StatusCodes) > 0 {
		fmt.Fprintf(w, "  Status codes: %s\n", output.StatusCodes(summary.StatusCodes))
	}
	fmt.Fprintln(w)

	if summary.Failed == 0 {
		fmt.Fprintf(w, "Errors: %s\n", green("0"))
		return
	}

	fmt.Fprintf(w, "%s\n", white("Error Summary:"))
	fmt.Fprintf(w, "  Failed:     %s\n", red(summary.Failed))
	fmt.Fprintf(w, "  Error Rate: %s\n", red(fmt.Sprintf("%.2f%%", summary.ErrorRate)))
	for kind, count := range summary.FailuresByKind {
		fmt.Fprintf(w, "  %-32s %d\n", kind, count)
	}
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addServerFlags(batchCmd)

	batchCmd.Flags().StringVar(&batchCalls, "calls", "", "Calls file (JSON or YAML)")
	batchCmd.Flags().BoolVar(&batchGenerate, "generate", false, "Generate calls from parameter metadata")
	batchCmd.Flags().BoolVar(&batchRequiredOnly, "required-only", false, "Generate only required fields")
	batchCmd.Flags().IntVarP(&batchRepeat, "iterations", "n", 1, "Generated calls per operation")

	batchCmd.Flags().StringVar(&batchFilter.Keyword, "keyword", "", "Match name or description (case-insensitive)")
	batchCmd.Flags().StringVar(&batchFilter.Tag, "tag", "", "Match a tag (case-insensitive)")
	batchCmd.Flags().StringVar(&batchFilter.Method, "method", "", "Match the HTTP method")

	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 1, "Number of concurrent calls")
	batchCmd.Flags().Float64VarP(&batchRateLimit, "rate", "r", 0, "Max calls per second (0 = unlimited)")

	batchCmd.Flags().StringVarP(&batchOutputFormat, "output", "o", "", "Output format: json, yaml, csv")
	batchCmd.Flags().StringVar(&batchOutputFile, "output-file", "", "Write output to file (default: stdout)")
}
