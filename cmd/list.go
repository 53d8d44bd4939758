package cmd

import (
	"fmt"
	"strings"

	"github.com/moamenhredeen/oascall/internal/output"
	"github.com/moamenhredeen/oascall/internal/registry"
	"github.com/spf13/cobra"
)

var (
	listFilter registry.Filter
	listOutput string
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [openapi-spec-file]",
	Short: "List the operations of a specification",
	Long: `List the operations of a specification, optionally filtered.

Examples:
  # Every operation
  oascall list api-spec.json

  # Operations tagged "Plants" whose name or description mentions "alert"
  oascall list api-spec.json --tag plants --keyword alert`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(args[0])
		if err != nil {
			return err
		}

		operations := reg.List(listFilter)

		if listOutput != "" {
			format, err := output.ParseFormat(listOutput, output.FormatJSON, output.FormatYAML)
			if err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), operations, format)
		}

		if len(operations) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No operations found matching the criteria")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-40s %-8s %-50s %s\n", "NAME", "METHOD", "PATH", "TAGS")
		fmt.Fprintln(out, strings.Repeat("-", 110))
		for _, op := range operations {
			fmt.Fprintf(out, "%s %-8s %-50s %s\n",
				cyan(fmt.Sprintf("%-40s", op.Name)), op.Method, op.Path, strings.Join(op.Tags, " > "))
		}
		fmt.Fprintf(out, "\n%d of %d operations\n", len(operations), reg.Len())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listFilter.Keyword, "keyword", "", "Match name or description (case-insensitive)")
	listCmd.Flags().StringVar(&listFilter.Tag, "tag", "", "Match a tag (case-insensitive)")
	listCmd.Flags().StringVar(&listFilter.Method, "method", "", "Match the HTTP method")
	listCmd.Flags().IntVar(&listFilter.Limit, "limit", 0, "Maximum number of operations (0 = all)")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "", "Output format: json, yaml")
}
