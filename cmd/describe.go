package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/moamenhredeen/oascall/internal/generator"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/output"
	"github.com/moamenhredeen/oascall/internal/schema"
	"github.com/spf13/cobra"
)

var (
	describeExample bool
	describeOutput  string
)

type description struct {
	Operation models.Operation    `json:"operation" yaml:"operation"`
	Input     *schema.InputSchema `json:"input_schema" yaml:"input_schema"`
	Example   map[string]any      `json:"example,omitempty" yaml:"example,omitempty"`
}

// describeCmd represents the describe command
var describeCmd = &cobra.Command{
	Use:   "describe [openapi-spec-file] [operation]",
	Short: "Show an operation and its input schema",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(args[0])
		if err != nil {
			return err
		}

		op, err := reg.Get(args[1])
		if err != nil {
			return err
		}
		s, err := reg.Schema(op.Name)
		if err != nil {
			return err
		}

		d := description{Operation: op, Input: s}
		if describeExample {
			d.Example = generator.NewGenerator().Sample(s, false)
		}

		if describeOutput != "" {
			format, err := output.ParseFormat(describeOutput, output.FormatJSON, output.FormatYAML)
			if err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), d, format)
		}

		printDescription(cmd.OutOrStdout(), d)
		return nil
	},
}

func printDescription(w io.Writer, d description) {
	op := d.Operation

	fmt.Fprintf(w, "%s\n", white(op.Name))
	fmt.Fprintf(w, "  %s %s\n", cyan(op.Method), op.Path)
	if len(op.Tags) > 0 {
		fmt.Fprintf(w, "  Tags: %s\n", strings.Join(op.Tags, " > "))
	}
	if op.Description != "" {
		fmt.Fprintf(w, "  %s\n", op.Description)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s\n", white("Input ("+d.Input.Name+"):"))
	for _, f := range d.Input.Fields {
		req := yellow("optional")
		if f.Required {
			req = red("required")
		}

		where := string(f.Role)
		if f.Parameter != nil {
			where = string(f.Parameter.In)
		}

		fmt.Fprintf(w, "  %-24s %-8s %-8s %s", f.Name, f.Type, where, req)
		if f.Parameter != nil && f.Parameter.Name != f.Name {
			fmt.Fprintf(w, " (sent as %s)", f.Parameter.Name)
		}
		fmt.Fprintln(w)

		if f.Description != "" {
			fmt.Fprintf(w, "      %s\n", f.Description)
		}
		if f.Parameter != nil && len(f.Parameter.Enum) > 0 {
			fmt.Fprintf(w, "      one of: %s\n", strings.Join(f.Parameter.Enum, ", "))
		}
	}

	if d.Example != nil {
		fmt.Fprintf(w, "\n%s\n", white("Example input:"))
		_ = output.Write(w, d.Example, output.FormatJSON)
	}
}

func init() {
	rootCmd.AddCommand(describeCmd)

	describeCmd.Flags().BoolVar(&describeExample, "example", false, "Include a generated example input")
	describeCmd.Flags().StringVarP(&describeOutput, "output", "o", "", "Output format: json, yaml")
}
