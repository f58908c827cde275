package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/reshape/internal/cli/ui"
	"github.com/conduit-lang/reshape/pkg/reshape"
)

// NewConvertCommand creates the convert command
func NewConvertCommand() *cobra.Command {
	var (
		outputPath string
		policy     string
		trace      bool
		pretty     bool
		report     bool
	)

	cmd := &cobra.Command{
		Use:   "convert RULES [INPUT]",
		Short: "Convert one payload with a rules file",
		Long: `Convert a single payload using a rules file.

The payload is decoded with the document's inputFormat, the rules are applied,
and the output is encoded with the document's outputFormat. Reads stdin when
INPUT is omitted or "-". Diagnostics go to stderr; the command fails when any
error was reported.

Examples:
  reshape convert rules.yaml order.json
  cat order.xml | reshape convert rules.json
  reshape convert rules.json order.json --trace
  reshape convert rules.json order.json --report > result.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			doc, err := s.loadRules(args[0])
			if err != nil {
				return err
			}
			inputPath := ""
			if len(args) > 1 {
				inputPath = args[1]
			}
			text, err := readInput(cmd, inputPath)
			if err != nil {
				return err
			}

			opts, err := s.options(policy, trace)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("pretty") {
				opts.Pretty = pretty
			}

			out, res := reshape.ConvertPayload(string(text), doc, opts)
			if report {
				if err := writeJSON(cmd, res); err != nil {
					return err
				}
			} else {
				if out != "" {
					if err := writeOutput(cmd, outputPath, out); err != nil {
						return err
					}
				}
				if len(res.Diagnostics) > 0 {
					ui.WriteDiagnostics(cmd.ErrOrStderr(), res.Diagnostics, noColor)
				}
				if opts.Trace {
					writeTrace(cmd, res.Trace)
				}
			}

			if res.HasErrors() {
				return fmt.Errorf("conversion finished with %d error(s)", len(res.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the converted payload to a file")
	cmd.Flags().StringVar(&policy, "collision-policy", "", "lastWriteWins, firstWriteWins or error (default from config)")
	cmd.Flags().BoolVar(&trace, "trace", false, "Print how every rule was handled")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Indent JSON output")
	cmd.Flags().BoolVar(&report, "report", false, "Print the full conversion result as JSON instead of the payload")

	return cmd
}

func writeTrace(cmd *cobra.Command, trace []reshape.TraceEntry) {
	w := cmd.ErrOrStderr()
	fmt.Fprintln(w)
	ui.Header(w, "Rule trace", noColor)
	table := ui.NewTable(w, []string{"RULE", "KIND", "DECISION", "OUTPUT"}, noColor)
	for _, e := range trace {
		table.AddRow(e.RulePath, e.RuleKind, e.Decision, strings.Join(e.OutputPaths, ", "))
	}
	table.Render()
}
