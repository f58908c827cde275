package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/reshape/internal/cli/ui"
	"github.com/conduit-lang/reshape/internal/normalize"
	"github.com/conduit-lang/reshape/pkg/reshape"
)

// NewProfileCommand creates the profile command
func NewProfileCommand() *cobra.Command {
	var (
		iterations int
		warmup     int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "profile RULES SAMPLES",
		Short: "Measure how fast a rules file converts sample records",
		Long: `Compile RULES once and apply it to every record in SAMPLES repeatedly,
reporting per-record latency percentiles and allocations. SAMPLES is a JSON
or YAML file holding one record or an array of records.

Examples:
  reshape profile rules.json samples.json
  reshape profile rules.json samples.json --iterations 1000 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			doc, err := s.loadRules(args[0])
			if err != nil {
				return err
			}
			samples, err := loadSamples(cmd, args[1])
			if err != nil {
				return err
			}
			opts, err := s.options("", false)
			if err != nil {
				return err
			}

			profileCfg := s.cfg.ProfileConfig(s.log)
			if cmd.Flags().Changed("iterations") {
				profileCfg.Iterations = iterations
			}
			if cmd.Flags().Changed("warmup") {
				profileCfg.WarmupIterations = warmup
			}
			if profileCfg.Iterations < 1 {
				return fmt.Errorf("--iterations must be at least 1")
			}

			var report *reshape.ProfileReport
			run := func() error {
				var err error
				report, err = reshape.ProfileConversionPlan(doc, samples, reshape.ProfileOptions{
					Iterations:       profileCfg.Iterations,
					WarmupIterations: profileCfg.WarmupIterations,
					Options:          opts,
				})
				return err
			}
			if asJSON {
				err = run()
			} else {
				err = ui.WithSpinner(cmd.ErrOrStderr(), "Profiling "+args[0], noColor, run)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, report)
			}
			writeProfileReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().IntVar(&iterations, "iterations", 0, "Timed passes over all samples (default from config)")
	cmd.Flags().IntVar(&warmup, "warmup", 0, "Untimed passes before measuring (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

// loadSamples reads one record or an array of records
func loadSamples(cmd *cobra.Command, path string) ([]any, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	v, err := normalize.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}
	if list, ok := v.([]any); ok {
		return list, nil
	}
	return []any{v}, nil
}

func writeProfileReport(cmd *cobra.Command, r *reshape.ProfileReport) {
	w := cmd.OutOrStdout()
	ui.Header(w, "Profile", noColor)

	table := ui.NewKeyValueTable(w, noColor)
	table.AddRow("Run", r.RunID)
	table.AddRow("Cache key", r.CacheKey)
	table.AddRow("Samples", strconv.Itoa(r.Samples))
	table.AddRow("Applies", fmt.Sprintf("%d (%d iterations, %d warmup)", r.Applies, r.Iterations, r.WarmupIterations))
	table.AddRow("Samples with errors", strconv.Itoa(r.ErrorCount))
	table.AddRow("Total", r.Total.Round(time.Microsecond).String())
	table.AddRow("Allocated", fmt.Sprintf("%d bytes in %d allocations", r.Memory.TotalAllocBytes, r.Memory.Mallocs))
	table.AddRow("GC cycles", strconv.FormatUint(uint64(r.Memory.NumGC), 10))
	table.Render()

	fmt.Fprintln(w)
	latency := ui.NewTable(w, []string{"MIN", "P50", "P90", "P99", "MAX", "MEAN"}, noColor)
	latency.AddRow(
		r.Latency.Min.String(),
		r.Latency.P50.String(),
		r.Latency.P90.String(),
		r.Latency.P99.String(),
		r.Latency.Max.String(),
		r.Latency.Mean.String(),
	)
	latency.Render()
}
