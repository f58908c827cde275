package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/format"
	"github.com/conduit-lang/reshape/pkg/reshape"
)

// NewBundleCommand creates the bundle command
func NewBundleCommand() *cobra.Command {
	var (
		outputPath string
		style      string
	)

	cmd := &cobra.Command{
		Use:   "bundle ENTRY",
		Short: "Resolve includes into one canonical rules document",
		Long: `Resolve every include reachable from ENTRY, depth first, and print the
merged document in canonical form. Included rules come before the including
document's own rules; fragments defined later win.

Examples:
  reshape bundle rules/main.yaml
  reshape bundle rules/main.yaml -o dist/rules.json
  reshape bundle rules/main.yaml --style yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}

			rules, err := reshape.BundleConversionRules(args[0])
			if err != nil {
				return fmt.Errorf("bundle %s: %w", args[0], err)
			}

			cfg := s.cfg.FormatterConfig()
			switch {
			case style != "":
				cfg.Style = format.Style(style)
			case outputPath != "":
				cfg.Style = format.StyleForPath(outputPath)
			default:
				cfg.Style = format.StyleJSON
			}
			text, err := format.New(cfg).Render(rules, cfg.Style)
			if err != nil {
				return err
			}
			s.log.Debug("bundle rendered", zap.String("entry", args[0]), zap.String("cache_key", reshape.ComputeRulesCacheKey(rules)))
			return writeOutput(cmd, outputPath, text)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the bundle to a file")
	cmd.Flags().StringVar(&style, "style", "", "json or yaml (default: by output extension, else json)")
	return cmd
}
