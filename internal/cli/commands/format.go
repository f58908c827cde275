package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/reshape/internal/format"
)

// NewFormatCommand creates the format command
func NewFormatCommand() *cobra.Command {
	var (
		write bool
		check bool
		style string
	)

	cmd := &cobra.Command{
		Use:   "format [files...]",
		Short: "Rewrite rule documents in canonical form",
		Long: `Format rule documents (.json, .yaml, .yml) into their canonical form: every
rule spelled with its canonical members, keys sorted, shorthands expanded.

By default, shows a diff preview of what would change without modifying files.
Use --write to apply formatting changes, or --check to verify formatting.
A .reshape-format.yml next to a file overrides the indent and style settings
from reshape.yml.

Examples:
  reshape format                    # Show diff for every rules file
  reshape format --write            # Format and save all files
  reshape format --check            # Exit with error if not formatted
  reshape format rules/orders.yaml  # Format specific file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			var forced format.Style
			switch style {
			case "":
			case string(format.StyleJSON), string(format.StyleYAML):
				forced = format.Style(style)
			default:
				return fmt.Errorf("unknown format style %q (expected json or yaml)", style)
			}

			files, err := findRulesFiles(args)
			if err != nil {
				return fmt.Errorf("failed to find files: %w", err)
			}
			if len(files) == 0 {
				return fmt.Errorf("no rules files found")
			}

			hasChanges := false
			errorCount := 0

			titleColor := color.New(color.FgCyan, color.Bold)
			successColor := color.New(color.FgGreen)
			errorColor := color.New(color.FgRed, color.Bold)

			for _, file := range files {
				name := displayPath(file)
				cfg, err := s.formatterConfig(file)
				if err != nil {
					errorColor.Fprintf(cmd.ErrOrStderr(), "Error loading format config for %s: %v\n", name, err)
					errorCount++
					continue
				}
				if forced != "" {
					cfg.Style = forced
				}

				diff, err := format.Check(file, cfg)
				if errors.Is(err, format.ErrHasIncludes) {
					if !check {
						fmt.Fprintf(cmd.OutOrStdout(), "- %s skipped (has includes)\n", name)
					}
					continue
				}
				if err != nil {
					errorColor.Fprintf(cmd.ErrOrStderr(), "Error formatting %s: %v\n", name, err)
					errorCount++
					continue
				}
				if !diff.Changed {
					if !check {
						successColor.Fprintf(cmd.OutOrStdout(), "✓ %s (no changes)\n", name)
					}
					continue
				}

				hasChanges = true
				switch {
				case check:
					errorColor.Fprintf(cmd.ErrOrStderr(), "✗ %s needs formatting\n", name)
				case write:
					if _, err := format.WriteFile(file, cfg); err != nil {
						errorColor.Fprintf(cmd.ErrOrStderr(), "Error writing %s: %v\n", name, err)
						errorCount++
						continue
					}
					successColor.Fprintf(cmd.OutOrStdout(), "✓ %s formatted\n", name)
				default:
					fmt.Fprint(cmd.OutOrStdout(), diff.UnifiedDiff(name))
					fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", diff.Stats())
				}
			}

			if !write && !check && hasChanges {
				fmt.Fprintln(cmd.OutOrStdout())
				titleColor.Fprintln(cmd.OutOrStdout(), "Run 'reshape format --write' to apply changes")
			}

			// Exit with error if in check mode and there are changes
			if check && hasChanges {
				return fmt.Errorf("files need formatting")
			}
			if errorCount > 0 {
				return fmt.Errorf("%d files had errors", errorCount)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write formatted output to files")
	cmd.Flags().BoolVarP(&check, "check", "c", false, "Check if files are formatted (exit 1 if not)")
	cmd.Flags().StringVar(&style, "style", "", "Force json or yaml output (default: by file extension)")

	return cmd
}

// formatterConfig returns the formatter settings for path: a
// .reshape-format.yml in the same directory wins over reshape.yml
func (s *session) formatterConfig(path string) (*format.Config, error) {
	local := filepath.Join(filepath.Dir(path), format.ConfigFileName)
	if _, err := os.Stat(local); err == nil {
		return format.LoadConfig(local)
	}
	return s.cfg.FormatterConfig(), nil
}
