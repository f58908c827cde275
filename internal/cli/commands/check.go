package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/reshape/internal/cli/ui"
	"github.com/conduit-lang/reshape/internal/format"
	"github.com/conduit-lang/reshape/internal/normalize"
	"github.com/conduit-lang/reshape/pkg/reshape"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate RULES...",
		Short: "Check rule documents for structural errors",
		Long: `Normalize each rules file (after resolving includes) and report every
validation error. Fails when any file is invalid.

Examples:
  reshape validate rules.yaml
  reshape validate rules/*.json --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}

			results := make(map[string]reshape.ValidationResult, len(args))
			invalid := 0
			for _, path := range args {
				doc, err := s.loadRules(path)
				if err != nil {
					if asJSON {
						results[path] = reshape.ValidationResult{Errors: []string{err.Error()}}
					} else {
						fmt.Fprint(cmd.ErrOrStderr(), err.Error())
					}
					invalid++
					continue
				}

				res := reshape.ValidateConversionRules(doc)
				results[path] = res
				if !res.IsValid {
					invalid++
				}
				if asJSON {
					continue
				}
				if res.IsValid {
					ui.WriteSuccess(cmd.OutOrStdout(), path+" is valid", noColor)
					continue
				}
				ui.WriteMessage(cmd.OutOrStdout(), ui.MessageOptions{
					Level:   ui.LevelError,
					Context: "invalid rules",
					Problem: path,
					NoColor: noColor,
				})
				for _, msg := range res.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "   • %s\n", msg)
				}
			}

			if asJSON {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d rules file(s) invalid", invalid, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON keyed by file")
	return cmd
}

// NewLintCommand creates the lint command
func NewLintCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "lint RULES...",
		Short: "Report suspicious but valid rules",
		Long: `Run the static checks over each rules file: duplicate output paths,
unreachable or empty branch arms, malformed expressions, unused fragments and
defaults that can never apply. Fails only on error-severity findings.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}

			results := make(map[string]reshape.LintResult, len(args))
			failed := 0
			for _, path := range args {
				doc, err := s.loadRules(path)
				if err != nil {
					return err
				}
				res := reshape.LintConversionRules(doc)
				results[path] = res
				if res.HasErrors {
					failed++
				}
				if !asJSON {
					ui.Header(cmd.OutOrStdout(), path, noColor)
					ui.WriteDiagnostics(cmd.OutOrStdout(), res.Diagnostics, noColor)
				}
			}

			if asJSON {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("lint found errors in %d file(s)", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON keyed by file")
	return cmd
}

// NewDoctorCommand creates the doctor command
func NewDoctorCommand() *cobra.Command {
	var (
		samplePath  string
		inputFormat string
		fix         bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "doctor RULES",
		Short: "Validate, lint and test-run a rules file",
		Long: `Run every check in order: validation, lint and, with --sample, one
conversion of a sample payload. When the file is valid but not in canonical
form, a canonical rewrite is offered; --fix writes it back.

Examples:
  reshape doctor rules.json
  reshape doctor rules.json --sample order.xml --input-format xml
  reshape doctor rules.json --fix`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			path := args[0]
			raw, err := doctorSource(s, path)
			if err != nil {
				return err
			}

			sample := ""
			if samplePath != "" {
				data, err := readInput(cmd, samplePath)
				if err != nil {
					return err
				}
				sample = string(data)
			}
			opts, err := s.options("", false)
			if err != nil {
				return err
			}

			report := reshape.RunRuleDoctor(raw, reshape.DoctorOptions{
				SampleInputText: sample,
				InputFormat:     inputFormat,
				Options:         opts,
			})

			if asJSON {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				ui.Header(cmd.OutOrStdout(), "Doctor: "+path, noColor)
				ui.WriteDiagnostics(cmd.OutOrStdout(), report.Findings, noColor)
			}

			if fix && report.SafeFixPreview != "" {
				cfg, err := s.formatterConfig(path)
				if err != nil {
					return err
				}
				if _, err := format.WriteFile(path, cfg); err != nil {
					return fmt.Errorf("failed to apply fix: %w", err)
				}
				if !asJSON {
					ui.WriteSuccess(cmd.OutOrStdout(), "rewrote "+path+" in canonical form", noColor)
				}
			}

			if report.HasErrors {
				return fmt.Errorf("doctor found errors")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&samplePath, "sample", "", "Sample payload to test-run (\"-\" for stdin)")
	cmd.Flags().StringVar(&inputFormat, "input-format", "", "Decode the sample as json, xml or query (default: the rules' inputFormat)")
	cmd.Flags().BoolVar(&fix, "fix", false, "Rewrite the file in canonical form when that is safe")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

// doctorSource hands the doctor the file text so it can offer a canonical
// rewrite. Documents with includes are bundled first and get no rewrite.
func doctorSource(s *session, path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s", ui.RulesFileError(path, err, noColor))
	}
	if doc, err := normalize.DecodeDocument(data); err == nil {
		if m, ok := doc.(map[string]any); ok {
			if _, hasInclude := m["include"]; hasInclude {
				return s.loadRules(path)
			}
		}
	}
	return string(data), nil
}

// NewCompatCommand creates the compat command
func NewCompatCommand() *cobra.Command {
	var (
		target string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "compat RULES",
		Short: "Check a rules file against a target engine version",
		Long: `Compare the document's schemaVersion with a target engine version and
check its input and output formats. The target defaults to target_version
from reshape.yml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			doc, err := s.loadRules(args[0])
			if err != nil {
				return err
			}
			if target == "" {
				target = s.cfg.TargetVersion
			}

			res := reshape.CheckRulesCompatibility(doc, reshape.CompatOptions{TargetVersion: target})
			if asJSON {
				if err := writeJSON(cmd, res); err != nil {
					return err
				}
			} else {
				ui.WriteDiagnostics(cmd.OutOrStdout(), res.Diagnostics, noColor)
				if res.IsCompatible {
					ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("compatible with engine %s", strings.TrimPrefix(target, "v")), noColor)
				}
			}

			if !res.IsCompatible {
				return fmt.Errorf("%s is not compatible with engine %s", args[0], target)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target engine version (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// NewCacheKeyCommand creates the cache-key command
func NewCacheKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cache-key RULES",
		Short: "Print the cache key of a rules file",
		Long: `Print the hex SHA-256 of the document's compact canonical form.
Documents that differ only in authoring style share a key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			doc, err := s.loadRules(args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, "", reshape.ComputeRulesCacheKey(doc))
		},
	}
}
