package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/reshape/internal/cli/ui"
	"github.com/conduit-lang/reshape/internal/compat"
	"github.com/conduit-lang/reshape/internal/format"
	"github.com/conduit-lang/reshape/internal/payload"
)

// DefaultRulesFile is what init creates when no path is given
const DefaultRulesFile = "rules.yaml"

const starterYAML = `schemaVersion: "%s"
inputFormat: %s
outputFormat: %s
fragments:
  address:
    - from: street
      to: address.line1
    - from: city
      to: address.city
rules:
  - from: id
    to: customer.id
  - from: name
    to: customer.name
    transform: trim
  - from: status
    to: customer.status
    default: active
  - inputPath: orders
    to: customer.orders
    itemRules:
      - from: sku
        to: sku
      - from: qty
        to: quantity
        transform: number
  - if: path(country) == 'US'
    then:
      - use: address
    else:
      - const: international
        to: address.region
`

const starterJSON = `{
  "schemaVersion": "%s",
  "inputFormat": "%s",
  "outputFormat": "%s",
  "fragments": {
    "address": [
      {"from": "street", "to": "address.line1"},
      {"from": "city", "to": "address.city"}
    ]
  },
  "rules": [
    {"from": "id", "to": "customer.id"},
    {"from": "name", "to": "customer.name", "transform": "trim"},
    {"from": "status", "to": "customer.status", "default": "active"},
    {
      "inputPath": "orders",
      "to": "customer.orders",
      "itemRules": [
        {"from": "sku", "to": "sku"},
        {"from": "qty", "to": "quantity", "transform": "number"}
      ]
    },
    {
      "if": "path(country) == 'US'",
      "then": [{"use": "address"}],
      "else": [{"const": "international", "to": "address.region"}]
    }
  ]
}
`

// StarterRules renders the starter document in the style path implies
func StarterRules(path string, in, out payload.Format) string {
	tmpl := starterJSON
	if format.StyleForPath(path) == format.StyleYAML {
		tmpl = starterYAML
	}
	return fmt.Sprintf(tmpl, compat.EngineVersion, in, out)
}

func formatNames() []string {
	names := make([]string, len(payload.Formats))
	for i, f := range payload.Formats {
		names[i] = string(f)
	}
	return names
}

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		interactive  bool
		force        bool
		inputFormat  string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Create a starter rules file",
		Long: `Create a starter rules document showing field, array, branch and fragment
rules. The file is YAML unless PATH ends in .json.

Examples:
  reshape init
  reshape init rules/orders.json --input-format xml
  reshape init --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultRulesFile
			if len(args) == 1 {
				path = args[0]
			}
			writeFormatConfig := false

			if interactive {
				if len(args) == 0 {
					prompt := &survey.Input{
						Message: "Rules file:",
						Default: path,
					}
					if err := survey.AskOne(prompt, &path, survey.WithValidator(survey.Required)); err != nil {
						return err
					}
				}
				if err := survey.AskOne(&survey.Select{
					Message: "Input payload format:",
					Options: formatNames(),
					Default: inputFormat,
				}, &inputFormat); err != nil {
					return err
				}
				if err := survey.AskOne(&survey.Select{
					Message: "Output payload format:",
					Options: formatNames(),
					Default: outputFormat,
				}, &outputFormat); err != nil {
					return err
				}
				if err := survey.AskOne(&survey.Confirm{
					Message: "Create " + format.ConfigFileName + " next to it?",
					Default: false,
				}, &writeFormatConfig); err != nil {
					return err
				}
			}

			in, ok := payload.ParseFormat(inputFormat)
			if !ok {
				return fmt.Errorf("%s", ui.UnknownValueError("input format", inputFormat, formatNames(), "init", noColor))
			}
			out, ok := payload.ParseFormat(outputFormat)
			if !ok {
				return fmt.Errorf("%s", ui.UnknownValueError("output format", outputFormat, formatNames(), "init", noColor))
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(path, []byte(StarterRules(path, in, out)), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			ui.WriteSuccess(cmd.OutOrStdout(), "created "+path, noColor)

			if writeFormatConfig {
				cfgPath := filepath.Join(filepath.Dir(path), format.ConfigFileName)
				if err := format.SaveConfig(cfgPath, format.DefaultConfig()); err != nil {
					return fmt.Errorf("failed to write %s: %w", cfgPath, err)
				}
				ui.WriteSuccess(cmd.OutOrStdout(), "created "+cfgPath, noColor)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nNext: reshape doctor %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for file name and formats")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&inputFormat, "input-format", string(payload.FormatJSON), "json, xml or query")
	cmd.Flags().StringVar(&outputFormat, "output-format", string(payload.FormatJSON), "json, xml or query")
	return cmd
}
