package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/reshape/internal/cli/ui"
	"github.com/conduit-lang/reshape/schemas"
)

// NewSchemaCommand creates the schema command
func NewSchemaCommand() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "schema [VERSION]",
		Short: "Print the JSON schema for rule documents",
		Long: `Print the JSON schema of a rule document version. Without VERSION the
current schema is printed.

Examples:
  reshape schema
  reshape schema 1.0.0
  reshape schema --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				latest := schemas.Latest()
				for _, v := range schemas.Versions() {
					if v == latest {
						fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", v, schemas.CurrentAlias)
						continue
					}
					fmt.Fprintln(cmd.OutOrStdout(), v)
				}
				return nil
			}

			version := schemas.CurrentAlias
			if len(args) == 1 {
				version = args[0]
			}
			data, err := schemas.Read(version)
			if err != nil {
				allowed := append(schemas.Versions(), schemas.CurrentAlias)
				return fmt.Errorf("%s", ui.UnknownValueError("schema version", strings.TrimPrefix(version, "v"), allowed, "schema", noColor))
			}
			return writeOutput(cmd, "", string(data))
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List published schema versions")
	return cmd
}
