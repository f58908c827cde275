package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/cli/config"
	"github.com/conduit-lang/reshape/internal/cli/ui"
	"github.com/conduit-lang/reshape/internal/compat"
	"github.com/conduit-lang/reshape/internal/logging"
	"github.com/conduit-lang/reshape/pkg/reshape"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	configPath string
	logLevel   string
	noColor    bool
)

// session carries what every command needs once flags are parsed
type session struct {
	cfg *config.Config
	log *zap.Logger
}

// loadSession reads reshape.yml (or --config) and builds the logger. A
// --log-level flag overrides the configured level.
func loadSession() (*session, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("%s", ui.ConfigError(err.Error(), noColor))
	}

	logCfg := cfg.Logging()
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	if err := reshape.ConfigurePlanCache(cfg.Cache.Size, log); err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log}, nil
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reshape",
		Short: "Declarative payload conversion between JSON, XML and query strings",
		Long: color.CyanString(`reshape - declarative payload conversion

reshape applies a rule document to JSON, XML or query-string payloads and
produces a converted payload plus a report of everything that went wrong.

Rule documents are JSON or YAML, may include other documents, and can be
validated, linted, formatted and checked against a target engine version
before they ever touch data.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a reshape.yml config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Add subcommands
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewConvertCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewLintCommand())
	rootCmd.AddCommand(NewDoctorCommand())
	rootCmd.AddCommand(NewCompatCommand())
	rootCmd.AddCommand(NewBundleCommand())
	rootCmd.AddCommand(NewFormatCommand())
	rootCmd.AddCommand(NewStreamCommand())
	rootCmd.AddCommand(NewProfileCommand())
	rootCmd.AddCommand(NewCacheKeyCommand())
	rootCmd.AddCommand(NewSchemaCommand())
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the reshape version, rule schema version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			table := ui.NewKeyValueTable(cmd.OutOrStdout(), noColor)
			table.AddRow("reshape version", Version)
			table.AddRow("Rule schema", compat.EngineVersion)
			table.AddRow("Git commit", GitCommit)
			table.AddRow("Build date", BuildDate)
			table.AddRow("Go version", goVer)
			table.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
