package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/reshape/internal/cli/ui"
	"github.com/conduit-lang/reshape/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	var (
		ignored  []string
		debounce int
	)

	cmd := &cobra.Command{
		Use:   "watch [DIRS...]",
		Short: "Re-check rules files whenever they change",
		Long: `Watch directories for changes to rules files and re-run validation and
lint on every save. Files that include a changed file are re-checked too, and
files whose bundled content did not change are skipped.

Examples:
  reshape watch
  reshape watch rules/ shared/
  reshape watch --ignore 'generated-*'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			dirs := args
			if len(dirs) == 0 {
				dirs = []string{"."}
			}

			initial, err := findRulesFiles(dirs)
			if err != nil {
				return err
			}
			checker := watch.NewIncrementalChecker(s.log)
			writeCheckResult(cmd.OutOrStdout(), checker.Check(initial))

			watcher, err := watch.NewFileWatcher(watch.Options{
				Dirs:     watchDirs(dirs, initial),
				Ignored:  ignored,
				Debounce: time.Duration(debounce) * time.Millisecond,
				Logger:   s.log,
			}, func(files []string) error {
				changed := files[:0]
				for _, f := range files {
					if isRulesFile(f) {
						changed = append(changed, f)
					}
				}
				writeCheckResult(cmd.OutOrStdout(), checker.Check(changed))
				return nil
			})
			if err != nil {
				return err
			}
			if err := watcher.Start(); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "Watching for changes. Press Ctrl+C to stop")
			<-sigChan

			fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
			return watcher.Stop()
		},
	}

	cmd.Flags().StringSliceVar(&ignored, "ignore", nil, "Glob patterns of files to ignore")
	cmd.Flags().IntVar(&debounce, "debounce", int(watch.DefaultDebounce.Milliseconds()), "Milliseconds to wait for more changes before checking")
	return cmd
}

// watchDirs is every directory holding a rules file, plus the roots given
func watchDirs(roots, files []string) []string {
	set := make(map[string]bool)
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			set[abs] = true
		}
	}
	for _, f := range files {
		set[filepath.Dir(f)] = true
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func writeCheckResult(w io.Writer, res *watch.CheckResult) {
	for _, f := range res.Files {
		if f.Unchanged {
			continue
		}
		name := displayPath(f.Path)
		if f.Err != nil {
			fmt.Fprint(w, ui.RulesFileError(name, f.Err, noColor))
			continue
		}
		ui.Header(w, name, noColor)
		ui.WriteDiagnostics(w, f.Diagnostics, noColor)
	}
	fmt.Fprintf(w, "checked %d file(s) in %s\n", len(res.Files), res.Duration.Round(time.Microsecond))
}
