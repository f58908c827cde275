package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/cli/ui"
	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/stream"
	"github.com/conduit-lang/reshape/pkg/reshape"
)

var inputKinds = []string{string(stream.JSONArray), string(stream.NDJSON), string(stream.QueryLines), string(stream.XML)}

// NewStreamCommand creates the stream command
func NewStreamCommand() *cobra.Command {
	var (
		kind     string
		mode     string
		itemPath string
		policy   string
	)

	cmd := &cobra.Command{
		Use:   "stream RULES [INPUT]",
		Short: "Convert a stream of records",
		Long: `Apply a rules file to every record of a stream and write one converted
record per line, encoded with the document's outputFormat.

Input kinds:
  json-array   one JSON array of records
  ndjson       one JSON value per line
  query-lines  one query string per line
  xml          repeating elements selected by --item-path

With continueWithReport (the default) an unreadable record is reported and
skipped; with failFast the first one stops the run.

Examples:
  reshape stream rules.json events.ndjson
  reshape stream rules.json orders.xml --kind xml --item-path orders.order
  cat hits.log | reshape stream rules.json --kind query-lines --error-mode failFast`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			if kind == "" {
				kind = s.cfg.Stream.InputKind
			}
			if _, ok := stream.ParseInputKind(kind); !ok {
				return fmt.Errorf("%s", ui.UnknownValueError("input kind", kind, inputKinds, "stream", noColor))
			}
			if mode == "" {
				mode = s.cfg.Stream.ErrorMode
			}
			if _, ok := stream.ParseErrorMode(mode); !ok {
				modes := []string{string(stream.ContinueWithReport), string(stream.FailFast)}
				return fmt.Errorf("%s", ui.UnknownValueError("error mode", mode, modes, "stream", noColor))
			}
			if itemPath == "" {
				itemPath = s.cfg.Stream.XMLItemPath
			}

			doc, err := s.loadRules(args[0])
			if err != nil {
				return err
			}
			normalized, _ := reshape.NormalizeConversionRules(doc)
			opts, err := s.options(policy, false)
			if err != nil {
				return err
			}

			inputPath := ""
			if len(args) > 1 {
				inputPath = args[1]
			}
			r, closeInput, err := openInput(cmd, inputPath)
			if err != nil {
				return err
			}
			defer closeInput()

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runStream(ctx, cmd, s.log, r, doc, normalized.OutputFormat, reshape.StreamOptions{
				InputKind:   kind,
				ErrorMode:   mode,
				XMLItemPath: itemPath,
				Options:     opts,
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "json-array, ndjson, query-lines or xml (default from config)")
	cmd.Flags().StringVar(&mode, "error-mode", "", "continueWithReport or failFast (default from config)")
	cmd.Flags().StringVar(&itemPath, "item-path", "", "Repeating XML element, e.g. orders.order")
	cmd.Flags().StringVar(&policy, "collision-policy", "", "lastWriteWins, firstWriteWins or error (default from config)")
	return cmd
}

func runStream(ctx context.Context, cmd *cobra.Command, log *zap.Logger, r io.Reader, doc any, out payload.Format, opts reshape.StreamOptions) error {
	total, failed := 0, 0
	for rec, err := range reshape.StreamConversion(ctx, r, doc, opts) {
		if err != nil {
			return err
		}
		total++

		if len(rec.Result.Diagnostics) > 0 {
			writeRecordDiagnostics(cmd.ErrOrStderr(), rec.Index, rec.Result.Diagnostics)
		}
		if rec.Result.HasErrors() {
			failed++
			if len(rec.Result.Output) == 0 {
				continue
			}
		}

		line, err := payload.Encode(out, rec.Result.Output, false)
		if err != nil {
			if !rec.Result.HasErrors() {
				failed++
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "record %d: %s\n", rec.Index, diagnostics.NewOutputUnencodable(string(out), err).Message)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}

	log.Info("stream finished", zap.Int("records", total), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d record(s) had errors", failed, total)
	}
	return nil
}

func writeRecordDiagnostics(w io.Writer, index int, list diagnostics.List) {
	for _, d := range list {
		fmt.Fprintf(w, "record %d: %s %s: %s\n", index, d.Severity, d.Code, d.Message)
	}
}
