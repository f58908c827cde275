// Package stream applies a compiled plan to every record of a large input,
// reading one record at a time.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/evaluator"
	"github.com/conduit-lang/reshape/internal/plan"
)

// ErrorMode decides what happens when a record cannot be decoded
type ErrorMode string

const (
	// ContinueWithReport turns a decode failure into that record's errors
	ContinueWithReport ErrorMode = "continueWithReport"
	// FailFast ends the sequence at the first decode failure
	FailFast ErrorMode = "failFast"
)

// ParseErrorMode parses a mode name; the empty string means ContinueWithReport
func ParseErrorMode(s string) (ErrorMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continuewithreport", "continue":
		return ContinueWithReport, true
	case "failfast", "fail-fast":
		return FailFast, true
	}
	return "", false
}

// Options configures a stream run
type Options struct {
	InputKind   InputKind
	ErrorMode   ErrorMode
	XMLItemPath string
	Evaluation  evaluator.Options
	Logger      *zap.Logger
}

// Record is the result for one input record. Index is 1-based.
type Record struct {
	Index  int               `json:"index"`
	RunID  string            `json:"runId"`
	Result *evaluator.Result `json:"result"`
}

// RecordError is returned when a record ends a FailFast run
type RecordError struct {
	Index int
	Kind  InputKind
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("Record %d: invalid %s: %v", e.Index, e.Kind.label(), e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Run applies p to each record of r. The sequence yields either a record or
// an error; after an error it ends. Cancellation is checked before each
// record.
func Run(ctx context.Context, r io.Reader, p *plan.Plan, opts Options) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		log := opts.Logger
		if log == nil {
			log = zap.NewNop()
		}
		runID := uuid.NewString()
		log = log.With(zap.String("run_id", runID), zap.String("input_kind", string(opts.InputKind)))

		if opts.Evaluation.Logger == nil {
			opts.Evaluation.Logger = log
		}

		src, err := newSource(opts.InputKind, r, opts.XMLItemPath)
		if err != nil {
			yield(nil, err)
			return
		}

		log.Debug("stream started")
		index := 0
		failed := 0
		for {
			if err := ctx.Err(); err != nil {
				log.Warn("stream cancelled", zap.Int("records", index), zap.Error(err))
				yield(nil, err)
				return
			}

			value, err := src.next()
			if errors.Is(err, io.EOF) {
				log.Debug("stream finished", zap.Int("records", index), zap.Int("failed", failed))
				return
			}
			index++

			if err != nil {
				var rerr *recordError
				if !errors.As(err, &rerr) {
					yield(nil, err)
					return
				}
				failed++
				log.Warn("record unreadable", zap.Int("record", index), zap.Error(rerr.err))
				if opts.ErrorMode == FailFast {
					yield(nil, &RecordError{Index: index, Kind: opts.InputKind, Err: rerr.err})
					return
				}
				diags := diagnostics.List{diagnostics.NewRecordUnreadable(index, opts.InputKind.label(), rerr.err)}
				rec := &Record{Index: index, RunID: runID, Result: evaluator.NewResult(nil, diags, nil)}
				if !yield(rec, nil) || rerr.fatal {
					return
				}
				continue
			}

			rec := &Record{Index: index, RunID: runID, Result: p.Apply(value, opts.Evaluation)}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Collect drains a run, returning the records read before any error
func Collect(seq iter.Seq2[*Record, error]) ([]*Record, error) {
	var out []*Record
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
