// Package reshape is the public API of the conversion rule engine.
//
// A rule document is accepted in any of its raw forms: JSON or YAML text
// (string or []byte), a decoded map, or already-normalized *Rules. Apart from
// NormalizeConversionRulesStrict, BundleConversionRules and the plan helpers,
// no function returns an error for bad rules; problems are reported as
// diagnostics on the result.
package reshape

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/bundle"
	"github.com/conduit-lang/reshape/internal/compat"
	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/doctor"
	"github.com/conduit-lang/reshape/internal/evaluator"
	"github.com/conduit-lang/reshape/internal/format"
	"github.com/conduit-lang/reshape/internal/lint"
	"github.com/conduit-lang/reshape/internal/normalize"
	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/plan"
	"github.com/conduit-lang/reshape/internal/profile"
	"github.com/conduit-lang/reshape/internal/rules"
	"github.com/conduit-lang/reshape/internal/stream"
	"github.com/conduit-lang/reshape/internal/transform"
)

type (
	// Rules is a normalized rule document
	Rules = rules.ConversionRules
	// Diagnostic is one coded finding
	Diagnostic = diagnostics.Diagnostic
	// Diagnostics is an ordered list of findings
	Diagnostics = diagnostics.List
	// ConversionResult is the outcome of applying rules to one input
	ConversionResult = evaluator.Result
	// TraceEntry records how one rule was handled
	TraceEntry = evaluator.TraceEntry
	// CollisionPolicy decides what happens when two rules write one output path
	CollisionPolicy = evaluator.CollisionPolicy
	// CustomTransform is a caller-supplied transform
	CustomTransform = transform.Func
	// TransformContext is what a custom transform sees besides its value
	TransformContext = transform.Context
	// CustomTransforms maps customTransform names to implementations
	CustomTransforms = transform.Table
	// Plan is a compiled rule document, safe for concurrent use
	Plan = plan.Plan
	// DoctorReport is the outcome of RunRuleDoctor
	DoctorReport = doctor.Report
	// CompatResult is the outcome of CheckRulesCompatibility
	CompatResult = compat.Result
	// Record is one streamed result
	Record = stream.Record
	// ProfileReport is the outcome of ProfileConversionPlan
	ProfileReport = profile.Report
)

const (
	LastWriteWins    = evaluator.LastWriteWins
	FirstWriteWins   = evaluator.FirstWriteWins
	ErrorOnCollision = evaluator.ErrorOnCollision
)

// Options configure ApplyConversion and ConvertPayload. A nil *Options means
// the defaults.
type Options struct {
	CollisionPolicy  CollisionPolicy
	Trace            bool
	CustomTransforms CustomTransforms
	// Pretty indents JSON produced by ConvertPayload
	Pretty bool
	Logger *zap.Logger
}

func (o *Options) evaluation() evaluator.Options {
	if o == nil {
		return evaluator.Options{}
	}
	return evaluator.Options{
		CollisionPolicy:  o.CollisionPolicy,
		Trace:            o.Trace,
		CustomTransforms: o.CustomTransforms,
		Logger:           o.Logger,
	}
}

var sharedPlans atomic.Pointer[plan.Cache]

func init() {
	c, _ := plan.NewCache(plan.DefaultCacheSize, nil)
	sharedPlans.Store(c)
}

func plans() *plan.Cache {
	return sharedPlans.Load()
}

// ConfigurePlanCache replaces the shared plan cache with an empty one holding
// up to size plans. Plans already handed out stay valid.
func ConfigurePlanCache(size int, log *zap.Logger) error {
	c, err := plan.NewCache(size, log)
	if err != nil {
		return err
	}
	sharedPlans.Store(c)
	return nil
}

// NormalizeConversionRules never fails; it returns whatever rules survived
// plus every validation error message
func NormalizeConversionRules(raw any) (*Rules, []string) {
	res := normalize.Normalize(raw)
	return res.Rules, res.Errors()
}

// NormalizeConversionRulesStrict fails with every validation error aggregated
func NormalizeConversionRulesStrict(raw any) (*Rules, error) {
	return normalize.Strict(raw)
}

// ValidationResult is the outcome of ValidateConversionRules
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// ValidateConversionRules reports whether raw normalizes without errors
func ValidateConversionRules(raw any) ValidationResult {
	res := normalize.Normalize(raw)
	errs := res.Errors()
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{IsValid: res.Valid(), Errors: errs}
}

// LintResult is the outcome of LintConversionRules
type LintResult struct {
	HasErrors   bool        `json:"hasErrors"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// LintConversionRules runs the static checks over whatever normalizes
func LintConversionRules(raw any) LintResult {
	diags := lint.Lint(normalize.Normalize(raw).Rules)
	if diags == nil {
		diags = Diagnostics{}
	}
	return LintResult{HasErrors: diags.HasErrors(), Diagnostics: diags}
}

// DoctorOptions configure RunRuleDoctor
type DoctorOptions struct {
	// SampleInputText enables a runtime pass over one sample payload
	SampleInputText string
	// InputFormat decodes the sample; empty means the rules' inputFormat
	InputFormat string
	Options     *Options
}

// RunRuleDoctor validates, lints and optionally test-runs raw
func RunRuleDoctor(raw any, opts DoctorOptions) *DoctorReport {
	return doctor.Run(raw, doctor.Options{
		SampleInputText: opts.SampleInputText,
		InputFormat:     opts.InputFormat,
		Evaluation:      opts.Options.evaluation(),
	})
}

// CompatOptions configure CheckRulesCompatibility
type CompatOptions struct {
	// TargetVersion defaults to the engine's own version
	TargetVersion string
}

// CheckRulesCompatibility checks raw against a target engine version
func CheckRulesCompatibility(raw any, opts CompatOptions) *CompatResult {
	return compat.Check(raw, opts.TargetVersion)
}

// BundleConversionRules resolves includes starting at entryPath and
// normalizes the result strictly
func BundleConversionRules(entryPath string) (*Rules, error) {
	doc, err := bundle.Bundle(entryPath, bundle.Options{})
	if err != nil {
		return nil, err
	}
	return normalize.Strict(doc)
}

// FormatOptions configure FormatConversionRules
type FormatOptions struct {
	Pretty bool
}

// FormatConversionRules renders raw as canonical JSON text. Documents with
// validation errors are refused.
func FormatConversionRules(raw any, opts FormatOptions) (string, error) {
	return format.New(&format.Config{IndentSize: 2, Compact: !opts.Pretty}).Format(raw)
}

// ApplyConversion evaluates raw against input. It never fails: validation
// problems and runtime problems are all on the result.
func ApplyConversion(input any, raw any, opts *Options) *ConversionResult {
	return plans().Get(raw).Apply(input, opts.evaluation())
}

// ConvertPayload decodes text with the rules' inputFormat, applies the rules
// and encodes the output with the rules' outputFormat. On a decode or encode
// failure the text is empty and the result carries the error.
func ConvertPayload(text string, raw any, opts *Options) (string, *ConversionResult) {
	p := plans().Get(raw)
	in := p.Rules().InputFormat
	input, err := payload.Decode(in, []byte(text))
	if err != nil {
		diags := append(p.Validation().WithStage(diagnostics.StageValidate), diagnostics.NewInputUnreadable(string(in), err))
		return "", evaluator.NewResult(nil, diags, nil)
	}

	res := p.Apply(input, opts.evaluation())
	out := p.Rules().OutputFormat
	encoded, err := payload.Encode(out, res.Output, opts != nil && opts.Pretty)
	if err != nil {
		diags := append(res.Diagnostics, diagnostics.NewOutputUnencodable(string(out), err))
		failed := evaluator.NewResult(res.Output, diags, nil)
		failed.Trace = res.Trace
		return "", failed
	}
	return encoded, res
}

// CompileConversionPlan compiles raw, reusing a cached plan when one exists.
// A document with validation errors still yields a usable plan alongside the
// error.
func CompileConversionPlan(raw any) (*Plan, error) {
	p := plans().Get(raw)
	if p.Validation().HasErrors() {
		return p, fmt.Errorf("compile conversion plan: %w", (&normalize.Result{Rules: p.Rules(), Diagnostics: p.Validation()}).Err())
	}
	return p, nil
}

// ComputeRulesCacheKey returns the hex SHA-256 of raw's compact canonical text
func ComputeRulesCacheKey(raw any) string {
	return plan.CacheKey(normalize.Normalize(raw).Rules)
}

// PlanCacheStats reports the shared plan cache counters
func PlanCacheStats() plan.Stats {
	return plans().Stats()
}

// StreamOptions configure StreamConversion
type StreamOptions struct {
	// InputKind is json-array, ndjson, query-lines or xml
	InputKind string
	// ErrorMode is continueWithReport (default) or failFast
	ErrorMode string
	// XMLItemPath selects repeating elements, e.g. orders.order
	XMLItemPath string
	Options     *Options
}

// StreamConversion applies raw to every record read from r
func StreamConversion(ctx context.Context, r io.Reader, raw any, opts StreamOptions) iter.Seq2[*Record, error] {
	kind, ok := stream.ParseInputKind(opts.InputKind)
	mode, modeOK := stream.ParseErrorMode(opts.ErrorMode)
	if !ok || !modeOK {
		return func(yield func(*Record, error) bool) {
			if !ok {
				yield(nil, fmt.Errorf("unsupported stream input kind %q", opts.InputKind))
				return
			}
			yield(nil, fmt.Errorf("unsupported stream error mode %q", opts.ErrorMode))
		}
	}

	var log *zap.Logger
	if opts.Options != nil {
		log = opts.Options.Logger
	}
	return stream.Run(ctx, r, plans().Get(raw), stream.Options{
		InputKind:   kind,
		ErrorMode:   mode,
		XMLItemPath: opts.XMLItemPath,
		Evaluation:  opts.Options.evaluation(),
		Logger:      log,
	})
}

// ProfileOptions configure ProfileConversionPlan; zero values take the
// profiler defaults
type ProfileOptions struct {
	Iterations       int
	WarmupIterations int
	Options          *Options
}

// ProfileConversionPlan times how long raw takes to apply to each sample.
// Rules with validation errors are refused.
func ProfileConversionPlan(raw any, samples []any, opts ProfileOptions) (*ProfileReport, error) {
	p, err := CompileConversionPlan(raw)
	if err != nil {
		return nil, err
	}
	cfg := profile.DefaultConfig()
	if opts.Iterations > 0 {
		cfg.Iterations = opts.Iterations
	}
	if opts.WarmupIterations > 0 {
		cfg.WarmupIterations = opts.WarmupIterations
	}
	cfg.Evaluation = opts.Options.evaluation()
	if opts.Options != nil {
		cfg.Logger = opts.Options.Logger
	}
	return profile.Run(p, samples, cfg)
}
