package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/reshape/internal/diagnostics"
)

// Level represents the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// MessageOptions configures message formatting
type MessageOptions struct {
	Level        Level
	Context      string
	Problem      string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

func levelStyle(level Level) (*color.Color, string) {
	switch level {
	case LevelWarning:
		return color.New(color.FgYellow, color.Bold), "⚠"
	case LevelInfo:
		return color.New(color.FgCyan, color.Bold), "ℹ"
	default:
		return color.New(color.FgRed, color.Bold), "✗"
	}
}

// FormatMessage renders a message with optional suggestions and help commands
//
// Example output:
//
//	✗ UNKNOWN INPUT KIND: ndjsn
//
//	   Did you mean: ndjson?
//
//	   → Get help: reshape stream --help
func FormatMessage(opts MessageOptions) string {
	var b strings.Builder

	header, symbol := levelStyle(opts.Level)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		for _, c := range []*color.Color{header, yellow, cyan} {
			c.DisableColor()
		}
	}

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}
	return b.String()
}

// WriteMessage writes a formatted message to the writer
func WriteMessage(w io.Writer, opts MessageOptions) {
	fmt.Fprint(w, FormatMessage(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// UnknownValueError reports a flag or config value outside its allowed set,
// suggesting the closest allowed values
func UnknownValueError(what, value string, allowed []string, command string, noColor bool) string {
	return FormatMessage(MessageOptions{
		Level:        LevelError,
		Context:      "unknown " + what,
		Problem:      value,
		Suggestions:  FindSimilar(value, allowed, nil),
		HelpCommands: []string{fmt.Sprintf("Get help: reshape %s --help", command)},
		NoColor:      noColor,
	})
}

// RulesFileError reports a rules file that could not be read or bundled
func RulesFileError(path string, err error, noColor bool) string {
	return FormatMessage(MessageOptions{
		Level:   LevelError,
		Context: "rules file",
		Problem: fmt.Sprintf("%s: %v", path, err),
		HelpCommands: []string{
			"Check structure: reshape validate " + path,
			"Create a starter file: reshape init",
		},
		NoColor: noColor,
	})
}

// ConfigError reports an unusable reshape.yml
func ConfigError(message string, noColor bool) string {
	return FormatMessage(MessageOptions{
		Level:   LevelError,
		Context: "configuration error",
		Problem: message,
		HelpCommands: []string{
			"View config: cat reshape.yml",
			"Get help: reshape --help",
		},
		NoColor: noColor,
	})
}

// WriteDiagnostics renders findings one per line, colored by severity, and
// ends with a summary line
func WriteDiagnostics(w io.Writer, list diagnostics.List, noColor bool) {
	if len(list) == 0 {
		WriteSuccess(w, "no findings", noColor)
		return
	}
	for _, d := range list {
		var c *color.Color
		switch d.Severity {
		case diagnostics.SeverityError:
			c = color.New(color.FgRed)
		case diagnostics.SeverityWarning:
			c = color.New(color.FgYellow)
		default:
			c = color.New(color.FgCyan)
		}
		if noColor {
			c.DisableColor()
		}
		c.Fprint(w, diagnostics.FormatDiagnostic(d))
	}
	errs, warns, infos := list.Count()
	fmt.Fprintf(w, "\n%d error(s), %d warning(s), %d info\n", errs, warns, infos)
}
