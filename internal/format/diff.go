package format

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// DiffResult represents the difference between a rules file and its
// canonical form
type DiffResult struct {
	Original  string
	Formatted string
	Changed   bool
}

// Diff compares original and formatted text
func Diff(original, formatted string) *DiffResult {
	return &DiffResult{
		Original:  original,
		Formatted: formatted,
		Changed:   original != formatted,
	}
}

// linePair is one line position in both texts; a side past its end is ""
type linePair struct {
	line      int
	original  string
	formatted string
}

// changedLines pairs the two texts line by line and keeps the differing pairs
func (d *DiffResult) changedLines() []linePair {
	originalLines := strings.Split(d.Original, "\n")
	formattedLines := strings.Split(d.Formatted, "\n")

	maxLines := len(originalLines)
	if len(formattedLines) > maxLines {
		maxLines = len(formattedLines)
	}

	var out []linePair
	for i := 0; i < maxLines; i++ {
		p := linePair{line: i + 1}
		if i < len(originalLines) {
			p.original = originalLines[i]
		}
		if i < len(formattedLines) {
			p.formatted = formattedLines[i]
		}
		if p.original != p.formatted {
			out = append(out, p)
		}
	}
	return out
}

// String returns a human-readable diff with color highlighting
func (d *DiffResult) String() string {
	if !d.Changed {
		return color.GreenString("Already canonical")
	}

	var buf bytes.Buffer
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	for _, p := range d.changedLines() {
		cyan.Fprintf(&buf, "@@ Line %d @@\n", p.line)
		if p.original != "" {
			red.Fprintf(&buf, "- %s\n", p.original)
		}
		if p.formatted != "" {
			green.Fprintf(&buf, "+ %s\n", p.formatted)
		}
	}
	return buf.String()
}

// UnifiedDiff returns a unified diff format string
func (d *DiffResult) UnifiedDiff(filename string) string {
	if !d.Changed {
		return ""
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- a/%s\n", filename)
	fmt.Fprintf(&buf, "+++ b/%s\n", filename)

	for _, p := range d.changedLines() {
		fmt.Fprintf(&buf, "@@ -%d +%d @@\n", p.line, p.line)
		if p.original != "" {
			fmt.Fprintf(&buf, "-%s\n", p.original)
		}
		if p.formatted != "" {
			fmt.Fprintf(&buf, "+%s\n", p.formatted)
		}
	}
	return buf.String()
}

// Stats returns statistics about the changes
func (d *DiffResult) Stats() string {
	if !d.Changed {
		return "No changes"
	}

	added, removed, changed := 0, 0, 0
	for _, p := range d.changedLines() {
		switch {
		case p.original == "":
			added++
		case p.formatted == "":
			removed++
		default:
			changed++
		}
	}
	return fmt.Sprintf("%d lines changed, %d added, %d removed", changed, added, removed)
}
