package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Table represents a simple table for displaying tabular data
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a new table with the given headers
func NewTable(w io.Writer, headers []string, noColor bool) *Table {
	return &Table{writer: w, headers: headers, noColor: noColor}
}

// AddRow adds a row to the table; extra cells are dropped
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table to the writer
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if t.noColor {
		bold.DisableColor()
		gray.DisableColor()
	}

	cells := make([]string, len(widths))
	for i, header := range t.headers {
		cells[i] = bold.Sprint(padRight(header, widths[i]))
	}
	fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(cells, "  "), " "))

	for i, width := range widths {
		cells[i] = gray.Sprint(strings.Repeat("─", width))
	}
	fmt.Fprintln(t.writer, strings.Join(cells, "  "))

	for _, row := range t.rows {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = padRight(cell, widths[i])
		}
		fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

// padRight pads a string with spaces on the right to reach the target width
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// KeyValueTable renders aligned "key: value" lines
type KeyValueTable struct {
	writer  io.Writer
	keys    []string
	values  []string
	noColor bool
}

// NewKeyValueTable creates a new key-value table
func NewKeyValueTable(w io.Writer, noColor bool) *KeyValueTable {
	return &KeyValueTable{writer: w, noColor: noColor}
}

// AddRow adds a key-value pair to the table
func (t *KeyValueTable) AddRow(key, value string) {
	t.keys = append(t.keys, key)
	t.values = append(t.values, value)
}

// Render renders the key-value table
func (t *KeyValueTable) Render() {
	width := 0
	for _, k := range t.keys {
		if len(k) > width {
			width = len(k)
		}
	}

	cyan := color.New(color.FgCyan)
	if t.noColor {
		cyan.DisableColor()
	}
	for i, k := range t.keys {
		cyan.Fprint(t.writer, padRight(k+":", width+1))
		fmt.Fprintf(t.writer, " %s\n", t.values[i])
	}
}

// Header renders a styled title underlined to its width
func Header(w io.Writer, title string, noColor bool) {
	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if noColor {
		bold.DisableColor()
		gray.DisableColor()
	}
	bold.Fprintln(w, title)
	gray.Fprintln(w, strings.Repeat("─", len(title)))
}
