package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Column defines a table column. Right aligns cells to the right edge.
type Column struct {
	Title string
	Width int
	Right bool
}

// Row is a slice of cell values. Cells may already be styled.
type Row []string

// Table is a fixed-width text table.
type Table struct {
	Columns []Column
	Rows    []Row
	// Highlight marks rows rendered with StyleSelected.
	Highlight func(i int, r Row) bool
}

// NewTable creates a new table.
func NewTable(cols []Column) *Table {
	return &Table{Columns: cols}
}

// AddRow appends a row.
func (t *Table) AddRow(r Row) {
	t.Rows = append(t.Rows, r)
}

var (
	tableHeader = lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
	tableCell   = lipgloss.NewStyle().Foreground(ColorValue)
)

// Render draws a header, a divider and one line per row. Widths are in
// terminal cells; styled cells keep their escape codes intact.
func (t *Table) Render() string {
	var sb strings.Builder

	titles := make(Row, len(t.Columns))
	rules := make(Row, len(t.Columns))
	for i, c := range t.Columns {
		titles[i] = c.Title
		rules[i] = strings.Repeat("─", c.Width)
	}
	t.writeLine(&sb, titles, tableHeader)
	t.writeLine(&sb, rules, StyleMeta)

	for i, r := range t.Rows {
		style := tableCell
		if t.Highlight != nil && t.Highlight(i, r) {
			style = StyleSelected
		}
		t.writeLine(&sb, r, style)
	}
	return sb.String()
}

func (t *Table) writeLine(sb *strings.Builder, r Row, style lipgloss.Style) {
	for i, c := range t.Columns {
		if i > 0 {
			sb.WriteByte(' ')
		}
		var cell string
		if i < len(r) {
			cell = r[i]
		}
		sb.WriteString(style.Render(fit(cell, c.Width, c.Right)))
	}
	sb.WriteByte('\n')
}

// KeyValueBlock renders a set of key-value pairs in a bordered box.
func KeyValueBlock(title string, pairs [][2]string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(StyleTitle.Render(title))
		sb.WriteString("\n")
	}
	for _, p := range pairs {
		key := StyleMeta.Render(fmt.Sprintf("%-20s", p[0]+":"))
		sb.WriteString("  " + key + " " + StyleValue.Render(p[1]) + "\n")
	}
	return StyleBorder.Render(sb.String())
}

// fit pads or cuts s to exactly width cells.
func fit(s string, width int, right bool) string {
	w := lipgloss.Width(s)
	if w > width {
		return ansi.Truncate(s, width, "…")
	}
	gap := strings.Repeat(" ", width-w)
	if right {
		return gap + s
	}
	return s + gap
}

// pad left-aligns s within exactly width cells, truncating with "…".
func pad(s string, width int) string { return fit(s, width, false) }
