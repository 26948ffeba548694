package ui

import (
	"io"
	"strings"
	"unicode/utf8"
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Column configures a column in the table.
type Column struct {
	Header       string
	Align        Align  // default: AlignLeft
	MaxWidth     int    // 0 = unlimited; longer cells get end-truncated
	Ellipsis     string // default: "…"
	PaddingRight int    // default: 2 spaces
}

type Table struct {
	columns []Column
	rows    [][]string

	ShowHeader    bool
	ShowSeparator bool
}

func NewTable(columns ...Column) *Table {
	// apply defaults
	for i := range columns {
		if columns[i].PaddingRight == 0 {
			columns[i].PaddingRight = 2
		}
		if columns[i].Ellipsis == "" {
			columns[i].Ellipsis = "…"
		}
	}

	return &Table{
		columns:       columns,
		ShowHeader:    true,
		ShowSeparator: true,
	}
}

func (t *Table) AddRow(cells ...string) {
	// normalize row length
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	t.rows = append(t.rows, row)
}

func (t *Table) Render(w io.Writer) error {
	if len(t.columns) == 0 {
		return nil
	}

	widths := t.computeWidths()

	// header
	if t.ShowHeader {
		headerCells := make([]string, len(t.columns))
		for i, c := range t.columns {
			headerCells[i] = c.Header
		}
		if err := t.writeRow(w, headerCells, widths); err != nil {
			return err
		}
		if t.ShowSeparator {
			if err := t.writeSeparator(w, widths); err != nil {
				return err
			}
		}
	}

	// rows
	for _, row := range t.rows {
		if err := t.writeRow(w, row, widths); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) computeWidths() []int {
	widths := make([]int, len(t.columns))

	// include headers
	for i, col := range t.columns {
		widths[i] = max(widths[i], clampWidth(col, runeLen(col.Header)))
	}

	// include rows
	for _, row := range t.rows {
		for i, cell := range row {
			col := t.columns[i]
			widths[i] = max(widths[i], clampWidth(col, runeLen(t.truncate(col, cell))))
		}
	}

	return widths
}

func clampWidth(col Column, w int) int {
	if col.MaxWidth > 0 && w > col.MaxWidth {
		return col.MaxWidth
	}
	return w
}

func (t *Table) writeRow(w io.Writer, cells []string, widths []int) error {
	for i, raw := range cells {
		col := t.columns[i]
		cell := t.truncate(col, raw)

		// pad/align to computed width
		out := align(cell, widths[i], col.Align)

		// add spacing between columns
		if col.PaddingRight > 0 {
			out += strings.Repeat(" ", col.PaddingRight)
		}

		if _, err := io.WriteString(w, out); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (t *Table) writeSeparator(w io.Writer, widths []int) error {
	for i, col := range t.columns {
		dashes := strings.Repeat("-", widths[i])
		if col.PaddingRight > 0 {
			dashes += strings.Repeat(" ", col.PaddingRight)
		}
		if _, err := io.WriteString(w, dashes); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// truncate end-truncates s to the column's MaxWidth, keeping the ellipsis.
func (t *Table) truncate(col Column, s string) string {
	if col.MaxWidth <= 0 || runeLen(s) <= col.MaxWidth {
		return s
	}
	ell := col.Ellipsis
	if col.MaxWidth <= runeLen(ell) {
		return takeRunes(s, col.MaxWidth)
	}
	return takeRunes(s, col.MaxWidth-runeLen(ell)) + ell
}

func align(s string, width int, a Align) string {
	l := runeLen(s)
	if l >= width {
		return s
	}
	pad := strings.Repeat(" ", width-l)
	if a == AlignRight {
		return pad + s
	}
	return s + pad
}

func runeLen(s string) int {
	// rune count (Unicode-safe), not terminal cell width (wcwidth)
	return utf8.RuneCountInString(s)
}

func takeRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	// slice by scanning runes
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
