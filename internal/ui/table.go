package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// maxColumnWidth caps a column so wide cells don't blow out the terminal.
const maxColumnWidth = 48

// RenderTable renders rows as a non-interactive table. rows[0] is the header.
// Returns an empty string when there is no header.
func RenderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	header := rows[0]
	cols := make([]table.Column, len(header))
	for i, title := range header {
		cols[i] = table.Column{Title: title, Width: columnWidth(rows, i)}
	}

	body := make([]table.Row, 0, len(rows)-1)
	for _, r := range rows[1:] {
		row := make(table.Row, len(header))
		copy(row, r)
		body = append(body, row)
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(body),
		table.WithFocused(false),
		table.WithHeight(len(body)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true)
	// Unfocused tables still highlight the cursor row; neutralize it.
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	return t.View()
}

func columnWidth(rows [][]string, col int) int {
	width := 1
	for _, r := range rows {
		if col < len(r) {
			if w := runewidth.StringWidth(r[col]); w > width {
				width = w
			}
		}
	}
	if width > maxColumnWidth {
		width = maxColumnWidth
	}
	return width
}
