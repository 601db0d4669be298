package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
)

type column struct {
	title string
	exp   int
	align int
}

func newTable(theme *ui.Theme, title string) *tview.Table {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(title)
	table.SetTitleColor(theme.TitleColor)
	return table
}

func setHeader(table *tview.Table, theme *ui.Theme, cols []column) {
	for i, c := range cols {
		table.SetCell(0, i, tview.NewTableCell(" "+c.title).
			SetSelectable(false).
			SetTextColor(theme.TableHeaderFg).
			SetBackgroundColor(theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(c.exp).
			SetAlign(c.align))
	}
}

func cell(text string, color tcell.Color, c column) *tview.TableCell {
	return tview.NewTableCell(" " + tview.Escape(sanitize(text))).
		SetTextColor(color).
		SetExpansion(c.exp).
		SetAlign(c.align)
}

// clampSelection keeps the cursor on a data row after the table shrank.
func clampSelection(table *tview.Table, rows int) {
	row, _ := table.GetSelection()
	switch {
	case rows == 0:
		table.Select(0, 0)
	case row < 1:
		table.Select(1, 0)
	case row > rows:
		table.Select(rows, 0)
	}
}

// selectedIndex returns the zero-based data row under the cursor, or -1.
func selectedIndex(table *tview.Table, rows int) int {
	row, _ := table.GetSelection()
	if row < 1 || row > rows {
		return -1
	}
	return row - 1
}
