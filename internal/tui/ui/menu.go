package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rivo/tview"
)

const menuRows = 6

// Menu lays keyboard hints out in columns of menuRows entries.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates the hint area of the header.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update renders hints column by column.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	cols := (len(hints) + menuRows - 1) / menuRows
	width := 0
	for _, h := range hints {
		width = max(width, utf8.RuneCountInString(h.Key+h.Description)+3)
	}

	var sb strings.Builder
	for row := 0; row < menuRows; row++ {
		for col := 0; col < cols; col++ {
			i := col*menuRows + row
			if i >= len(hints) {
				break
			}
			h := hints[i]
			color := m.theme.MenuKeyColor
			if h.Numeric {
				color = m.theme.NumericKeyColor
			}
			cell := fmt.Sprintf("<%s> %s", h.Key, h.Description)
			pad := strings.Repeat(" ", width-utf8.RuneCountInString(cell)+2)
			fmt.Fprintf(&sb, "[%s::b]<%s>[-:-:-] %s%s", Tag(color), tview.Escape(h.Key), h.Description, pad)
		}
		sb.WriteByte('\n')
	}
	_, _ = fmt.Fprint(m, sb.String())
}
