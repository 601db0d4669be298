package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppbot/internal/notify"
	"github.com/rivo/tview"
)

// FlashBar shows the current notice under the main area.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates the notice bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update renders n, or clears the bar when n is nil.
func (fb *FlashBar) Update(n *notify.Notice) {
	fb.Clear()
	if n == nil {
		return
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s %s[-]", Tag(fb.levelColor(n.Level)), levelIcon(n.Level), tview.Escape(n.Text))
}

func (fb *FlashBar) levelColor(l notify.Level) tcell.Color {
	switch l {
	case notify.Success:
		return fb.theme.FlashSuccessColor
	case notify.Warn:
		return fb.theme.FlashWarnColor
	case notify.Error:
		return fb.theme.FlashErrColor
	default:
		return fb.theme.FlashInfoColor
	}
}

func levelIcon(l notify.Level) string {
	switch l {
	case notify.Success:
		return "✔"
	case notify.Warn:
		return "!"
	case notify.Error:
		return "✘"
	default:
		return "i"
	}
}
