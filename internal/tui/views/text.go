package views

import (
	"strings"
	"time"
	"unicode/utf8"
)

// sanitize drops codepoints tcell renders badly: skin tone modifiers, zero
// width joiners and variation selectors. It also flattens newlines so a
// value fits in one table cell.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0x1F3FB && r <= 0x1F3FF,
			r == 0x200D,
			r >= 0xFE00 && r <= 0xFE0F,
			r >= 0xE0100 && r <= 0xE01EF:
			continue
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// formatWhen renders an RFC 3339 or unix-millisecond timestamp as the clock
// time for today and the date otherwise. Unparseable input is returned as is.
func formatWhen(raw string, ms int64, now time.Time) string {
	var t time.Time
	switch {
	case ms > 0:
		t = time.UnixMilli(ms)
	case raw != "":
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return raw
		}
		t = parsed.Local()
	default:
		return ""
	}
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("02/01 15:04")
}
