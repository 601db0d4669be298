package views

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/tui/ui"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"olá", "olá"},
		{"\U0001F44D\U0001F3FB", "\U0001F44D"},
		{"a\u200db", "ab"},
		{"linha1\nlinha2", "linha1 linha2"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("pão de queijo", 5); got != "pão …" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("pão", 5); got != "pão" {
		t.Errorf("truncate = %q", got)
	}
}

func TestFormatWhen(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.Local)
	today := time.Date(2026, 3, 10, 9, 5, 0, 0, time.Local)
	if got := formatWhen("", today.UnixMilli(), now); got != "09:05" {
		t.Errorf("today = %q", got)
	}
	earlier := time.Date(2026, 3, 2, 9, 5, 0, 0, time.Local)
	if got := formatWhen(earlier.Format(time.RFC3339), 0, now); got != "02/03 09:05" {
		t.Errorf("earlier = %q", got)
	}
	if got := formatWhen("ontem", 0, now); got != "ontem" {
		t.Errorf("unparseable = %q", got)
	}
}

func TestRenderQR(t *testing.T) {
	art, err := renderQR("2@abc,def")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(art, "\n"), "\n")
	if len(lines) < 10 || !strings.ContainsAny(art, "█▀▄") {
		t.Errorf("unexpected QR rendering:\n%s", art)
	}
}

func TestOrdersViewPartition(t *testing.T) {
	v := NewOrdersView(ui.DefaultTheme())
	s := dashboard.NewState("u1")
	s.Orders = []model.Order{
		{ID: "1", Status: model.StatusPending},
		{ID: "2", Status: model.StatusDelivered},
		{ID: "3", Status: model.StatusReady},
	}

	v.Render(s)
	if len(v.visible) != 2 {
		t.Errorf("active view shows %d orders", len(v.visible))
	}
	if o, ok := v.Selected(); !ok || o.ID != "1" {
		t.Errorf("selected = %+v, %v", o, ok)
	}

	s.ShowCompleted = true
	v.Render(s)
	if len(v.visible) != 1 || v.visible[0].ID != "2" {
		t.Errorf("delivered view = %+v", v.visible)
	}
}

func TestContactsFilter(t *testing.T) {
	v := NewContactsView(ui.DefaultTheme())
	s := dashboard.NewState("u1")
	s.Contacts = []model.Contact{
		{Number: "5511999990000", Name: "Ana"},
		{Number: "5521988880000", Name: "Bruno"},
	}
	v.SetFilter("ana")
	v.Render(s)
	if got := v.Selected(); got != "5511999990000" {
		t.Errorf("selected = %q", got)
	}
	v.SetFilter("5521")
	v.Render(s)
	if got := v.Selected(); got != "5521988880000" {
		t.Errorf("selected = %q", got)
	}
}

func TestRequestsViewHidesResolved(t *testing.T) {
	v := NewRequestsView(ui.DefaultTheme())
	s := dashboard.NewState("u1")
	s.HelpRequests = []model.HelpRequest{{ID: "a", Resolved: true}, {ID: "b"}}
	v.Render(s)
	if got := v.Selected(); got != "b" {
		t.Errorf("selected = %q", got)
	}
}
