package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestPageBindingShadowsGlobal(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'r', Label: "r", Description: "global", Handler: func() { got = "global" }, Visible: true})
	r.AddPage("orders", &Action{Key: tcell.KeyRune, Rune: 'r', Label: "r", Description: "page", Handler: func() { got = "page" }, Visible: true})

	ev := tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)
	if !r.HandleEvent("orders", ev) || got != "page" {
		t.Errorf("orders page ran %q", got)
	}
	if !r.HandleEvent("rules", ev) || got != "global" {
		t.Errorf("rules page ran %q", got)
	}
	if r.HandleEvent("rules", tcell.NewEventKey(tcell.KeyRune, 'z', tcell.ModNone)) {
		t.Error("unbound key reported as handled")
	}
}

func TestHintsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Label: "q", Description: "Sair", Visible: true})
	r.AddGlobal(&Action{Key: tcell.KeyCtrlL, Label: "Ctrl-L", Description: "hidden"})
	r.AddPage("orders", &Action{Key: tcell.KeyEnter, Label: "Enter", Description: "Avançar", Visible: true})
	r.AddPage("orders", &Action{Key: tcell.KeyRune, Rune: 'p', Label: "p", Description: "Aprovar PIX", Visible: true})

	hints := r.Hints("orders")
	want := []string{"Enter", "p", "q"}
	if len(hints) != len(want) {
		t.Fatalf("hints = %+v", hints)
	}
	for i, h := range hints {
		if h.Key != want[i] {
			t.Errorf("hint %d = %s, want %s", i, h.Key, want[i])
		}
	}
}

func TestSpecialKeyMatching(t *testing.T) {
	a := &Action{Key: tcell.KeyEnter}
	if !a.Matches(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)) {
		t.Error("Enter did not match")
	}
	if a.Matches(tcell.NewEventKey(tcell.KeyRune, 'e', tcell.ModNone)) {
		t.Error("rune matched a special-key binding")
	}
}
