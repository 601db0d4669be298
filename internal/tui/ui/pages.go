package ui

import "github.com/rivo/tview"

// Pages switches between top-level sections and keeps a drill-down stack
// on top of the active one.
type Pages struct {
	*tview.Pages
	section  string
	stack    []string
	onChange func(path []string)
}

// NewPages creates an empty page manager.
func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange sets a callback fired with the new path after every move.
func (p *Pages) SetOnChange(fn func(path []string)) {
	p.onChange = fn
}

// Section shows a top-level page and drops any drill-down pages.
func (p *Pages) Section(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	if p.section != "" {
		p.HidePage(p.section)
	}
	p.section, p.stack = name, nil
	p.ShowPage(name)
	p.SendToFront(name)
	p.notify()
}

// Push shows a drill-down page above the current one.
func (p *Pages) Push(name string) {
	p.HidePage(p.Current())
	p.stack = append(p.stack, name)
	p.ShowPage(name)
	p.SendToFront(name)
	p.notify()
}

// Pop returns to the page below the top one. It reports false at section level.
func (p *Pages) Pop() bool {
	if len(p.stack) == 0 {
		return false
	}
	p.HidePage(p.stack[len(p.stack)-1])
	p.stack = p.stack[:len(p.stack)-1]
	current := p.Current()
	p.ShowPage(current)
	p.SendToFront(current)
	p.notify()
	return true
}

// Current returns the visible page.
func (p *Pages) Current() string {
	if len(p.stack) > 0 {
		return p.stack[len(p.stack)-1]
	}
	return p.section
}

// CurrentSection returns the active top-level page.
func (p *Pages) CurrentSection() string {
	return p.section
}

// Path returns the section followed by the drill-down stack.
func (p *Pages) Path() []string {
	return append([]string{p.section}, p.stack...)
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Path())
	}
}
