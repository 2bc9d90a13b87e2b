package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// maxInputLen fits a long single-part UR or a Ledger body BOC.
const maxInputLen = 8192

// Prompt is the single-line paste field of a confirm screen.
type Prompt struct {
	input   textinput.Model
	width   int
	focused bool
}

// NewPrompt creates a focused prompt showing placeholder while empty.
func NewPrompt(placeholder string) Prompt {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = maxInputLen
	ti.Width = 80
	ti.Focus()

	return Prompt{
		input:   ti,
		width:   80,
		focused: true,
	}
}

// Focus sets focus on the prompt
func (p *Prompt) Focus() tea.Cmd {
	p.focused = true
	return p.input.Focus()
}

// Blur removes focus from the prompt
func (p *Prompt) Blur() {
	p.focused = false
	p.input.Blur()
}

func (p *Prompt) SetWidth(w int) {
	p.width = w
	p.input.Width = w - 4
}

// Value is the trimmed input.
func (p *Prompt) Value() string {
	return strings.TrimSpace(p.input.Value())
}

// SetValue sets the input value
func (p *Prompt) SetValue(s string) {
	p.input.SetValue(s)
}

// Reset clears the input
func (p *Prompt) Reset() {
	p.input.Reset()
}

// Update handles input events
func (p *Prompt) Update(msg tea.Msg) (*Prompt, tea.Cmd) {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *Prompt) View() string {
	style := SelectorDim
	if p.focused {
		style = PromptStyle
	}
	return style.Render(SymbolPrompt) + " " + p.input.View()
}
