package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary   = lipgloss.Color("39")  // TON blue
	ColorSuccess   = lipgloss.Color("35")  // Green
	ColorWarning   = lipgloss.Color("214") // Gold/yellow
	ColorError     = lipgloss.Color("196") // Red
	ColorDim       = lipgloss.Color("241") // Gray
	ColorHighlight = lipgloss.Color("117") // Light blue
)

const (
	SymbolPrompt = "❯"
	SymbolArrow  = "▸"
	SymbolCheck  = "✓"
	SymbolCross  = "✗"
	SymbolFrame  = "◐"
)

var (
	PromptStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// QRStyle frames the rotating Keystone code.
	QRStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		Padding(0, 1)

	DeeplinkStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Underline(true)

	SelectorCursor = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	SelectorItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SelectorDim = lipgloss.NewStyle().
			Foreground(ColorDim)

	SelectorActive = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Bold(true)
)
