package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tonsigner/tonsigner/internal/wallet"
)

// ErrSelectionCanceled is returned when the user leaves the picker.
var ErrSelectionCanceled = errors.New("selection canceled")

// WalletSelector picks one wallet out of the stored credentials.
type WalletSelector struct {
	wallets  []wallet.Credential
	cursor   int
	selected int
	active   bool
}

// NewWalletSelector starts with the cursor on currentID when present.
func NewWalletSelector(wallets []wallet.Credential, currentID string) WalletSelector {
	cursor := 0
	for i, w := range wallets {
		if w.Identifier == currentID {
			cursor = i
			break
		}
	}
	return WalletSelector{wallets: wallets, cursor: cursor, selected: -1, active: true}
}

func (s WalletSelector) Init() tea.Cmd { return nil }

func (s WalletSelector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !s.active {
		return s, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}
	switch key.String() {
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		if s.cursor < len(s.wallets)-1 {
			s.cursor++
		}
	case "enter":
		s.selected = s.cursor
		s.active = false
		return s, tea.Quit
	case "esc", "q", "ctrl+c":
		s.selected = -1
		s.active = false
		return s, tea.Quit
	}
	return s, nil
}

// Selected returns the chosen wallet id, or empty if canceled.
func (s WalletSelector) Selected() string {
	if s.selected >= 0 && s.selected < len(s.wallets) {
		return s.wallets[s.selected].Identifier
	}
	return ""
}

func (s WalletSelector) View() string {
	if !s.active {
		return ""
	}

	var b strings.Builder
	b.WriteString(HelpStyle.Render("Select wallet (↑/↓ navigate, enter select, esc cancel)"))
	b.WriteString("\n\n")

	for i, w := range s.wallets {
		isCursor := i == s.cursor
		if isCursor {
			b.WriteString(SelectorCursor.Render(SymbolArrow) + " ")
		} else {
			b.WriteString("  ")
		}

		label := fmt.Sprintf("%-24s", w.Name)
		if isCursor {
			b.WriteString(SelectorActive.Render(label))
		} else {
			b.WriteString(SelectorItemStyle.Render(label))
		}
		b.WriteString(SelectorDim.Render(fmt.Sprintf("%s %s %s", w.Type, w.Version, w.Network)))
		b.WriteString("\n")
	}
	return b.String()
}

// SelectWallet runs the picker. A single wallet is returned without asking.
func SelectWallet(wallets []wallet.Credential, currentID string) (string, error) {
	switch len(wallets) {
	case 0:
		return "", wallet.ErrWalletNotFound
	case 1:
		return wallets[0].Identifier, nil
	}

	final, err := tea.NewProgram(NewWalletSelector(wallets, currentID)).Run()
	if err != nil {
		return "", err
	}
	id := final.(WalletSelector).Selected()
	if id == "" {
		return "", ErrSelectionCanceled
	}
	return id, nil
}
