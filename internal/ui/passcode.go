package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tonsigner/tonsigner/internal/signer"
	"golang.org/x/term"
)

// ErrNotInteractive means secrets cannot be read without echo.
var ErrNotInteractive = errors.New("stdin is not a terminal")

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadSecret prints prompt to out and reads one line from in without echo.
func ReadSecret(in *os.File, out io.Writer, prompt string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNotInteractive
	}
	fmt.Fprint(out, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// TerminalPasscode asks for a wallet passcode on the terminal.
func TerminalPasscode(in *os.File, out io.Writer) signer.PasscodePrompt {
	return func(ctx context.Context, walletID string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return ReadSecret(in, out, fmt.Sprintf("Passcode for %s: ", walletID))
	}
}
