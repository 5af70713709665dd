package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/kinofiles/kinosync/internal/config"
	"github.com/kinofiles/kinosync/internal/core"
)

// terminalConfirmer asks a yes/no question on the terminal. Anything other
// than y/yes declines, as does a read error.
type terminalConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalConfirmer(in io.Reader, out io.Writer) *terminalConfirmer {
	return &terminalConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *terminalConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)

	input, err := c.in.ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(c.out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// stdinIsTerminal is swapped out by tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// commandConfirmer returns the confirmer for mutating commands: --yes skips
// the prompt, a non-interactive stdin declines.
func commandConfirmer() core.Confirmer {
	if assumeYes {
		return core.AlwaysConfirm
	}
	if !stdinIsTerminal() {
		return core.ConfirmFunc(func(prompt string) bool {
			fmt.Fprintf(os.Stderr, "%s\nNo terminal to confirm on; pass --yes to proceed.\n", prompt)
			return false
		})
	}
	return newTerminalConfirmer(os.Stdin, os.Stderr)
}

// ensureProxyPassword prompts for the proxy password when an authenticating
// proxy is configured without one. The password is kept in memory only.
func ensureProxyPassword(cfg *config.Config) error {
	if !cfg.NeedsProxyPassword() {
		return nil
	}

	if !stdinIsTerminal() {
		return fmt.Errorf("proxy user %q needs a password: set %s", cfg.ProxyUser, config.EnvProxyPassword)
	}

	fmt.Fprintf(os.Stderr, "Proxy password for %s: ", cfg.ProxyUser)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read proxy password: %w", err)
	}
	cfg.ProxyPassword = string(password)
	return nil
}
