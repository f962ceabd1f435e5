package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter is the operator interaction capability. Configuration providers
// only talk to the operator through it, so a scripted implementation can
// drive them in tests.
type Prompter interface {
	// Ask prints a prompt and returns the operator's line, trimmed.
	Ask(prompt string) (string, error)
	// AskSecret is Ask without echoing the input.
	AskSecret(prompt string) (string, error)
	// Confirm asks a yes/no question.
	Confirm(prompt string) (bool, error)
	// Say prints a line to the operator.
	Say(format string, args ...any)
}

// Terminal prompts on stdin/stdout.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminal() *Terminal {
	return &Terminal{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (t *Terminal) Ask(prompt string) (string, error) {
	fmt.Fprintf(t.out, "\n%s: ", prompt)
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) AskSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return t.Ask(prompt)
	}
	fmt.Fprintf(t.out, "\n%s: ", prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func (t *Terminal) Confirm(prompt string) (bool, error) {
	answer, err := t.Ask(prompt + " (y/n)")
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(answer), "y"), nil
}

func (t *Terminal) Say(format string, args ...any) {
	fmt.Fprintf(t.out, format+"\n", args...)
}
