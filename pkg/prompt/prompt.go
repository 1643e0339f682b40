// Package prompt collects configuration values interactively. It is a thin
// adapter: everything that can be tested lives behind the Prompter
// interface.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter supplies configuration values that were not provided up front.
type Prompter interface {
	// ReadLine asks for a plain value.
	ReadLine(label string) (string, error)
	// ReadPassword asks for a sensitive value; implementations must not
	// echo it.
	ReadPassword(label string) (string, error)
}

// ErrNonInteractive is returned when a value is required but prompting has
// been disabled.
var ErrNonInteractive = errors.New("value required but prompting is disabled")

// Terminal prompts on stderr and reads from stdin. Passwords are read
// without echo.
type Terminal struct {
	reader *bufio.Reader
}

func NewTerminal() *Terminal {
	return &Terminal{reader: bufio.NewReader(os.Stdin)}
}

func (t *Terminal) ReadLine(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, err := t.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) ReadPassword(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return string(b), nil
}

// NonInteractive refuses every prompt. Used when --no-input is set so CI
// runs fail fast instead of hanging on a prompt.
type NonInteractive struct{}

func (NonInteractive) ReadLine(label string) (string, error) {
	return "", fmt.Errorf("%s: %w", label, ErrNonInteractive)
}

func (NonInteractive) ReadPassword(label string) (string, error) {
	return "", fmt.Errorf("%s: %w", label, ErrNonInteractive)
}
