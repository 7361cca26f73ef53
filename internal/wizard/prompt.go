package wizard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/remiblancher/easyca/internal/caerr"
	"github.com/remiblancher/easyca/internal/cli"
)

// ErrInputClosed is returned when the input ends in the middle of a prompt.
var ErrInputClosed = errors.New("input closed")

// Prompter reads answers line by line and writes prompts.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompter returns a Prompter over in and out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Out returns the output writer.
func (p *Prompter) Out() io.Writer {
	return p.out
}

// Ask prints label and returns the trimmed answer.
func (p *Prompter) Ask(label string) (string, error) {
	_, _ = fmt.Fprintf(p.out, "%s: ", label)
	if !p.in.Scan() {
		_, _ = fmt.Fprintln(p.out)
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
		return "", ErrInputClosed
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// AskDefault is Ask with a value used when the answer is empty.
func (p *Prompter) AskDefault(label, def string) (string, error) {
	if def != "" {
		label = fmt.Sprintf("%s [%s]", label, def)
	}
	answer, err := p.Ask(label)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// AskDays asks for a positive number of days, re-prompting until one is given.
func (p *Prompter) AskDays(label string, def int) (int, error) {
	for {
		answer, err := p.AskDefault(label, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		days, err := ParseDays(answer)
		if err == nil {
			return days, nil
		}
		p.invalid(err)
	}
}

// Choose lists options numbered from 1 and returns the 0-based index of
// the selected one, re-prompting until a valid index is given.
func (p *Prompter) Choose(title string, options []string, label string) (int, error) {
	_, _ = fmt.Fprintln(p.out, title)
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.out, "%d. %s\n", i+1, opt)
	}
	for {
		answer, err := p.Ask(label)
		if err != nil {
			return 0, err
		}
		idx, err := ParseIndex(answer, len(options))
		if err == nil {
			return idx, nil
		}
		p.invalid(err)
	}
}

func (p *Prompter) invalid(err error) {
	var e *caerr.Error
	if errors.As(err, &e) && e.Err != nil {
		err = e.Err
	}
	cli.Warnf(p.out, "Invalid input: %v", err)
}

// ParseIndex converts a 1-based answer into a 0-based index below n.
func ParseIndex(answer string, n int) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		return 0, caerr.Newf("choose", answer, caerr.ErrUserInput, "%q is not a number", answer)
	}
	if i < 1 || i > n {
		return 0, caerr.Newf("choose", answer, caerr.ErrUserInput, "choose a number between 1 and %d", n)
	}
	return i - 1, nil
}

// ParseDays converts an answer into a positive number of days.
func ParseDays(answer string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		return 0, caerr.Newf("days", answer, caerr.ErrUserInput, "%q is not a number", answer)
	}
	if days <= 0 {
		return 0, caerr.Newf("days", answer, caerr.ErrUserInput, "validity must be positive")
	}
	return days, nil
}
