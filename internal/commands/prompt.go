package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers from in, echoing prompts to errOut. Passwords are
// read with echo disabled when in is a terminal.
type prompter struct {
	in     io.Reader
	errOut io.Writer
	lines  *bufio.Reader
}

func newPrompter(in io.Reader, errOut io.Writer) *prompter {
	if in == nil {
		in = os.Stdin
	}
	return &prompter{in: in, errOut: errOut, lines: bufio.NewReader(in)}
}

// line prompts for one line of input.
func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.errOut, "%s: ", label)
	s, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// password prompts for a password.
func (p *prompter) password() (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.errOut, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.errOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return p.line("Password")
}

// credentials fills in whichever of email and password is missing.
func (p *prompter) credentials(email, password string) (string, string, error) {
	var err error
	if strings.TrimSpace(email) == "" {
		if email, err = p.line("Email"); err != nil {
			return "", "", err
		}
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", "", errors.New("email required")
	}
	if password == "" {
		if password, err = p.password(); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		return "", "", errors.New("password required")
	}
	return email, password, nil
}
