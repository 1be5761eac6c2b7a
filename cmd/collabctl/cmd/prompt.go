package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/collabhub/collabhub/internal/api/auth"
)

// passwordPrompter reads passwords from the command's stdin. A terminal gets
// no-echo input; anything else is read line by line.
type passwordPrompter struct {
	out    io.Writer
	in     io.Reader
	reader *bufio.Reader
}

func newPasswordPrompter(cmd *cobra.Command) *passwordPrompter {
	return &passwordPrompter{out: cmd.OutOrStdout(), in: cmd.InOrStdin()}
}

// prompt prints label and reads one password.
func (p *passwordPrompter) prompt(label string) (string, error) {
	fmt.Fprint(p.out, label)

	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		passwordBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// newPassword prompts twice, validates and hashes the result.
func (p *passwordPrompter) newPassword(label string) (string, error) {
	password, err := p.prompt(label)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if err := auth.ValidatePasswordOrError(password); err != nil {
		return "", fmt.Errorf("invalid password: %w", err)
	}

	confirm, err := p.prompt("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}

	hash, err := auth.HashPassword(password, auth.DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return hash, nil
}
