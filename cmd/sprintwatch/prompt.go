package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/sprintwatch/internal/auth"
)

var errAdminRequired = errors.New("this command requires an admin account")

// prompter reads answers from the command's stdin. Passwords are read
// without echo when stdin is a terminal.
type prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{in: in, out: cmd.ErrOrStderr(), reader: bufio.NewReader(in)}
}

func (p *prompter) line(label string) (string, error) {
	if _, err := fmt.Fprint(p.out, label); err != nil {
		return "", err
	}
	s, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) password(label string) (string, error) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.line(label)
	}
	if _, err := fmt.Fprint(p.out, label); err != nil {
		return "", err
	}
	b, err := term.ReadPassword(int(f.Fd()))
	if _, perr := fmt.Fprintln(p.out); perr != nil {
		_ = perr
	}
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// login prompts for any missing credentials and authenticates them.
func login(p *prompter, users *auth.Provider, username string) (auth.Identity, error) {
	var err error
	if strings.TrimSpace(username) == "" {
		if username, err = p.line("Username: "); err != nil {
			return auth.Identity{}, err
		}
	}
	password, err := p.password("Password: ")
	if err != nil {
		return auth.Identity{}, err
	}
	id, status, err := users.Authenticate(username, password)
	if status != auth.StatusSuccess {
		return auth.Identity{}, err
	}
	return id, nil
}

func loginAdmin(p *prompter, users *auth.Provider) (auth.Identity, error) {
	id, err := login(p, users, loginUser)
	if err != nil {
		return auth.Identity{}, err
	}
	if !id.IsAdmin {
		return auth.Identity{}, errAdminRequired
	}
	return id, nil
}
