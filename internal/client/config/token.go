package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/stableftp/internal/common"
	"golang.org/x/term"
)

// ErrNoToken is returned when no source produced a token.
var ErrNoToken = errors.New("no token given: use -token or " + common.TokenEnvVar)

// Prompter asks the user for the token.
type Prompter func() (string, error)

// ResolveToken fills c.Token when it is still empty: first from the
// environment, then from prompt. prompt may be nil.
func (c *Config) ResolveToken(lookupEnv func(string) (string, bool), prompt Prompter) error {
	if c.Token != "" {
		return nil
	}
	if v, ok := lookupEnv(common.TokenEnvVar); ok && v != "" {
		c.Token = v
		return nil
	}
	if prompt == nil {
		return ErrNoToken
	}
	tok, err := prompt()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if tok = strings.TrimSpace(tok); tok == "" {
		return ErrNoToken
	}
	c.Token = tok
	return nil
}

// TerminalPrompt reads the token from in without echo. It returns nil when
// in is not a terminal.
func TerminalPrompt(in *os.File, out io.Writer) Prompter {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return func() (string, error) {
		fmt.Fprint(out, "Token: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
