package passphrase

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a keystore passphrase from an environment variable or
// by prompting on the terminal. The value is cached after the first successful
// retrieval.
type Source struct {
	envVar string
	label  string
	isTTY  func() bool
	read   func() ([]byte, error)

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a source that checks envVar before prompting for the
// passphrase of the named keystore.
func NewSource(envVar, label string) *Source {
	if strings.TrimSpace(label) == "" {
		label = "keystore"
	}
	fd := int(os.Stdin.Fd())
	return &Source{
		envVar: strings.TrimSpace(envVar),
		label:  label,
		isTTY:  func() bool { return term.IsTerminal(fd) },
		read:   func() ([]byte, error) { return term.ReadPassword(fd) },
	}
}

// Get returns the cached passphrase or resolves it on first use.
// Whitespace-only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}
		if !s.isTTY() {
			s.err = fmt.Errorf("%s passphrase required; set %s or run interactively", s.label, s.envVar)
			return
		}
		fmt.Fprintf(os.Stderr, "Enter %s passphrase: ", s.label)
		raw, err := s.read()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}
		if strings.TrimSpace(string(raw)) == "" {
			s.err = fmt.Errorf("%s passphrase cannot be empty", s.label)
			return
		}
		s.value = string(raw)
	})
	return s.value, s.err
}
