// Package credentials resolves the database user and password from a per-user
// MySQL option file such as ~/.my.cnf.
//
// Only the resolved pair leaves this package; the file format is an input detail.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// DefaultFileName is the option file looked up under the home directory.
const DefaultFileName = ".my.cnf"

var (
	// ErrNotFound is returned when the option file does not exist.
	ErrNotFound = errors.New("credentials: option file not found")
	// ErrIncomplete is returned when no section provides a user.
	ErrIncomplete = errors.New("credentials: user missing")
)

// Credentials is a resolved database login.
type Credentials struct {
	User     string
	Password string
}

// String never includes the password.
func (c Credentials) String() string {
	return "user=" + c.User
}

// DefaultPath returns <homeDir>/.my.cnf.
func DefaultPath(homeDir string) string {
	return filepath.Join(homeDir, DefaultFileName)
}

// Load reads user and password from the option file at path. Sections are
// consulted in order and later sections override earlier ones; with no
// sections given, [client] is used.
func Load(path string, sections ...string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Credentials{}, fmt.Errorf("credentials: read %s: %w", path, err)
	}
	return Parse(data, sections...)
}

// Parse extracts credentials from option-file content.
func Parse(data []byte, sections ...string) (Credentials, error) {
	if len(sections) == 0 {
		sections = []string{"client"}
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:          true,
		SkipUnrecognizableLines:   true,
		IgnoreInlineComment:       true,
		UnescapeValueDoubleQuotes: true,
	}, data)
	if err != nil {
		return Credentials{}, fmt.Errorf("credentials: parse: %w", err)
	}

	var creds Credentials
	for _, name := range sections {
		sec, err := cfg.GetSection(name)
		if err != nil {
			continue
		}
		if sec.HasKey("user") {
			creds.User = unquote(sec.Key("user").String())
		}
		if sec.HasKey("password") {
			creds.Password = unquote(sec.Key("password").String())
		}
	}

	if creds.User == "" {
		return Credentials{}, fmt.Errorf("%w in sections %s", ErrIncomplete, strings.Join(sections, ","))
	}
	return creds, nil
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v[1 : len(v)-1]
	}
	return v
}
