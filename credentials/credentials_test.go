package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleOptionFile = `
# provisioned by sessionctl
!includedir /etc/mysql/conf.d/
[mysql]
user = cli_only

[client]
user = sessions
password = "s3cret#with-hash"
skip-ssl

[gosession]
password = 'override'
`

func TestParseClientSection(t *testing.T) {
	creds, err := Parse([]byte(sampleOptionFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if creds.User != "sessions" {
		t.Fatalf("expected user sessions, got %q", creds.User)
	}
	if creds.Password != "s3cret#with-hash" {
		t.Fatalf("unexpected password %q", creds.Password)
	}
}

func TestParseLaterSectionsOverride(t *testing.T) {
	creds, err := Parse([]byte(sampleOptionFile), "client", "gosession")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if creds.User != "sessions" || creds.Password != "override" {
		t.Fatalf("unexpected credentials %+v", creds)
	}
}

func TestParseMissingUser(t *testing.T) {
	_, err := Parse([]byte("[client]\npassword = x\n"))
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := DefaultPath(dir)

	if _, err := Load(path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := os.WriteFile(path, []byte(sampleOptionFile), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	creds, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if creds.User != "sessions" {
		t.Fatalf("unexpected user %q", creds.User)
	}
	if filepath.Base(path) != ".my.cnf" {
		t.Fatalf("unexpected default file name %q", filepath.Base(path))
	}
}

func TestStringHidesPassword(t *testing.T) {
	c := Credentials{User: "u", Password: "hunter2"}
	if got := c.String(); got != "user=u" {
		t.Fatalf("unexpected String(): %q", got)
	}
}
