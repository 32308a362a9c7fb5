package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SESSION_DB_DSN", "SESSION_DB_DIALECT", "SESSION_DB_ADDR", "SESSION_DB_NAME",
		"SESSION_TABLE", "SESSION_KEY_PATH", "SESSION_REDIS_ADDR",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestLoadEnvDefaultsAndOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_TABLE", "app_sessions")
	t.Setenv("SESSION_REDIS_ADDR", "redis:6379")

	cfg, err := loadEnv()
	if err != nil {
		t.Fatalf("loadEnv: %v", err)
	}
	if cfg.Table != "app_sessions" || cfg.RedisAddr != "redis:6379" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Dialect != "mysql" || cfg.Address != "127.0.0.1:3306" || cfg.Name != "sessions" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	clearEnv(t)
	if code, _, stderr := runCLI(t, "explode"); code != 2 || !strings.Contains(stderr, "unknown command") {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}
	if code, _, _ := runCLI(t); code != 2 {
		t.Fatalf("expected usage exit code, got %d", code)
	}
}

func TestSchemaPrintsDDL(t *testing.T) {
	clearEnv(t)
	code, stdout, stderr := runCLI(t, "schema", "-dialect", "sqlite", "-table", "web_sessions")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, `CREATE TABLE IF NOT EXISTS "web_sessions"`) {
		t.Fatalf("unexpected DDL:\n%s", stdout)
	}

	code, stdout, _ = runCLI(t, "schema")
	if code != 0 || !strings.Contains(stdout, "ENGINE=InnoDB") {
		t.Fatalf("expected mysql DDL by default, got:\n%s", stdout)
	}

	if code, _, _ := runCLI(t, "schema", "-table", "x;y"); code != 1 {
		t.Fatalf("expected invalid table to fail, got %d", code)
	}
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "key")

	code, stdout, stderr := runCLI(t, "keygen", "-key", path)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "fingerprint") {
		t.Fatalf("unexpected output %q", stdout)
	}
	before, _ := os.ReadFile(path)

	if code, _, _ := runCLI(t, "keygen", "-key", path); code != 1 {
		t.Fatalf("expected second keygen to fail, got %d", code)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Fatal("existing key was overwritten")
	}
}

func TestMigrateStatsGCAgainstSQLite(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("SESSION_DB_DIALECT", "sqlite")
	t.Setenv("SESSION_DB_DSN", filepath.Join(dir, "sessions.db"))
	t.Setenv("SESSION_KEY_PATH", filepath.Join(dir, "key"))

	if code, _, stderr := runCLI(t, "migrate"); code != 1 || !strings.Contains(stderr, "key") {
		t.Fatalf("migrate without a key must fail, code=%d stderr=%q", code, stderr)
	}

	code, stdout, stderr := runCLI(t, "migrate", "-create-key")
	if code != 0 {
		t.Fatalf("migrate exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "table sessions ready") {
		t.Fatalf("unexpected migrate output %q", stdout)
	}

	code, stdout, stderr = runCLI(t, "stats")
	if code != 0 {
		t.Fatalf("stats exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "sessions=0") {
		t.Fatalf("unexpected stats output %q", stdout)
	}

	code, stdout, stderr = runCLI(t, "gc", "-max-lifetime", "0")
	if code != 0 {
		t.Fatalf("gc exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "removed 0") {
		t.Fatalf("unexpected gc output %q", stdout)
	}

	if code, _, _ := runCLI(t, "gc", "-max-lifetime", "-5"); code != 1 {
		t.Fatalf("expected negative lifetime to fail, got %d", code)
	}
}

func TestLoadtestScratch(t *testing.T) {
	clearEnv(t)
	code, stdout, stderr := runCLI(t, "loadtest", "-sessions", "5", "-ops", "20", "-concurrency", "2", "-payload", "64")
	if code != 0 {
		t.Fatalf("loadtest exit %d: %s", code, stderr)
	}
	for _, want := range []string{"using miniredis", "read: ops=20 failures=0", "write: ops=20 failures=0", "gc: removed=0"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestLoadtestRejectsBadSizes(t *testing.T) {
	clearEnv(t)
	for _, args := range [][]string{
		{"-payload", "-1"},
		{"-sessions", "0"},
		{"-concurrency", "-2"},
	} {
		code, _, stderr := runCLI(t, append([]string{"loadtest"}, args...)...)
		if code != 1 || !strings.Contains(stderr, "payload >= 0") {
			t.Fatalf("%v: code=%d stderr=%q", args, code, stderr)
		}
	}
}

func TestPercentile(t *testing.T) {
	samples := make([]time.Duration, 10)
	for i := range samples {
		samples[i] = time.Duration(i+1) * time.Millisecond
	}
	if got := percentile(samples, 0); got != time.Millisecond {
		t.Fatalf("p0: got %s", got)
	}
	if got := percentile(samples, 50); got != 5*time.Millisecond {
		t.Fatalf("p50: got %s", got)
	}
	if got := percentile(samples, 100); got != 10*time.Millisecond {
		t.Fatalf("p100: got %s", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty: got %s", got)
	}
}
