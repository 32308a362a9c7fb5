package keyfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func mustGenerate(t *testing.T) *Key {
	t.Helper()
	k, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return k
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	k := mustGenerate(t)

	encoded := k.Encode()
	if !strings.HasPrefix(encoded, "gsk1") {
		t.Fatalf("unexpected prefix: %q", encoded)
	}
	for _, r := range encoded {
		if r < 0x21 || r > 0x7e {
			t.Fatalf("encoded key contains non-printable rune %q", r)
		}
	}

	decoded, err := Decode(encoded + "\n")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !decoded.Equal(k) {
		t.Fatal("decoded key differs from original")
	}
	if decoded.Fingerprint() != k.Fingerprint() {
		t.Fatal("fingerprints differ for equal keys")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	valid := mustGenerate(t).Encode()
	flipped := []byte(valid)
	if flipped[10] == 'a' {
		flipped[10] = 'b'
	} else {
		flipped[10] = 'a'
	}

	cases := map[string]string{
		"empty":          "",
		"no prefix":      valid[4:],
		"wrong prefix":   "gsk2" + valid[4:],
		"not hex":        "gsk1" + strings.Repeat("zz", KeySize+checksumSize),
		"short":          valid[:len(valid)-2],
		"bad checksum":   string(flipped),
		"trailing bytes": valid + "00",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(in); !errors.Is(err, ErrKeyFormat) {
				t.Fatalf("expected ErrKeyFormat, got %v", err)
			}
		})
	}
}

func TestSealOpen(t *testing.T) {
	k := mustGenerate(t)
	aad := []byte("abc123")
	plaintext := []byte("name=alice")

	a, err := k.Seal(plaintext, aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, err := k.Seal(plaintext, aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same plaintext produced identical output")
	}
	if bytes.Contains(a, plaintext) {
		t.Fatal("sealed output contains plaintext")
	}
	if len(a) != len(plaintext)+Overhead {
		t.Fatalf("expected %d bytes, got %d", len(plaintext)+Overhead, len(a))
	}

	got, err := k.Open(a, aad)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("expected %q, got %q", plaintext, got)
	}
}

func TestOpenDetectsTampering(t *testing.T) {
	k := mustGenerate(t)
	sealed, err := k.Seal([]byte("payload"), []byte("sid"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	for i := range sealed {
		tampered := append([]byte(nil), sealed...)
		tampered[i] ^= 0x01
		if _, err := k.Open(tampered, []byte("sid")); !errors.Is(err, ErrOpen) {
			t.Fatalf("byte %d: expected ErrOpen, got %v", i, err)
		}
	}

	if _, err := k.Open(sealed, []byte("other")); !errors.Is(err, ErrOpen) {
		t.Fatalf("wrong associated data: expected ErrOpen, got %v", err)
	}
	if _, err := k.Open(sealed[:Overhead-1], []byte("sid")); !errors.Is(err, ErrOpen) {
		t.Fatalf("short input: expected ErrOpen, got %v", err)
	}
	if _, err := mustGenerate(t).Open(sealed, []byte("sid")); !errors.Is(err, ErrOpen) {
		t.Fatalf("foreign key: expected ErrOpen, got %v", err)
	}
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := FromBytes(make([]byte, KeySize-1)); !errors.Is(err, ErrKeyFormat) {
		t.Fatalf("expected ErrKeyFormat, got %v", err)
	}
}

func TestCreateAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")

	created, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o400 {
			t.Fatalf("expected mode 0400, got %#o", perm)
		}
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Equal(created) {
		t.Fatal("loaded key differs from created key")
	}
}

func TestCreateRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("occupied"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := Create(path); !errors.Is(err, ErrKeyIO) {
		t.Fatalf("expected ErrKeyIO, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "occupied" {
		t.Fatal("existing file was modified")
	}
}

func TestCreateFailsInMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "key")
	if _, err := Create(path); !errors.Is(err, ErrKeyIO) {
		t.Fatalf("expected ErrKeyIO, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "absent")); !errors.Is(err, ErrKeyIO) {
		t.Fatalf("missing file: expected ErrKeyIO, got %v", err)
	}

	garbage := filepath.Join(dir, "garbage")
	if err := os.WriteFile(garbage, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := Load(garbage); !errors.Is(err, ErrKeyFormat) {
		t.Fatalf("garbage: expected ErrKeyFormat, got %v", err)
	}

	if runtime.GOOS != "windows" {
		open := filepath.Join(dir, "open")
		if err := os.WriteFile(open, []byte(mustGenerate(t).Encode()), 0o644); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if err := os.Chmod(open, 0o644); err != nil {
			t.Fatalf("chmod: %v", err)
		}
		if _, err := Load(open); !errors.Is(err, ErrKeyIO) {
			t.Fatalf("world-readable: expected ErrKeyIO, got %v", err)
		}
	}

	if _, err := Load(dir); !errors.Is(err, ErrKeyIO) {
		t.Fatalf("directory: expected ErrKeyIO, got %v", err)
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")

	first, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if !created {
		t.Fatal("expected key to be created")
	}

	second, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if created {
		t.Fatal("expected existing key to be loaded")
	}
	if !first.Equal(second) {
		t.Fatal("LoadOrCreate returned a different key")
	}
}

func TestDefaultPath(t *testing.T) {
	got := DefaultPath(filepath.FromSlash("/home/alice"))
	want := filepath.Join(filepath.FromSlash("/home/alice"), ".gosession_key")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
