package keyfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// DefaultFileName is the key file name used under a home directory.
	DefaultFileName = ".gosession_key"

	creationMode os.FileMode = 0o600
	finalMode    os.FileMode = 0o400
)

// DefaultPath returns <homeDir>/.gosession_key.
func DefaultPath(homeDir string) string {
	return filepath.Join(homeDir, DefaultFileName)
}

// Create generates a new key and writes it to path.
//
// The file must not exist. It is created 0600, written and synced, then set to
// 0400. A file left incomplete by a failed write is removed; a failure after the
// key is fully on disk is reported without undoing the write.
func Create(path string) (*Key, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, creationMode)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrKeyIO, path, err)
	}

	// OpenFile's mode is filtered by umask; pin it before any key byte lands.
	if err := f.Chmod(creationMode); err != nil {
		discard(f, path)
		return nil, fmt.Errorf("%w: chmod %s: %v", ErrKeyIO, path, err)
	}

	key, err := Generate()
	if err != nil {
		discard(f, path)
		return nil, fmt.Errorf("%w: %v", ErrKeyIO, err)
	}

	if _, err := f.WriteString(key.Encode() + "\n"); err != nil {
		discard(f, path)
		return nil, fmt.Errorf("%w: write %s: %v", ErrKeyIO, path, err)
	}
	if err := f.Sync(); err != nil {
		discard(f, path)
		return nil, fmt.Errorf("%w: sync %s: %v", ErrKeyIO, path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: close %s: %v", ErrKeyIO, path, err)
	}

	if err := os.Chmod(path, finalMode); err != nil {
		return nil, fmt.Errorf("%w: chmod %s: %v", ErrKeyIO, path, err)
	}

	return key, nil
}

// Load reads and decodes the key stored at path.
//
// It returns [ErrKeyIO] when the file is missing, unreadable, or accessible by
// group or other, and [ErrKeyFormat] when the content does not decode.
func Load(path string) (*Key, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrKeyIO, path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrKeyIO, path)
	}
	if err := checkPermissions(info.Mode()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKeyIO, path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrKeyIO, path, err)
	}

	key, err := Decode(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// LoadOrCreate loads the key at path, creating it when the file does not exist.
// Provisioning is single-writer; concurrent callers on one path need external locking.
func LoadOrCreate(path string) (*Key, bool, error) {
	key, err := Load(path)
	if err == nil {
		return key, false, nil
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, fs.ErrNotExist) {
		return nil, false, err
	}

	key, err = Create(path)
	if err != nil {
		return nil, false, err
	}
	return key, true, nil
}

func checkPermissions(mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if perm := mode.Perm(); perm&0o077 != 0 {
		return fmt.Errorf("permissions %#o allow group or other access", perm)
	}
	return nil
}

func discard(f *os.File, path string) {
	_ = f.Close()
	_ = os.Remove(path)
}
