package keyfile

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the length of raw key material in bytes.
	KeySize = chacha20poly1305.KeySize

	// NonceSize is the per-message random nonce length prepended to sealed output.
	NonceSize = chacha20poly1305.NonceSizeX

	// Overhead is the number of bytes Seal adds to a plaintext.
	Overhead = NonceSize + chacha20poly1305.Overhead

	encodingPrefix = "gsk1"
	checksumSize   = 4
)

var (
	// ErrKeyFormat is returned when encoded key material cannot be decoded.
	ErrKeyFormat = errors.New("keyfile: malformed key")
	// ErrKeyIO is returned when a key file cannot be created, read, or has unsafe permissions.
	ErrKeyIO = errors.New("keyfile: key file i/o")
	// ErrOpen is returned when a sealed message fails authentication.
	ErrOpen = errors.New("keyfile: message authentication failed")
)

// Key is an in-memory symmetric key bound to an XChaCha20-Poly1305 AEAD.
//
// A Key is safe for concurrent use.
type Key struct {
	raw  [KeySize]byte
	aead cipher.AEAD
}

// Generate returns a fresh key read from crypto/rand.
func Generate() (*Key, error) {
	var raw [KeySize]byte
	if _, err := io.ReadFull(rand.Reader, raw[:]); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return FromBytes(raw[:])
}

// FromBytes wraps raw key material. The slice is copied.
func FromBytes(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrKeyFormat, KeySize, len(raw))
	}

	k := &Key{}
	copy(k.raw[:], raw)

	aead, err := chacha20poly1305.NewX(k.raw[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	k.aead = aead
	return k, nil
}

// Decode parses the printable form produced by [Key.Encode]. Surrounding
// whitespace is ignored.
func Decode(s string) (*Key, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, encodingPrefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrKeyFormat, encodingPrefix)
	}

	body, err := hex.DecodeString(s[len(encodingPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	if len(body) != KeySize+checksumSize {
		return nil, fmt.Errorf("%w: unexpected length %d", ErrKeyFormat, len(body))
	}

	raw, sum := body[:KeySize], body[KeySize:]
	want := checksum(raw)
	if subtle.ConstantTimeCompare(sum, want[:]) != 1 {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrKeyFormat)
	}

	return FromBytes(raw)
}

// Encode returns the printable form of the key, suitable for a key file.
func (k *Key) Encode() string {
	sum := checksum(k.raw[:])
	body := make([]byte, 0, KeySize+checksumSize)
	body = append(body, k.raw[:]...)
	body = append(body, sum[:]...)
	return encodingPrefix + hex.EncodeToString(body)
}

// Fingerprint identifies the key without revealing it: hex of the first
// eight bytes of SHA-256 over the key.
func (k *Key) Fingerprint() string {
	sum := sha256.Sum256(k.raw[:])
	return hex.EncodeToString(sum[:8])
}

// Equal reports whether two keys hold the same material.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return k == other
	}
	return subtle.ConstantTimeCompare(k.raw[:], other.raw[:]) == 1
}

// Seal encrypts and authenticates plaintext together with additionalData.
// The output is nonce || ciphertext || tag; every call draws a new random nonce.
func (k *Key) Seal(plaintext, additionalData []byte) ([]byte, error) {
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return k.aead.Seal(out, out[:NonceSize], plaintext, additionalData), nil
}

// Open authenticates and decrypts output from [Key.Seal]. Any modification of
// sealed or additionalData yields [ErrOpen].
func (k *Key) Open(sealed, additionalData []byte) ([]byte, error) {
	if len(sealed) < Overhead {
		return nil, ErrOpen
	}
	plaintext, err := k.aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], additionalData)
	if err != nil {
		return nil, ErrOpen
	}
	return plaintext, nil
}

func checksum(raw []byte) [checksumSize]byte {
	full := sha256.Sum256(raw)
	var out [checksumSize]byte
	copy(out[:], full[:checksumSize])
	return out
}
