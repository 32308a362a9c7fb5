package goSession

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/MrEthical07/goSession/keyfile"
)

// Stored ciphertext layout:
//
//	v1:<base64url(nonce || sealed || tag)>
//
// The associated data binds a ciphertext to the session id it was written
// under, so a row copied to another id fails authentication.
const (
	envelopeV1     = "v1:"
	envelopeAADTag = "goSession/v1\x00"
)

var envelopeEncoding = base64.RawURLEncoding.Strict()

func sealEnvelope(key *keyfile.Key, id string, payload []byte) (string, error) {
	sealed, err := key.Seal(payload, envelopeAAD(id))
	if err != nil {
		return "", err
	}
	return envelopeV1 + envelopeEncoding.EncodeToString(sealed), nil
}

func openEnvelope(key *keyfile.Key, id, stored string) ([]byte, error) {
	body, ok := strings.CutPrefix(stored, envelopeV1)
	if !ok {
		return nil, fmt.Errorf("%w: unknown envelope version", ErrDecryption)
	}

	sealed, err := envelopeEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	payload, err := key.Open(sealed, envelopeAAD(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return payload, nil
}

func envelopeAAD(id string) []byte {
	aad := make([]byte, 0, len(envelopeAADTag)+len(id))
	aad = append(aad, envelopeAADTag...)
	return append(aad, id...)
}

// envelopeSize is the stored length of a payload of n bytes.
func envelopeSize(n int) int {
	return len(envelopeV1) + envelopeEncoding.EncodedLen(n+keyfile.Overhead)
}

// fingerprint identifies a session id in logs and audit events without
// revealing it.
func fingerprint(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:6])
}
