// Package keyfile creates, loads, and applies the symmetric key that protects stored sessions.
//
// # Key file format
//
// A key file holds one printable line:
//
//	gsk1<hex(key || checksum)>
//
// where key is 32 random bytes and checksum is the first four bytes of SHA-256(key).
// The checksum catches truncated or hand-edited files before the key is ever used.
//
// # Permissions
//
// [Create] opens the file exclusively with mode 0600, writes and syncs the key, then
// narrows the file to 0400. [Load] refuses files readable by group or other.
//
// # Architecture boundaries
//
// This package owns key material and the AEAD envelope (XChaCha20-Poly1305). It knows
// nothing about tables, session IDs, or transactions; callers pass associated data.
//
// # What this package must NOT do
//
//   - Overwrite an existing key file.
//   - Log or format key bytes anywhere except [Key.Encode].
//   - Import any other goSession package.
package keyfile
