// Package secrets implements the interface credential scheme.
//
// Two independent mechanisms live here:
//
//   - Shared secrets: Issue generates a random secret returned once in
//     plaintext alongside a (hash, salt) verifier pair. The hash is
//     HMAC-SHA256 over the secret keyed by the salt. Verify recomputes the
//     digest and compares in constant time. Rotation overwrites the pair
//     with no grace window.
//
//   - Control tokens: Cipher encrypts tokens at rest with AES-256-CBC. The
//     key is derived from a configured passphrase via PBKDF2 and injected at
//     construction; a missing passphrase fails startup. Every encryption
//     draws a fresh IV, stored alongside the ciphertext.
package secrets
