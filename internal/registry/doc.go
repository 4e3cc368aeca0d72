// Package registry manages the catalog of registered interfaces.
//
// Beyond CRUD, the registry owns interface credentials: creating an
// interface issues its shared secret (returned once in plaintext, stored
// only as a hash/salt verifier) and encrypts the optional control token at
// rest. Reads decrypt the token for the caller; rotation overwrites the
// verifier immediately and re-encrypts the token under a fresh IV.
//
// Updates use partial-merge semantics: nil input fields keep stored values,
// and the control reference may be cleared with an explicit empty string.
package registry
