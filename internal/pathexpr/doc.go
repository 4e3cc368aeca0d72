// Package pathexpr parses and evaluates the path expressions interfaces use
// to locate a client identifier inside arbitrary inbound payloads.
//
// Grammar: $.segment(.segment)* — dot-separated identifiers, with numeric
// segments indexing into arrays. Expressions are parsed once into an
// accessor sequence and evaluated against decoded JSON values.
//
// Lookup distinguishes "absent" from "invalid": a malformed expression fails
// Parse with ErrInvalidPath, while a path that walks off the payload simply
// reports not-found.
package pathexpr
