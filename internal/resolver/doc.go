// Package resolver turns inbound payloads into persisted client identities.
//
// Each interface configures a path expression locating the client identifier
// inside its payloads. Resolve evaluates the expression, looks the client up
// by (project, external id), and creates one with empty metadata on first
// contact. The duplicate-insert race between concurrent first messages is
// absorbed by refetching the winner's row.
package resolver
