// Package auth authenticates inbound API requests.
//
// Two schemes share a single entry point, Authenticator.Authenticate,
// dispatched on the Authorization scheme prefix:
//
//   - Bearer: an HS256 JWT standing in for the identity provider. The token
//     carries the user id in "sub" and project memberships in "projects".
//
//   - Basic: the username is an interface id and the password is the
//     interface's plaintext shared secret, verified against the stored
//     hash/salt pair. Success scopes the caller to exactly that interface's
//     project.
//
// The result is a tagged Outcome (user or interface) attached to the request
// context by Middleware. Handlers retrieve it with FromContext.
package auth
