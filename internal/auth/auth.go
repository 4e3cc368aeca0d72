// ABOUTME: Single authentication entry point dispatching on the auth scheme
// ABOUTME: Bearer tokens yield a User outcome; Basic credentials yield an Interface outcome

package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/catapio/portim/internal/secrets"
	"github.com/catapio/portim/internal/store"
)

// Authentication errors
var (
	ErrNoCredentials  = errors.New("no credentials provided")
	ErrBadCredentials = errors.New("invalid credentials")
)

// Kind discriminates the two caller identities.
type Kind string

const (
	KindUser      Kind = "user"
	KindInterface Kind = "interface"
)

// Outcome is the tagged result of authentication. Exactly one of User or
// Interface is set, according to Kind.
type Outcome struct {
	Kind      Kind
	User      *User
	Interface *store.Interface
}

// Allowed reports whether the caller may act on the given project.
// Users are checked against their memberships; interfaces are scoped to
// exactly the project that owns them.
func (o *Outcome) Allowed(projectID string) bool {
	switch o.Kind {
	case KindUser:
		return o.User.MemberOf(projectID)
	case KindInterface:
		return o.Interface.ProjectID == projectID
	}
	return false
}

// Authenticator resolves Authorization headers into Outcomes.
type Authenticator struct {
	verifier   TokenVerifier
	interfaces store.InterfaceStore
}

// NewAuthenticator creates an Authenticator backed by the given token
// verifier and interface lookup.
func NewAuthenticator(verifier TokenVerifier, interfaces store.InterfaceStore) *Authenticator {
	return &Authenticator{
		verifier:   verifier,
		interfaces: interfaces,
	}
}

// Authenticate inspects the Authorization header and dispatches on scheme.
// "Bearer" tokens are verified against the identity provider; "Basic"
// credentials carry an interface id as username and its shared secret as
// password.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*Outcome, error) {
	if header == "" {
		return nil, ErrNoCredentials
	}

	scheme, value, found := strings.Cut(header, " ")
	if !found || value == "" {
		return nil, ErrBadCredentials
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		return a.authenticateBearer(value)
	case "basic":
		return a.authenticateBasic(ctx, value)
	}
	return nil, ErrBadCredentials
}

func (a *Authenticator) authenticateBearer(token string) (*Outcome, error) {
	user, err := a.verifier.Verify(token)
	if err != nil {
		return nil, ErrBadCredentials
	}
	return &Outcome{Kind: KindUser, User: user}, nil
}

func (a *Authenticator) authenticateBasic(ctx context.Context, encoded string) (*Outcome, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrBadCredentials
	}

	interfaceID, secret, found := strings.Cut(string(decoded), ":")
	if !found || interfaceID == "" {
		return nil, ErrBadCredentials
	}

	iface, err := a.interfaces.GetInterface(ctx, interfaceID)
	if err != nil {
		// Unknown interface reads the same as a wrong secret to the caller
		return nil, ErrBadCredentials
	}

	if !secrets.Verify(secret, iface.SecretHash, iface.SecretSalt) {
		return nil, ErrBadCredentials
	}

	return &Outcome{Kind: KindInterface, Interface: iface}, nil
}

// AllowedIP reports whether remoteAddr passes the interface's IP allowlist.
// An empty allowlist admits any address. Only interface outcomes are
// restricted; users always pass.
func (o *Outcome) AllowedIP(remoteIP string) bool {
	if o.Kind != KindInterface || len(o.Interface.AllowedIPs) == 0 {
		return true
	}
	for _, ip := range o.Interface.AllowedIPs {
		if ip == remoteIP {
			return true
		}
	}
	return false
}
