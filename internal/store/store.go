// ABOUTME: Store interfaces and data types for portim persistence
// ABOUTME: Defines Interface, Client, Session, Message structs and per-consumer store interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateClient is returned when a client with the same external id
// already exists within the project
var ErrDuplicateClient = errors.New("client already exists")

// Message status values. The status column is constrained to exactly these.
const (
	MessageStatusPending   = "pending"
	MessageStatusDelivered = "delivered"
	MessageStatusError     = "error"
)

// ValidMessageStatus reports whether s is one of the persisted status values.
func ValidMessageStatus(s string) bool {
	switch s {
	case MessageStatusPending, MessageStatusDelivered, MessageStatusError:
		return true
	}
	return false
}

// Interface is a registered endpoint participating in conversations.
// SecretHash/SecretSalt verify the interface's inbound shared secret.
// SecretToken is stored encrypted with IVToken; the registry decrypts it
// when the record is read back by an authorized caller.
type Interface struct {
	ID              string
	Name            string
	ProjectID       string
	EventEndpoint   string
	ControlEndpoint string
	Control         *string // default target for new sessions, nil if none
	ExternalIDField string
	AllowedIPs      []string
	SecretHash      string
	SecretSalt      string
	SecretToken     string
	IVToken         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Client is an end-user identity scoped to a project, keyed externally by
// the id extracted from inbound payloads.
type Client struct {
	ID         string
	ProjectID  string
	ExternalID string
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Session binds one client to a source/target interface pair.
// Source is immutable after creation; Target changes via pass-control.
type Session struct {
	ID        string
	Source    string
	Target    string
	ClientID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one directed delivery attempt. Content holds a fingerprint of
// the inbound body, never the payload itself.
type Message struct {
	ID        string
	SessionID string
	Sender    string
	Content   string
	Status    string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InterfaceStore defines interface persistence operations.
type InterfaceStore interface {
	CreateInterface(ctx context.Context, iface *Interface) error
	GetInterface(ctx context.Context, id string) (*Interface, error)
	UpdateInterface(ctx context.Context, iface *Interface) error
	DeleteInterface(ctx context.Context, id string) error
}

// ClientStore defines client persistence operations.
type ClientStore interface {
	CreateClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, id string) (*Client, error)
	GetClientByExternalID(ctx context.Context, projectID, externalID string) (*Client, error)
	UpdateClient(ctx context.Context, client *Client) error
	DeleteClient(ctx context.Context, id string) error
}

// SessionStore defines session persistence operations.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	GetSessionBySource(ctx context.Context, sourceID, clientID string) (*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id string) error
}

// MessageStore defines message persistence operations.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	UpdateMessage(ctx context.Context, msg *Message) error
	DeleteMessage(ctx context.Context, id string) error
}

// Store combines all persistence interfaces implemented by SQLiteStore.
type Store interface {
	InterfaceStore
	ClientStore
	SessionStore
	MessageStore
	Close() error
}
