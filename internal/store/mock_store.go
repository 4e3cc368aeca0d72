// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	interfaces  map[string]*Interface // keyed by interface ID
	clients     map[string]*Client    // keyed by client ID
	clientIndex map[string]string     // keyed by "projectID:externalID" -> client ID
	sessions    map[string]*Session   // keyed by session ID
	messages    map[string]*Message   // keyed by message ID

	// SessionUpdates counts UpdateSession calls, letting tests assert the
	// blank-target pass-control guard skips the store entirely.
	SessionUpdates int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		interfaces:  make(map[string]*Interface),
		clients:     make(map[string]*Client),
		clientIndex: make(map[string]string),
		sessions:    make(map[string]*Session),
		messages:    make(map[string]*Message),
	}
}

// CreateInterface stores a new interface.
func (m *MockStore) CreateInterface(ctx context.Context, iface *Interface) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if iface.ID == "" {
		iface.ID = uuid.New().String()
	}
	stamp(&iface.CreatedAt, &iface.UpdatedAt)

	// Make a copy to avoid external modification
	i := *iface
	m.interfaces[i.ID] = &i
	return nil
}

// GetInterface retrieves an interface by ID.
func (m *MockStore) GetInterface(ctx context.Context, id string) (*Interface, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.interfaces[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *i
	return &result, nil
}

// UpdateInterface updates an existing interface.
func (m *MockStore) UpdateInterface(ctx context.Context, iface *Interface) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.interfaces[iface.ID]; !ok {
		return ErrNotFound
	}

	iface.UpdatedAt = time.Now().UTC()
	i := *iface
	m.interfaces[i.ID] = &i
	return nil
}

// DeleteInterface removes an interface by ID.
func (m *MockStore) DeleteInterface(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.interfaces[id]; !ok {
		return ErrNotFound
	}
	delete(m.interfaces, id)
	return nil
}

// CreateClient stores a new client.
func (m *MockStore) CreateClient(ctx context.Context, client *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := client.ProjectID + ":" + client.ExternalID
	if _, ok := m.clientIndex[key]; ok {
		return ErrDuplicateClient
	}

	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	if client.Metadata == nil {
		client.Metadata = map[string]any{}
	}
	stamp(&client.CreatedAt, &client.UpdatedAt)

	c := *client
	m.clients[c.ID] = &c
	m.clientIndex[key] = c.ID
	return nil
}

// GetClient retrieves a client by ID.
func (m *MockStore) GetClient(ctx context.Context, id string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *c
	return &result, nil
}

// GetClientByExternalID retrieves a client by project and external ID.
func (m *MockStore) GetClientByExternalID(ctx context.Context, projectID, externalID string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clientID, ok := m.clientIndex[projectID+":"+externalID]
	if !ok {
		return nil, ErrNotFound
	}

	c, ok := m.clients[clientID]
	if !ok {
		return nil, ErrNotFound
	}

	result := *c
	return &result, nil
}

// UpdateClient updates an existing client.
func (m *MockStore) UpdateClient(ctx context.Context, client *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client.ID]; !ok {
		return ErrNotFound
	}

	client.UpdatedAt = time.Now().UTC()
	c := *client
	m.clients[c.ID] = &c
	return nil
}

// DeleteClient removes a client by ID.
func (m *MockStore) DeleteClient(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.clientIndex, c.ProjectID+":"+c.ExternalID)
	delete(m.clients, id)
	return nil
}

// CreateSession stores a new session.
func (m *MockStore) CreateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	stamp(&session.CreatedAt, &session.UpdatedAt)

	s := *session
	m.sessions[s.ID] = &s
	return nil
}

// GetSession retrieves a session by ID.
func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *s
	return &result, nil
}

// GetSessionBySource retrieves the session opened by sourceID for clientID.
func (m *MockStore) GetSessionBySource(ctx context.Context, sourceID, clientID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *Session
	for _, s := range m.sessions {
		if s.Source != sourceID || s.ClientID != clientID {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}

	result := *latest
	return &result, nil
}

// UpdateSession updates an existing session's target.
func (m *MockStore) UpdateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SessionUpdates++
	existing, ok := m.sessions[session.ID]
	if !ok {
		return ErrNotFound
	}

	existing.Target = session.Target
	existing.UpdatedAt = time.Now().UTC()
	session.UpdatedAt = existing.UpdatedAt
	return nil
}

// DeleteSession removes a session by ID.
func (m *MockStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// CreateMessage stores a new message.
func (m *MockStore) CreateMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Status == "" {
		msg.Status = MessageStatusPending
	}
	stamp(&msg.CreatedAt, &msg.UpdatedAt)

	c := *msg
	m.messages[c.ID] = &c
	return nil
}

// GetMessage retrieves a message by ID.
func (m *MockStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *msg
	return &result, nil
}

// UpdateMessage updates an existing message's status and error.
func (m *MockStore) UpdateMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.messages[msg.ID]
	if !ok {
		return ErrNotFound
	}

	existing.Status = msg.Status
	existing.Error = msg.Error
	existing.UpdatedAt = time.Now().UTC()
	msg.UpdatedAt = existing.UpdatedAt
	return nil
}

// DeleteMessage removes a message by ID.
func (m *MockStore) DeleteMessage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[id]; !ok {
		return ErrNotFound
	}
	delete(m.messages, id)
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

func stamp(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)
