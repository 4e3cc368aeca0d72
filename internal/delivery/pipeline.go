// ABOUTME: Message delivery pipeline: session resolution, persistence, next-hop, webhook
// ABOUTME: Records the message first, then attempts the outbound call and settles status

package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/catapio/portim/internal/store"
	"github.com/catapio/portim/internal/webhook"
)

// Pipeline errors
var (
	ErrInvalidBody   = errors.New("body is not valid JSON")
	ErrInvalidStatus = errors.New("invalid message status")
)

// Sessions defines what the pipeline needs from the session router.
type Sessions interface {
	Get(ctx context.Context, sessionID string) (*store.Session, error)
	FindBySource(ctx context.Context, sourceID, clientID string) (*store.Session, error)
	Create(ctx context.Context, clientID, sourceID, explicitTarget string) (*store.Session, error)
}

// Clients defines what the pipeline needs from the client resolver.
type Clients interface {
	Resolve(ctx context.Context, projectID, expr string, payload any) (*store.Client, error)
}

// Interfaces defines what the pipeline needs from the interface registry.
// Get returns records with the control token decrypted.
type Interfaces interface {
	Get(ctx context.Context, interfaceID string) (*store.Interface, error)
}

// Poster defines what the pipeline needs from the outbound HTTP client.
type Poster interface {
	Post(ctx context.Context, url string, body []byte, headers map[string]string) error
}

// Pipeline orchestrates one logical delivery per inbound message.
type Pipeline struct {
	messages   store.MessageStore
	sessions   Sessions
	clients    Clients
	interfaces Interfaces
	poster     Poster
	logger     *slog.Logger
}

// New creates a delivery Pipeline.
func New(messages store.MessageStore, sessions Sessions, clients Clients, interfaces Interfaces, poster Poster, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		messages:   messages,
		sessions:   sessions,
		clients:    clients,
		interfaces: interfaces,
		poster:     poster,
		logger:     logger.With("component", "delivery"),
	}
}

// CreateRequest contains everything needed to route one inbound message.
type CreateRequest struct {
	ProjectID string
	Sender    string // interface id that produced the message
	SessionID string // empty for sessionless messages
	Body      []byte // raw inbound payload, forwarded byte-identical
	Headers   map[string]string
}

// CreateMessage resolves the session, persists the message, forwards the
// body to the next hop, and settles delivery status.
//
// Key principle: record first, then act. The message row is written with
// status pending before the outbound call, so a record exists even when
// forwarding fails. Delivery failure is settled on the message, never
// returned to the sender whose message was accepted.
func (p *Pipeline) CreateMessage(ctx context.Context, req *CreateRequest) (*store.Message, error) {
	session, err := p.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	msg := &store.Message{
		SessionID: session.ID,
		Sender:    req.Sender,
		Content:   fingerprint(req.Body),
		Status:    store.MessageStatusPending,
	}
	if err := p.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	p.logger.Debug("message recorded", "id", msg.ID, "session_id", session.ID, "sender", req.Sender)

	if err := p.deliver(ctx, session, req); err != nil {
		msg.Status = store.MessageStatusError
		msg.Error = err.Error()
		p.logger.Info("delivery failed", "id", msg.ID, "session_id", session.ID, "error", err)
	} else {
		msg.Status = store.MessageStatusDelivered
	}

	if err := p.messages.UpdateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("settling message status: %w", err)
	}

	return msg, nil
}

// resolveSession fetches the session directly when an id was supplied, and
// otherwise resolves the client from the payload and finds or creates the
// sender's session for it.
func (p *Pipeline) resolveSession(ctx context.Context, req *CreateRequest) (*store.Session, error) {
	if req.SessionID != "" {
		return p.sessions.Get(ctx, req.SessionID)
	}

	sender, err := p.interfaces.Get(ctx, req.Sender)
	if err != nil {
		return nil, fmt.Errorf("fetching sender interface: %w", err)
	}

	var payload any
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	client, err := p.clients.Resolve(ctx, req.ProjectID, sender.ExternalIDField, payload)
	if err != nil {
		return nil, err
	}

	session, err := p.sessions.FindBySource(ctx, req.Sender, client.ID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	return p.sessions.Create(ctx, client.ID, req.Sender, "")
}

// deliver posts the raw body to the next hop's event endpoint.
func (p *Pipeline) deliver(ctx context.Context, session *store.Session, req *CreateRequest) error {
	// Messages bounce between the two parties on the session: the sender's
	// counterpart is whichever side it is not.
	destination := session.Target
	if req.Sender != session.Source {
		destination = session.Source
	}

	dest, err := p.interfaces.Get(ctx, destination)
	if err != nil {
		return fmt.Errorf("fetching destination interface: %w", err)
	}

	headers := map[string]string{
		webhook.SessionIDHeader: session.ID,
		webhook.TokenHeader:     dest.SecretToken,
	}
	// Caller headers merged last, so they win on collision
	for key, value := range req.Headers {
		headers[key] = value
	}

	return p.poster.Post(ctx, dest.EventEndpoint, req.Body, headers)
}

// GetMessage fetches a message by id.
func (p *Pipeline) GetMessage(ctx context.Context, messageID string) (*store.Message, error) {
	return p.messages.GetMessage(ctx, messageID)
}

// UpdateStatus sets a message's status explicitly. Only the three persisted
// status values are accepted; re-opening a settled message to pending is
// allowed and last-write-wins.
func (p *Pipeline) UpdateStatus(ctx context.Context, messageID, status string) (*store.Message, error) {
	if !store.ValidMessageStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	msg, err := p.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	msg.Status = status
	if status != store.MessageStatusError {
		msg.Error = ""
	}
	if err := p.messages.UpdateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	return msg, nil
}

// DeleteMessage removes a message.
func (p *Pipeline) DeleteMessage(ctx context.Context, messageID string) error {
	return p.messages.DeleteMessage(ctx, messageID)
}

// fingerprint is the one-way content digest stored on the message. The raw
// bytes are hashed, not a re-marshaled form, so identical bodies always
// produce identical digests.
func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
