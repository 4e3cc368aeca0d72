// ABOUTME: Session lifecycle management: creation, lookup, and pass-control
// ABOUTME: Owns the source/target wiring that decides who talks to whom

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/catapio/portim/internal/store"
	"github.com/catapio/portim/internal/webhook"
)

// ErrNoControlInterface is returned when a session is created without an
// explicit target and the source interface has no control configured.
var ErrNoControlInterface = errors.New("interface must have a control interface as default")

// Notifier posts control hand-off notifications. Satisfied by webhook.Client.
type Notifier interface {
	Post(ctx context.Context, url string, body []byte, headers map[string]string) error
}

// Router owns session lifecycle and target reassignment.
type Router struct {
	sessions   store.SessionStore
	interfaces store.InterfaceStore
	notifier   Notifier
	logger     *slog.Logger
}

// NewRouter creates a session Router.
func NewRouter(sessions store.SessionStore, interfaces store.InterfaceStore, notifier Notifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		sessions:   sessions,
		interfaces: interfaces,
		notifier:   notifier,
		logger:     logger.With("component", "session"),
	}
}

// Create opens a session from sourceID for clientID. When explicitTarget is
// empty the source interface's configured control interface is used; with
// neither available the session cannot be routed and creation fails with
// ErrNoControlInterface.
func (r *Router) Create(ctx context.Context, clientID, sourceID, explicitTarget string) (*store.Session, error) {
	target := explicitTarget
	if target == "" {
		iface, err := r.interfaces.GetInterface(ctx, sourceID)
		if err != nil {
			return nil, fmt.Errorf("fetching source interface: %w", err)
		}
		if iface.Control == nil || *iface.Control == "" {
			return nil, ErrNoControlInterface
		}
		target = *iface.Control
	}

	session := &store.Session{
		Source:   sourceID,
		Target:   target,
		ClientID: clientID,
	}
	if err := r.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	r.logger.Debug("created session", "id", session.ID, "source", sourceID, "target", target)
	return session, nil
}

// Get fetches a session by id.
func (r *Router) Get(ctx context.Context, sessionID string) (*store.Session, error) {
	return r.sessions.GetSession(ctx, sessionID)
}

// FindBySource returns the session opened by sourceID for clientID, or
// store.ErrNotFound when none exists yet.
func (r *Router) FindBySource(ctx context.Context, sourceID, clientID string) (*store.Session, error) {
	return r.sessions.GetSessionBySource(ctx, sourceID, clientID)
}

// Delete removes a session.
func (r *Router) Delete(ctx context.Context, sessionID string) error {
	return r.sessions.DeleteSession(ctx, sessionID)
}

// PassControl reassigns the session's target interface. A blank target is a
// no-op returning the session unchanged. When the new target declares a
// control endpoint, a best-effort notification carrying metadata is posted
// there with the session id as correlation header; notification failure
// never rolls back the target change.
func (r *Router) PassControl(ctx context.Context, sessionID, target string, metadata map[string]any) (*store.Session, error) {
	session, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(target) == "" {
		return session, nil
	}

	session.Target = target
	if err := r.sessions.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}

	r.notifyControl(ctx, session, metadata)

	r.logger.Debug("passed control", "id", session.ID, "target", target)
	return session, nil
}

// notifyControl posts the hand-off notification to the new target's control
// endpoint, if it has one.
func (r *Router) notifyControl(ctx context.Context, session *store.Session, metadata map[string]any) {
	iface, err := r.interfaces.GetInterface(ctx, session.Target)
	if err != nil {
		r.logger.Warn("control notification skipped", "session_id", session.ID, "target", session.Target, "error", err)
		return
	}
	if iface.ControlEndpoint == "" {
		return
	}

	body, err := json.Marshal(metadata)
	if err != nil {
		r.logger.Warn("control notification skipped", "session_id", session.ID, "error", err)
		return
	}

	headers := map[string]string{webhook.SessionIDHeader: session.ID}
	if err := r.notifier.Post(ctx, iface.ControlEndpoint, body, headers); err != nil {
		// The routing decision stands regardless of notification outcome
		r.logger.Warn("control notification failed", "session_id", session.ID, "endpoint", iface.ControlEndpoint, "error", err)
	}
}
