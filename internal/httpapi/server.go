// ABOUTME: HTTP API server wiring routes to the registry, router, and pipeline
// ABOUTME: Owns JSON encoding, error-to-status mapping, and route registration

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/catapio/portim/internal/auth"
	"github.com/catapio/portim/internal/delivery"
	"github.com/catapio/portim/internal/pathexpr"
	"github.com/catapio/portim/internal/registry"
	"github.com/catapio/portim/internal/resolver"
	"github.com/catapio/portim/internal/session"
	"github.com/catapio/portim/internal/store"
)

// Server exposes the REST API.
type Server struct {
	registry      *registry.Registry
	sessions      *session.Router
	pipeline      *delivery.Pipeline
	clients       store.ClientStore
	authenticator *auth.Authenticator
	logger        *slog.Logger
}

// New creates an API server.
func New(reg *registry.Registry, sessions *session.Router, pipeline *delivery.Pipeline, clients store.ClientStore, authenticator *auth.Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:      reg,
		sessions:      sessions,
		pipeline:      pipeline,
		clients:       clients,
		authenticator: authenticator,
		logger:        logger.With("component", "httpapi"),
	}
}

// Handler builds the full route table. Every project-scoped route is wrapped
// in the authentication middleware; the health endpoint is public.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	middleware := auth.Middleware(s.authenticator)
	protect := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, middleware(handler))
	}

	protect("POST /projects/{projectId}/interfaces", s.handleCreateInterface)
	protect("GET /projects/{projectId}/interfaces/{interfaceId}", s.handleGetInterface)
	protect("PUT /projects/{projectId}/interfaces/{interfaceId}", s.handleUpdateInterface)
	protect("DELETE /projects/{projectId}/interfaces/{interfaceId}", s.handleDeleteInterface)
	protect("POST /projects/{projectId}/interfaces/{interfaceId}/secret", s.handleRotateSecret)

	protect("POST /projects/{projectId}/clients", s.handleCreateClient)
	protect("GET /projects/{projectId}/clients/{clientId}", s.handleGetClient)
	protect("PATCH /projects/{projectId}/clients/{clientId}", s.handleUpdateClient)
	protect("DELETE /projects/{projectId}/clients/{clientId}", s.handleDeleteClient)

	protect("POST /projects/{projectId}/interfaces/{interfaceId}/sessions", s.handleCreateSession)
	protect("GET /projects/{projectId}/interfaces/{interfaceId}/sessions/{sessionId}", s.handleGetSession)
	protect("PATCH /projects/{projectId}/interfaces/{interfaceId}/sessions/{sessionId}", s.handlePassControl)
	protect("DELETE /projects/{projectId}/interfaces/{interfaceId}/sessions/{sessionId}", s.handleDeleteSession)

	protect("POST /projects/{projectId}/interfaces/{interfaceId}/messages", s.handleCreateMessage)
	protect("POST /projects/{projectId}/interfaces/{interfaceId}/sessions/{sessionId}/messages", s.handleCreateMessage)
	protect("GET /projects/{projectId}/interfaces/{interfaceId}/sessions/{sessionId}/messages/{messageId}", s.handleGetMessage)
	protect("PATCH /projects/{projectId}/interfaces/{interfaceId}/sessions/{sessionId}/messages/{messageId}/status", s.handleUpdateMessageStatus)
	protect("DELETE /projects/{projectId}/interfaces/{interfaceId}/sessions/{sessionId}/messages/{messageId}", s.handleDeleteMessage)

	return mux
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// pathInterface loads the interface named in the path and confirms it belongs
// to the path's project. Ids from another project read as not found, so a
// caller cannot probe entities outside the project the middleware admitted
// them to.
func (s *Server) pathInterface(w http.ResponseWriter, r *http.Request) (*store.Interface, bool) {
	iface, err := s.registry.Get(r.Context(), r.PathValue("interfaceId"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	if iface.ProjectID != r.PathValue("projectId") {
		s.sendJSONError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return iface, true
}

// pathSession loads the session named in the path and confirms the path's
// interface is one of its two parties.
func (s *Server) pathSession(w http.ResponseWriter, r *http.Request, iface *store.Interface) (*store.Session, bool) {
	session, err := s.sessions.Get(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	if session.Source != iface.ID && session.Target != iface.ID {
		s.sendJSONError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return session, true
}

// pathClient loads the client named in the path and confirms it belongs to
// the path's project.
func (s *Server) pathClient(w http.ResponseWriter, r *http.Request) (*store.Client, bool) {
	client, err := s.clients.GetClient(r.Context(), r.PathValue("clientId"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	if client.ProjectID != r.PathValue("projectId") {
		s.sendJSONError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return client, true
}

// writeError maps domain errors to HTTP statuses. Validation problems read
// back as 400, missing entities as 404, and routing dead-ends that are the
// caller's configuration fault as 422. Anything unrecognized is a 500 with
// the detail kept server-side.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicateClient):
		s.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, delivery.ErrInvalidBody),
		errors.Is(err, delivery.ErrInvalidStatus),
		errors.Is(err, pathexpr.ErrInvalidPath),
		errors.Is(err, registry.ErrNameTooShort),
		errors.Is(err, registry.ErrMissingEventURL),
		errors.Is(err, registry.ErrMissingExternalPath),
		errors.Is(err, registry.ErrEndpointNotHTTPS),
		errors.Is(err, registry.ErrUnknownControl):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNoControlInterface),
		errors.Is(err, resolver.ErrNoExternalID):
		s.sendJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}
