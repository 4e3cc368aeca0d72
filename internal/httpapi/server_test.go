// ABOUTME: Tests for the REST API routes over a live httptest server
// ABOUTME: Exercises real auth, registry, session, and pipeline wiring on the mock store

package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catapio/portim/internal/auth"
	"github.com/catapio/portim/internal/delivery"
	"github.com/catapio/portim/internal/registry"
	"github.com/catapio/portim/internal/resolver"
	"github.com/catapio/portim/internal/secrets"
	"github.com/catapio/portim/internal/session"
	"github.com/catapio/portim/internal/store"
	"github.com/catapio/portim/internal/webhook"
)

type postCall struct {
	url     string
	headers map[string]string
}

type recordingPoster struct {
	calls []postCall
}

func (p *recordingPoster) Post(ctx context.Context, url string, body []byte, headers map[string]string) error {
	p.calls = append(p.calls, postCall{url: url, headers: headers})
	return nil
}

type apiFixture struct {
	server    *httptest.Server
	mock      *store.MockStore
	poster    *recordingPoster
	verifier  *auth.JWTVerifier
	userToken string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mock := store.NewMockStore()
	cipher, err := secrets.NewCipher("test-passphrase", "test-salt")
	require.NoError(t, err)

	poster := &recordingPoster{}
	reg := registry.New(mock, cipher, nil)
	router := session.NewRouter(mock, mock, poster, nil)
	res := resolver.New(mock, nil)
	pipeline := delivery.New(mock, router, res, reg, poster, nil)

	verifier := auth.NewJWTVerifier([]byte("test-jwt-secret"))
	authenticator := auth.NewAuthenticator(verifier, mock)

	token, err := verifier.Generate("user-1", []string{"proj-1"}, time.Hour)
	require.NoError(t, err)

	srv := New(reg, router, pipeline, mock, authenticator, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &apiFixture{server: ts, mock: mock, poster: poster, verifier: verifier, userToken: token}
}

// do sends a request with the given Authorization header value and decodes
// the JSON response into out when it is non-nil.
func (f *apiFixture) do(t *testing.T, method, path, authz string, body, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (f *apiFixture) bearer() string {
	return "Bearer " + f.userToken
}

func basicAuth(interfaceID, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(interfaceID+":"+secret))
}

// createInterface registers an interface through the API and returns its
// response plus the one-time secret.
func (f *apiFixture) createInterface(t *testing.T, body map[string]any) (InterfaceResponse, string) {
	t.Helper()
	var created CreateInterfaceResponse
	resp := f.do(t, http.MethodPost, "/projects/proj-1/interfaces", f.bearer(), body, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return created.Interface, created.Secret
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	var body map[string]string
	resp := f.do(t, http.MethodGet, "/healthz", "", nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/projects/proj-1/interfaces", "", map[string]any{}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProjectScoping(t *testing.T) {
	f := newAPIFixture(t)

	// Token grants proj-1 only
	resp := f.do(t, http.MethodPost, "/projects/proj-2/interfaces", f.bearer(), map[string]any{}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestInterfaceLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	iface, secret := f.createInterface(t, map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "$.user.id",
	})
	require.NotEmpty(t, iface.ID)
	require.NotEmpty(t, secret)
	assert.Equal(t, "proj-1", iface.ProjectID)

	var fetched InterfaceResponse
	resp := f.do(t, http.MethodGet, "/projects/proj-1/interfaces/"+iface.ID, f.bearer(), nil, &fetched)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "whatsapp", fetched.Name)

	var updated InterfaceResponse
	resp = f.do(t, http.MethodPut, "/projects/proj-1/interfaces/"+iface.ID, f.bearer(),
		map[string]any{"name": "whatsapp-prod"}, &updated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "whatsapp-prod", updated.Name)
	assert.Equal(t, iface.EventEndpoint, updated.EventEndpoint)

	resp = f.do(t, http.MethodDelete, "/projects/proj-1/interfaces/"+iface.ID, f.bearer(), nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/projects/proj-1/interfaces/"+iface.ID, f.bearer(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInterfaceValidationErrors(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/projects/proj-1/interfaces", f.bearer(), map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "http://insecure.example.com",
		"externalIdField": "$.user.id",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/projects/proj-1/interfaces", f.bearer(), map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "user.id",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRotateSecret(t *testing.T) {
	f := newAPIFixture(t)

	iface, oldSecret := f.createInterface(t, map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "$.user.id",
	})

	var rotated CreateInterfaceResponse
	resp := f.do(t, http.MethodPost, "/projects/proj-1/interfaces/"+iface.ID+"/secret", f.bearer(), nil, &rotated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, rotated.Secret)
	assert.NotEqual(t, oldSecret, rotated.Secret)

	// Old secret no longer authenticates, the new one does
	resp = f.do(t, http.MethodPost, "/projects/proj-1/interfaces/"+iface.ID+"/messages",
		basicAuth(iface.ID, oldSecret), map[string]any{"user": map[string]any{"id": "u1"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestClientLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	var created ClientResponse
	resp := f.do(t, http.MethodPost, "/projects/proj-1/clients", f.bearer(), map[string]any{
		"externalId": "u1",
		"metadata":   map[string]any{"name": "Alice"},
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "u1", created.ExternalID)

	// Same external id within the project conflicts
	resp = f.do(t, http.MethodPost, "/projects/proj-1/clients", f.bearer(),
		map[string]any{"externalId": "u1"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// PATCH merges metadata keys
	var patched ClientResponse
	resp = f.do(t, http.MethodPatch, "/projects/proj-1/clients/"+created.ID, f.bearer(), map[string]any{
		"metadata": map[string]any{"plan": "pro"},
	}, &patched)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alice", patched.Metadata["name"])
	assert.Equal(t, "pro", patched.Metadata["plan"])

	resp = f.do(t, http.MethodDelete, "/projects/proj-1/clients/"+created.ID, f.bearer(), nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	ifaceB, _ := f.createInterface(t, map[string]any{
		"name":            "human-console",
		"eventEndpoint":   "https://b.example.com/events",
		"externalIdField": "$.session.id",
	})
	ifaceA, _ := f.createInterface(t, map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "$.user.id",
		"control":         ifaceB.ID,
	})

	var client ClientResponse
	resp := f.do(t, http.MethodPost, "/projects/proj-1/clients", f.bearer(),
		map[string]any{"externalId": "u1"}, &client)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Created without an explicit target, the control interface answers
	var sess SessionResponse
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/projects/proj-1/interfaces/%s/sessions", ifaceA.ID),
		f.bearer(), map[string]any{"clientId": client.ID}, &sess)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, ifaceA.ID, sess.Source)
	assert.Equal(t, ifaceB.ID, sess.Target)

	sessionPath := fmt.Sprintf("/projects/proj-1/interfaces/%s/sessions/%s", ifaceA.ID, sess.ID)

	// Pass control back to the source interface
	var passed SessionResponse
	resp = f.do(t, http.MethodPatch, sessionPath, f.bearer(),
		map[string]any{"target": ifaceA.ID}, &passed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ifaceA.ID, passed.Target)

	// Blank target is a no-op echo
	var echoed SessionResponse
	resp = f.do(t, http.MethodPatch, sessionPath, f.bearer(),
		map[string]any{"target": ""}, &echoed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ifaceA.ID, echoed.Target)

	resp = f.do(t, http.MethodDelete, sessionPath, f.bearer(), nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSessionWithoutControl(t *testing.T) {
	f := newAPIFixture(t)

	iface, _ := f.createInterface(t, map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "$.user.id",
	})

	var client ClientResponse
	resp := f.do(t, http.MethodPost, "/projects/proj-1/clients", f.bearer(),
		map[string]any{"externalId": "u1"}, &client)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/projects/proj-1/interfaces/%s/sessions", iface.ID),
		f.bearer(), map[string]any{"clientId": client.ID}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestMessageFlow(t *testing.T) {
	f := newAPIFixture(t)

	ifaceB, _ := f.createInterface(t, map[string]any{
		"name":            "human-console",
		"eventEndpoint":   "https://b.example.com/events",
		"externalIdField": "$.session.id",
	})
	ifaceA, secretA := f.createInterface(t, map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "$.user.id",
		"control":         ifaceB.ID,
	})

	// Sessionless ingestion with the interface's own basic credentials
	var msg MessageResponse
	resp := f.do(t, http.MethodPost, fmt.Sprintf("/projects/proj-1/interfaces/%s/messages", ifaceA.ID),
		basicAuth(ifaceA.ID, secretA), map[string]any{"user": map[string]any{"id": "u1"}}, &msg)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, store.MessageStatusDelivered, msg.Status)
	assert.Len(t, f.poster.calls, 1)

	messagePath := fmt.Sprintf("/projects/proj-1/interfaces/%s/sessions/%s/messages/%s", ifaceA.ID, msg.SessionID, msg.ID)

	var fetched MessageResponse
	resp = f.do(t, http.MethodGet, messagePath, f.bearer(), nil, &fetched)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, msg.Content, fetched.Content)

	// Status transitions through the dedicated route
	var updated MessageResponse
	resp = f.do(t, http.MethodPatch, messagePath+"/status", f.bearer(),
		map[string]any{"status": "pending"}, &updated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, store.MessageStatusPending, updated.Status)

	resp = f.do(t, http.MethodPatch, messagePath+"/status", f.bearer(),
		map[string]any{"status": "archived"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, messagePath, f.bearer(), nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestInterfaceCannotSendAsAnother(t *testing.T) {
	f := newAPIFixture(t)

	ifaceB, _ := f.createInterface(t, map[string]any{
		"name":            "human-console",
		"eventEndpoint":   "https://b.example.com/events",
		"externalIdField": "$.session.id",
	})
	ifaceA, secretA := f.createInterface(t, map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "$.user.id",
		"control":         ifaceB.ID,
	})

	resp := f.do(t, http.MethodPost, fmt.Sprintf("/projects/proj-1/interfaces/%s/messages", ifaceB.ID),
		basicAuth(ifaceA.ID, secretA), map[string]any{"session": map[string]any{"id": "s1"}}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMessageHeaderPassthrough(t *testing.T) {
	f := newAPIFixture(t)

	ifaceB, _ := f.createInterface(t, map[string]any{
		"name":            "human-console",
		"eventEndpoint":   "https://b.example.com/events",
		"externalIdField": "$.session.id",
	})
	ifaceA, secretA := f.createInterface(t, map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "$.user.id",
		"control":         ifaceB.ID,
	})

	body, err := json.Marshal(map[string]any{"user": map[string]any{"id": "u1"}})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost,
		f.server.URL+fmt.Sprintf("/projects/proj-1/interfaces/%s/messages", ifaceA.ID),
		bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", basicAuth(ifaceA.ID, secretA))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Conversation-Tag", "vip")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Caller headers reach the destination alongside the routing headers,
	// while credentials and transport headers stay behind.
	require.Len(t, f.poster.calls, 1)
	headers := f.poster.calls[0].headers
	assert.Equal(t, "vip", headers["X-Conversation-Tag"])
	assert.Equal(t, "application/json", headers["Content-Type"])
	assert.NotContains(t, headers, "Authorization")
	assert.NotEmpty(t, headers[webhook.SessionIDHeader])
	assert.NotEmpty(t, headers[webhook.TokenHeader])
}

func TestCrossProjectIsolation(t *testing.T) {
	f := newAPIFixture(t)

	ifaceB, _ := f.createInterface(t, map[string]any{
		"name":            "human-console",
		"eventEndpoint":   "https://b.example.com/events",
		"externalIdField": "$.session.id",
	})
	ifaceA, secretA := f.createInterface(t, map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "$.user.id",
		"control":         ifaceB.ID,
	})

	var client ClientResponse
	resp := f.do(t, http.MethodPost, "/projects/proj-1/clients", f.bearer(),
		map[string]any{"externalId": "u1"}, &client)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var msg MessageResponse
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/projects/proj-1/interfaces/%s/messages", ifaceA.ID),
		basicAuth(ifaceA.ID, secretA), map[string]any{"user": map[string]any{"id": "u1"}}, &msg)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	foreignToken, err := f.verifier.Generate("user-2", []string{"proj-2"}, time.Hour)
	require.NoError(t, err)
	foreign := "Bearer " + foreignToken

	// Entities from another project read as missing, even with valid ids
	resp = f.do(t, http.MethodGet, "/projects/proj-2/interfaces/"+ifaceA.ID, foreign, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/projects/proj-2/clients/"+client.ID, foreign, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	sessionPath := fmt.Sprintf("/projects/proj-2/interfaces/%s/sessions/%s", ifaceA.ID, msg.SessionID)
	resp = f.do(t, http.MethodGet, sessionPath, foreign, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, sessionPath+"/messages", foreign,
		map[string]any{"user": map[string]any{"id": "u1"}}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, sessionPath+"/messages/"+msg.ID, foreign, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Mutations are equally out of reach
	resp = f.do(t, http.MethodPatch, sessionPath, foreign,
		map[string]any{"target": ifaceB.ID}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionHiddenFromNonParty(t *testing.T) {
	f := newAPIFixture(t)

	ifaceB, _ := f.createInterface(t, map[string]any{
		"name":            "human-console",
		"eventEndpoint":   "https://b.example.com/events",
		"externalIdField": "$.session.id",
	})
	ifaceA, secretA := f.createInterface(t, map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "$.user.id",
		"control":         ifaceB.ID,
	})
	ifaceC, _ := f.createInterface(t, map[string]any{
		"name":            "crm-sync",
		"eventEndpoint":   "https://c.example.com/events",
		"externalIdField": "$.contact.id",
	})

	var msg MessageResponse
	resp := f.do(t, http.MethodPost, fmt.Sprintf("/projects/proj-1/interfaces/%s/messages", ifaceA.ID),
		basicAuth(ifaceA.ID, secretA), map[string]any{"user": map[string]any{"id": "u1"}}, &msg)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// The session is visible to both parties but not to a bystander interface
	resp = f.do(t, http.MethodGet,
		fmt.Sprintf("/projects/proj-1/interfaces/%s/sessions/%s", ifaceB.ID, msg.SessionID), f.bearer(), nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet,
		fmt.Sprintf("/projects/proj-1/interfaces/%s/sessions/%s", ifaceC.ID, msg.SessionID), f.bearer(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMessageInvalidBody(t *testing.T) {
	f := newAPIFixture(t)

	ifaceB, _ := f.createInterface(t, map[string]any{
		"name":            "human-console",
		"eventEndpoint":   "https://b.example.com/events",
		"externalIdField": "$.session.id",
	})
	ifaceA, _ := f.createInterface(t, map[string]any{
		"name":            "whatsapp",
		"eventEndpoint":   "https://a.example.com/events",
		"externalIdField": "$.user.id",
		"control":         ifaceB.ID,
	})

	// Payload without the external id path is the caller's config problem
	resp := f.do(t, http.MethodPost, fmt.Sprintf("/projects/proj-1/interfaces/%s/messages", ifaceA.ID),
		f.bearer(), map[string]any{"user": map[string]any{}}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Raw non-JSON body
	req, err := http.NewRequest(http.MethodPost,
		f.server.URL+fmt.Sprintf("/projects/proj-1/interfaces/%s/messages", ifaceA.ID),
		bytes.NewBufferString("not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", f.bearer())
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}
