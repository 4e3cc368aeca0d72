// ABOUTME: Tests for the message delivery pipeline
// ABOUTME: Covers sessionless flow, next-hop selection, and status settlement

package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catapio/portim/internal/registry"
	"github.com/catapio/portim/internal/resolver"
	"github.com/catapio/portim/internal/secrets"
	"github.com/catapio/portim/internal/session"
	"github.com/catapio/portim/internal/store"
	"github.com/catapio/portim/internal/webhook"
)

// mockPoster records outbound webhook posts.
type mockPoster struct {
	calls   []postCall
	failErr error
}

type postCall struct {
	url     string
	body    string
	headers map[string]string
}

func (m *mockPoster) Post(ctx context.Context, url string, body []byte, headers map[string]string) error {
	m.calls = append(m.calls, postCall{url: url, body: string(body), headers: headers})
	return m.failErr
}

type fixture struct {
	pipeline *Pipeline
	mock     *store.MockStore
	registry *registry.Registry
	poster   *mockPoster
	ifaceA   *store.Interface // entry interface, control = B
	ifaceB   *store.Interface // control interface with a token
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	mock := store.NewMockStore()
	cipher, err := secrets.NewCipher("test-passphrase", "test-salt")
	require.NoError(t, err)
	reg := registry.New(mock, cipher, nil)
	poster := &mockPoster{}

	ifaceB, _, err := reg.Create(ctx, "proj-1", registry.CreateInput{
		Name:            "human-console",
		EventEndpoint:   "https://b.example.com/events",
		ExternalIDField: "$.session.id",
		ControlToken:    "token-b",
	})
	require.NoError(t, err)

	ifaceA, _, err := reg.Create(ctx, "proj-1", registry.CreateInput{
		Name:            "whatsapp",
		EventEndpoint:   "https://a.example.com/events",
		ExternalIDField: "$.user.id",
		Control:         &ifaceB.ID,
	})
	require.NoError(t, err)

	router := session.NewRouter(mock, mock, poster, nil)
	res := resolver.New(mock, nil)
	pipeline := New(mock, router, res, reg, poster, nil)

	return &fixture{
		pipeline: pipeline,
		mock:     mock,
		registry: reg,
		poster:   poster,
		ifaceA:   ifaceA,
		ifaceB:   ifaceB,
	}
}

func TestCreateMessageSessionless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	body := []byte(`{"user":{"id":"u1"}}`)

	msg, err := f.pipeline.CreateMessage(ctx, &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceA.ID,
		Body:      body,
	})
	require.NoError(t, err)

	// Client created lazily
	client, err := f.mock.GetClientByExternalID(ctx, "proj-1", "u1")
	require.NoError(t, err)

	// Session wired source=A target=B
	sess, err := f.mock.GetSession(ctx, msg.SessionID)
	require.NoError(t, err)
	assert.Equal(t, f.ifaceA.ID, sess.Source)
	assert.Equal(t, f.ifaceB.ID, sess.Target)
	assert.Equal(t, client.ID, sess.ClientID)

	// Exactly one POST to B's event endpoint with the decrypted token
	require.Len(t, f.poster.calls, 1)
	call := f.poster.calls[0]
	assert.Equal(t, "https://b.example.com/events", call.url)
	assert.Equal(t, string(body), call.body)
	assert.Equal(t, sess.ID, call.headers[webhook.SessionIDHeader])
	assert.Equal(t, "token-b", call.headers[webhook.TokenHeader])

	// Delivered after the endpoint accepted
	assert.Equal(t, store.MessageStatusDelivered, msg.Status)
	stored, err := f.mock.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, store.MessageStatusDelivered, stored.Status)

	// Content is the digest of the raw body
	sum := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(sum[:]), msg.Content)
}

func TestCreateMessageReusesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	body := []byte(`{"user":{"id":"u1"}}`)

	first, err := f.pipeline.CreateMessage(ctx, &CreateRequest{ProjectID: "proj-1", Sender: f.ifaceA.ID, Body: body})
	require.NoError(t, err)

	second, err := f.pipeline.CreateMessage(ctx, &CreateRequest{ProjectID: "proj-1", Sender: f.ifaceA.ID, Body: body})
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestCreateMessageFromTargetRoutesToSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.pipeline.CreateMessage(ctx, &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceA.ID,
		Body:      []byte(`{"user":{"id":"u1"}}`),
	})
	require.NoError(t, err)

	// B answers on the same session; destination must be the source A
	reply := []byte(`{"text":"hello from the console"}`)
	msg, err := f.pipeline.CreateMessage(ctx, &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceB.ID,
		SessionID: first.SessionID,
		Body:      reply,
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, msg.SessionID)

	require.Len(t, f.poster.calls, 2)
	assert.Equal(t, "https://a.example.com/events", f.poster.calls[1].url)
	assert.Equal(t, string(reply), f.poster.calls[1].body)
	// A has no control token configured
	assert.Equal(t, "", f.poster.calls[1].headers[webhook.TokenHeader])
}

func TestCreateMessageDeliveryFailureStillAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.poster.failErr = errors.New("webhook returned 502 Bad Gateway")

	msg, err := f.pipeline.CreateMessage(ctx, &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceA.ID,
		Body:      []byte(`{"user":{"id":"u1"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, store.MessageStatusError, msg.Status)
	assert.Contains(t, msg.Error, "502")

	stored, err := f.mock.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, store.MessageStatusError, stored.Status)
}

func TestCreateMessageNoControlInterface(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// B has no control, so a sessionless message through it cannot route
	_, err := f.pipeline.CreateMessage(ctx, &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceB.ID,
		Body:      []byte(`{"session":{"id":"s1"}}`),
	})
	assert.ErrorIs(t, err, session.ErrNoControlInterface)
}

func TestCreateMessageNoExternalID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.CreateMessage(ctx, &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceA.ID,
		Body:      []byte(`{"user":{}}`),
	})
	assert.ErrorIs(t, err, resolver.ErrNoExternalID)
}

func TestCreateMessageInvalidBody(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.CreateMessage(context.Background(), &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceA.ID,
		Body:      []byte(`not json`),
	})
	assert.ErrorIs(t, err, ErrInvalidBody)
}

func TestCreateMessageUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.CreateMessage(context.Background(), &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceA.ID,
		SessionID: "missing",
		Body:      []byte(`{}`),
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateMessageCallerHeadersWin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.CreateMessage(ctx, &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceA.ID,
		Body:      []byte(`{"user":{"id":"u1"}}`),
		Headers: map[string]string{
			"X-Trace-Id":        "trace-1",
			webhook.TokenHeader: "caller-token",
		},
	})
	require.NoError(t, err)

	require.Len(t, f.poster.calls, 1)
	headers := f.poster.calls[0].headers
	assert.Equal(t, "trace-1", headers["X-Trace-Id"])
	assert.Equal(t, "caller-token", headers[webhook.TokenHeader])
}

func TestFingerprintIsStable(t *testing.T) {
	body := []byte(`{"user":{"id":"u1"}}`)
	assert.Equal(t, fingerprint(body), fingerprint(body))
	assert.Len(t, fingerprint(body), 64)
	assert.NotEqual(t, fingerprint(body), fingerprint([]byte(`{"user":{"id":"u2"}}`)))
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.pipeline.CreateMessage(ctx, &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceA.ID,
		Body:      []byte(`{"user":{"id":"u1"}}`),
	})
	require.NoError(t, err)

	// Re-open to pending
	updated, err := f.pipeline.UpdateStatus(ctx, msg.ID, store.MessageStatusPending)
	require.NoError(t, err)
	assert.Equal(t, store.MessageStatusPending, updated.Status)

	_, err = f.pipeline.UpdateStatus(ctx, msg.ID, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.pipeline.UpdateStatus(ctx, "missing", store.MessageStatusPending)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.pipeline.CreateMessage(ctx, &CreateRequest{
		ProjectID: "proj-1",
		Sender:    f.ifaceA.ID,
		Body:      []byte(`{"user":{"id":"u1"}}`),
	})
	require.NoError(t, err)

	require.NoError(t, f.pipeline.DeleteMessage(ctx, msg.ID))
	_, err = f.pipeline.GetMessage(ctx, msg.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
