package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/domain"
)

type captured struct {
	mu      sync.Mutex
	bodies  [][]byte
	headers []http.Header
}

func (c *captured) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func testEvent() *domain.Event {
	return &domain.Event{
		ID:          "event_1",
		ChannelID:   "channel_1",
		Title:       "v1.2 released",
		Description: "all regions",
		Tags:        []string{"release"},
		Metadata:    map[string]any{"version": "1.2"},
		UserID:      "user_123",
		CreatedAt:   time.Date(2025, 12, 25, 22, 42, 31, 123000000, time.UTC),
	}
}

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(config.Webhook{TimeoutSec: 30, UserAgent: "EmitKit/1.0", MaxConcurrency: 4}, nil, zap.NewNop())
}

func TestDispatcher_Dispatch_FailureIsIsolated(t *testing.T) {
	ok := &captured{}
	okServer := httptest.NewServer(ok.handler(http.StatusOK))
	defer okServer.Close()
	other := &captured{}
	otherServer := httptest.NewServer(other.handler(http.StatusNoContent))
	defer otherServer.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	d := newTestDispatcher()
	d.timeout = 100 * time.Millisecond

	result := d.Dispatch(context.Background(), []*domain.Webhook{
		{ID: "wh_ok", URL: okServer.URL},
		{ID: "wh_500", URL: failing.URL},
		{ID: "wh_slow", URL: slow.URL},
		{ID: "wh_other", URL: otherServer.URL},
	}, testEvent())

	assert.Equal(t, 2, result.Delivered)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, result.Errors, 2)
	require.Len(t, ok.bodies, 1)
	require.Len(t, other.bodies, 1)
	assert.Equal(t, ok.bodies[0], other.bodies[0])
}

func TestDispatcher_Dispatch_Headers(t *testing.T) {
	signed := &captured{}
	signedServer := httptest.NewServer(signed.handler(http.StatusOK))
	defer signedServer.Close()
	unsigned := &captured{}
	unsignedServer := httptest.NewServer(unsigned.handler(http.StatusOK))
	defer unsignedServer.Close()

	result := newTestDispatcher().Dispatch(context.Background(), []*domain.Webhook{
		{ID: "wh_signed", URL: signedServer.URL, Secret: "whsec_test"},
		{ID: "wh_unsigned", URL: unsignedServer.URL},
	}, testEvent())

	require.Equal(t, 2, result.Delivered)
	h := signed.headers[0]
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "EmitKit/1.0", h.Get("User-Agent"))
	assert.Equal(t, Sign("whsec_test", signed.bodies[0]), h.Get(SignatureHeader))
	assert.True(t, Verify("whsec_test", signed.bodies[0], h.Get(SignatureHeader)))
	assert.Empty(t, unsigned.headers[0].Get(SignatureHeader))
}

func TestDispatcher_Dispatch_Payload(t *testing.T) {
	c := &captured{}
	server := httptest.NewServer(c.handler(http.StatusOK))
	defer server.Close()

	newTestDispatcher().Dispatch(context.Background(), []*domain.Webhook{{ID: "wh_1", URL: server.URL}}, testEvent())

	require.Len(t, c.bodies, 1)
	assert.JSONEq(t, `{
		"event_id": "event_1",
		"channel_id": "channel_1",
		"title": "v1.2 released",
		"description": "all regions",
		"icon": "",
		"tags": ["release"],
		"metadata": {"version": "1.2"},
		"user_id": "user_123",
		"created_at": "2025-12-25T22:42:31.123Z"
	}`, string(c.bodies[0]))
}

func TestDispatcher_Dispatch_NoWebhooks(t *testing.T) {
	result := newTestDispatcher().Dispatch(context.Background(), nil, testEvent())

	assert.Equal(t, Result{}, result)
}

func TestDispatcher_Dispatch_DoesNotFollowRedirects(t *testing.T) {
	var hits int
	var mu sync.Mutex
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer internal.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+"/metadata", http.StatusFound)
	}))
	defer redirecting.Close()

	result := newTestDispatcher().Dispatch(context.Background(), []*domain.Webhook{{ID: "wh_redirect", URL: redirecting.URL}}, testEvent())

	assert.Equal(t, 0, result.Delivered)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), "302")
	mu.Lock()
	assert.Equal(t, 0, hits)
	mu.Unlock()
}

func TestNewHTTPClient_StopsAtFirstResponse(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()
	redirecting := httptest.NewServer(http.RedirectHandler(target.URL, http.StatusTemporaryRedirect))
	defer redirecting.Close()

	resp, err := NewHTTPClient().Get(redirecting.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, target.URL, resp.Header.Get("Location"))
}

func TestDispatcher_Dispatch_UnreachableTarget(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	result := newTestDispatcher().Dispatch(context.Background(), []*domain.Webhook{{ID: "wh_gone", URL: url}}, testEvent())

	assert.Equal(t, 0, result.Delivered)
	assert.Equal(t, 1, result.Failed)
}

func TestNewPayload_NilCollections(t *testing.T) {
	p := NewPayload(&domain.Event{ID: "event_1"})

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"tags":[]`)
	assert.Contains(t, string(raw), `"metadata":{}`)
}

func TestVerify_RejectsTampering(t *testing.T) {
	body := []byte(`{"event_id":"event_1"}`)
	sig := Sign("secret", body)

	assert.True(t, Verify("secret", body, sig))
	assert.False(t, Verify("secret", []byte(`{"event_id":"event_2"}`), sig))
	assert.False(t, Verify("other", body, sig))
	assert.False(t, Verify("secret", body, "not-hex"))
}

type fakeResolver struct {
	addrs []string
	err   error
}

func (f fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]net.IPAddr, 0, len(f.addrs))
	for _, a := range f.addrs {
		out = append(out, net.IPAddr{IP: net.ParseIP(a)})
	}
	return out, nil
}

func TestValidateURL(t *testing.T) {
	public := fakeResolver{addrs: []string{"93.184.216.34"}}
	tests := []struct {
		name     string
		url      string
		resolver Resolver
		wantErr  bool
	}{
		{"https public", "https://hooks.example.com/in", public, false},
		{"http public literal", "http://93.184.216.34/hook", nil, false},
		{"ftp scheme", "ftp://hooks.example.com", public, true},
		{"no scheme", "hooks.example.com/in", public, true},
		{"localhost", "http://localhost:3000/hook", public, true},
		{"localhost subdomain", "http://api.localhost/hook", public, true},
		{"loopback v4", "http://127.0.0.1/hook", nil, true},
		{"loopback v6", "http://[::1]/hook", nil, true},
		{"unspecified", "http://0.0.0.0/hook", nil, true},
		{"private 10", "http://10.1.2.3/hook", nil, true},
		{"private 172", "http://172.20.0.1/hook", nil, true},
		{"private 192", "http://192.168.1.10/hook", nil, true},
		{"link-local", "http://169.254.169.254/latest", nil, true},
		{"mapped loopback", "http://[::ffff:127.0.0.1]/hook", nil, true},
		{"resolves private", "https://internal.example.com", fakeResolver{addrs: []string{"10.0.0.5"}}, true},
		{"resolves mixed", "https://mixed.example.com", fakeResolver{addrs: []string{"93.184.216.34", "127.0.0.1"}}, true},
		{"resolution fails", "https://nxdomain.example.com", fakeResolver{err: errors.New("no such host")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(context.Background(), tt.url, tt.resolver)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateURL_PrivateIsErrInvalidURL(t *testing.T) {
	err := ValidateURL(context.Background(), "http://192.168.0.1", nil)

	assert.ErrorIs(t, err, ErrInvalidURL)
}
