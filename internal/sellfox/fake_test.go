package sellfox

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/stretchr/testify/require"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/config"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
)

const (
	testClientID = "cid-001"
	testSecret   = "s3cr3t"
)

// fakeERP issues tokens tok-1, tok-2, ... and hands every other path to
// the business handler.
type fakeERP struct {
	*httptest.Server

	mu         sync.Mutex
	tokenCalls int
	expiresIn  any
	business   http.HandlerFunc
}

func newFakeERP(t *testing.T, business http.HandlerFunc) *fakeERP {
	f := &fakeERP{expiresIn: 7200, business: business}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeERP) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != TokenPath {
		f.business(w, r)
		return
	}
	f.mu.Lock()
	f.tokenCalls++
	n, exp := f.tokenCalls, f.expiresIn
	f.mu.Unlock()

	q := r.URL.Query()
	if q.Get("client_id") != testClientID || q.Get("client_secret") != testSecret ||
		q.Get("grant_type") != "client_credentials" {
		writeEnvelope(w, 40001, "bad credentials", nil)
		return
	}
	writeEnvelope(w, 0, "ok", map[string]any{
		"access_token": fmt.Sprintf("tok-%d", n),
		"expires_in":   exp,
	})
}

func (f *fakeERP) TokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

func (f *fakeERP) credentials() config.APICredentials {
	return config.APICredentials{ClientID: testClientID, ClientSecret: testSecret, BaseURL: f.URL}
}

func writeEnvelope(w http.ResponseWriter, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg, "data": data})
}

// requireSigned checks the signature the server would compute for r.
func requireSigned(t *testing.T, r *http.Request) string {
	q := r.URL.Query()
	want := ComputeSign(testSecret, map[string]string{
		"access_token": q.Get("access_token"),
		"client_id":    q.Get("client_id"),
		"method":       "post",
		"nonce":        q.Get("nonce"),
		"timestamp":    q.Get("timestamp"),
		"url":          r.URL.Path,
	})
	require.Equal(t, want, q.Get("sign"), "signature mismatch for %s", r.URL.Path)
	require.Equal(t, testClientID, q.Get("client_id"))
	return q.Get("access_token")
}

func newTestClient(t *testing.T, srv *fakeERP, clk clock.Clock) (*Client, *TokenClient) {
	t.Helper()
	return newTestClientWith(t, srv, Options{
		RequestsPerMinute: 600000,
		BurstSize:         50,
		RetryCount:        3,
		RetryDelay:        time.Millisecond,
		Clock:             clk,
	})
}

// newTestClientWith drives tokens, signatures and retry waits from opts.Clock.
func newTestClientWith(t *testing.T, srv *fakeERP, opts Options) (*Client, *TokenClient) {
	t.Helper()
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	creds := srv.credentials()
	httpClient := NewHTTPClient(creds, 5*time.Second)
	tokens := NewTokenClient(creds, httpClient, clk, logger.NewNop())
	client := NewClient(httpClient, tokens, NewSigner(creds.ClientID, creds.ClientSecret, clk), opts, logger.NewNop())
	return client, tokens
}
