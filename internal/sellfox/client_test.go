package sellfox

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
)

type echoData struct {
	Value string `json:"value"`
}

func TestPostSignsAndDecodes(t *testing.T) {
	srv := newFakeERP(t, func(w http.ResponseWriter, r *http.Request) {
		requireSigned(t, r)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "USD", body["currency"])
		writeEnvelope(w, 0, "ok", map[string]string{"value": "hello"})
	})
	client, _ := newTestClient(t, srv, nil)

	var out echoData
	err := client.Post(context.Background(), "/api/echo.json", map[string]string{"currency": "USD"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Value)
}

func TestUnauthorizedForcesOneRefresh(t *testing.T) {
	var calls atomic.Int32
	srv := newFakeERP(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if requireSigned(t, r) == "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeEnvelope(w, 0, "ok", map[string]string{"value": "after-refresh"})
	})
	client, tokens := newTestClient(t, srv, nil)

	var out echoData
	require.NoError(t, client.Post(context.Background(), "/api/echo.json", nil, &out))
	assert.Equal(t, "after-refresh", out.Value)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 2, srv.TokenCalls())

	tok, err := tokens.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
}

func TestRepeatedUnauthorizedIsAuthError(t *testing.T) {
	var calls atomic.Int32
	srv := newFakeERP(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	client, _ := newTestClient(t, srv, nil)

	err := client.Post(context.Background(), "/api/echo.json", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAuth))
	assert.EqualValues(t, 2, calls.Load())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newFakeERP(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			writeEnvelope(w, 0, "ok", map[string]string{"value": "third time"})
		}
	})
	client, _ := newTestClient(t, srv, nil)

	stats := &CallStats{}
	ctx := WithCallStats(context.Background(), stats)

	var out echoData
	require.NoError(t, client.Post(ctx, "/api/echo.json", nil, &out))
	assert.Equal(t, "third time", out.Value)
	assert.EqualValues(t, 3, stats.Calls())
	assert.EqualValues(t, 2, stats.Retries())
}

func TestRetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := newFakeERP(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client, _ := newTestClient(t, srv, nil)

	err := client.Post(context.Background(), "/api/echo.json", nil, nil)
	require.Error(t, err)

	var te *apperr.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, apperr.Transport5xx, te.Kind)
	// retry_count attempts plus the original
	assert.EqualValues(t, 4, calls.Load())
}

func TestNonRetryableResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    error
	}{
		{
			name:    "client error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadRequest) },
			kind:    apperr.ErrTransport,
		},
		{
			name:    "rate limit code",
			handler: func(w http.ResponseWriter, _ *http.Request) { writeEnvelope(w, 40019, "too many requests", nil) },
			kind:    apperr.ErrRateLimit,
		},
		{
			name:    "business code",
			handler: func(w http.ResponseWriter, _ *http.Request) { writeEnvelope(w, 50001, "shop not authorised", nil) },
			kind:    apperr.ErrBusiness,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"code":0,"data":`))
			},
			kind: apperr.ErrTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := newFakeERP(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			})
			client, _ := newTestClient(t, srv, nil)

			err := client.Post(context.Background(), "/api/echo.json", nil, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.False(t, apperr.Retryable(err))
			assert.EqualValues(t, 1, calls.Load())
		})
	}
}

func TestCancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	srv := newFakeERP(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			cancel()
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client, _ := newTestClient(t, srv, nil)
	_, err := client.tokens.AccessToken(context.Background())
	require.NoError(t, err)

	err = client.Post(ctx, "/api/echo.json", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestRequestsAreSpacedByRate(t *testing.T) {
	var (
		mu       sync.Mutex
		arrivals []time.Time
	)
	srv := newFakeERP(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		writeEnvelope(w, 0, "ok", nil)
	})
	// 120 per minute is one request every 500ms once the burst of 1 is spent.
	client, _ := newTestClientWith(t, srv, Options{RequestsPerMinute: 120, BurstSize: 1, RetryDelay: time.Millisecond})

	started := time.Now()
	for range 3 {
		require.NoError(t, client.Post(context.Background(), "/api/echo.json", nil, nil))
	}
	assert.GreaterOrEqual(t, time.Since(started), 900*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, arrivals, 3)
	for i := 1; i < len(arrivals); i++ {
		assert.GreaterOrEqual(t, arrivals[i].Sub(arrivals[i-1]), 400*time.Millisecond, "gap before request %d", i)
	}
}

func TestRetryAfterHeaderSetsBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := newFakeERP(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeEnvelope(w, 0, "ok", map[string]string{"value": "after wait"})
	})
	clk := testclock.NewClock(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	client, _ := newTestClientWith(t, srv, Options{
		RequestsPerMinute: 600000,
		BurstSize:         50,
		RetryCount:        3,
		RetryDelay:        time.Millisecond,
		Clock:             clk,
	})

	var out echoData
	done := make(chan error, 1)
	go func() { done <- client.Post(context.Background(), "/api/echo.json", nil, &out) }()

	// The exponential delay would be 2ms; the header asks for a full second.
	require.NoError(t, clk.WaitAdvance(999*time.Millisecond, 5*time.Second, 1))
	select {
	case err := <-done:
		t.Fatalf("retried before Retry-After elapsed: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.EqualValues(t, 1, calls.Load())

	require.NoError(t, clk.WaitAdvance(time.Millisecond, 5*time.Second, 1))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("request did not complete after Retry-After")
	}
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, "after wait", out.Value)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 7*time.Second, parseRetryAfter("7", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
	assert.Zero(t, parseRetryAfter("", now))
	assert.Zero(t, parseRetryAfter("soon", now))
	assert.Zero(t, parseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))
}
