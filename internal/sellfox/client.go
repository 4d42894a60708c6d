package sellfox

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/config"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
)

// TokenSource supplies access tokens to the caller.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context, stale string) (string, error)
}

// Poster is the call surface scrapers depend on.
type Poster interface {
	Post(ctx context.Context, path string, body, out any) error
}

// Observer receives per-request telemetry.
type Observer interface {
	ObserveAPICall(endpoint, outcome string, elapsed time.Duration)
	ObserveAPIRetry(endpoint string)
}

type nopObserver struct{}

func (nopObserver) ObserveAPICall(string, string, time.Duration) {}
func (nopObserver) ObserveAPIRetry(string)                       {}

type Options struct {
	RequestsPerMinute int
	BurstSize         int
	RetryCount        int
	RetryDelay        time.Duration
	Clock             clock.Clock
	Observer          Observer
}

// Client performs signed, rate-limited, retried POSTs against the ERP API.
type Client struct {
	http       *resty.Client
	tokens     TokenSource
	signer     *Signer
	limiter    *rate.Limiter
	clock      clock.Clock
	observer   Observer
	logger     logger.ZapLogger
	retryCount int
	retryDelay time.Duration
}

// NewHTTPClient builds the resty client shared by the token client and the caller.
func NewHTTPClient(creds config.APICredentials, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(creds.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

func NewClient(httpClient *resty.Client, tokens TokenSource, signer *Signer, opts Options, log logger.ZapLogger) *Client {
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := opts.BurstSize
	if burst <= 0 {
		burst = 1
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	var obs Observer = nopObserver{}
	if opts.Observer != nil {
		obs = opts.Observer
	}
	return &Client{
		http:       httpClient,
		tokens:     tokens,
		signer:     signer,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst),
		clock:      clk,
		observer:   obs,
		logger:     log,
		retryCount: opts.RetryCount,
		retryDelay: delay,
	}
}

// Post sends body to path and decodes the envelope's data into out. A 401
// triggers one forced token refresh and a single replay.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	err = c.postWithRetry(ctx, path, body, out, token)
	if !isUnauthorized(err) {
		return err
	}

	c.logger.Warn("Access token rejected, forcing refresh", zap.String("endpoint", path))
	token, err = c.tokens.ForceRefresh(ctx, token)
	if err != nil {
		return err
	}
	err = c.postWithRetry(ctx, path, body, out, token)
	if isUnauthorized(err) {
		return &apperr.AuthError{Msg: "request rejected after token refresh", Cause: err}
	}
	return err
}

func (c *Client) postWithRetry(ctx context.Context, path string, body, out any, token string) error {
	var (
		lastErr    error
		retryAfter time.Duration
		attempts   int
	)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attempts++
			if attempts > 1 {
				countRetry(ctx)
				c.observer.ObserveAPIRetry(path)
			}
			lastErr = c.do(ctx, path, body, out, token)
			retryAfter = 0
			var te *apperr.TransportError
			if errors.As(lastErr, &te) {
				retryAfter = te.RetryAfter
			}
			return lastErr
		},
		IsFatalError: func(err error) bool {
			return !apperr.Retryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			c.logger.Debug("API call failed",
				zap.String("endpoint", path), zap.Int("attempt", attempt), zap.Error(err))
		},
		BackoffFunc: func(_ time.Duration, attempt int) time.Duration {
			if retryAfter > 0 {
				return retryAfter
			}
			return c.retryDelay * time.Duration(1<<attempt)
		},
		Attempts: c.retryCount + 1,
		Delay:    c.retryDelay,
		Clock:    c.clock,
		Stop:     ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if retry.IsRetryStopped(err) && ctx.Err() != nil {
		return errors.Annotatef(ctx.Err(), "%s aborted after %d attempts", path, attempts)
	}
	if lastErr == nil {
		return errors.Trace(err)
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, path string, body, out any, token string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return transportError(ctx, err)
	}

	params := c.signer.Sign(path, token)
	started := c.clock.Now()
	countCall(ctx)

	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(params.Query())
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	elapsed := c.clock.Now().Sub(started)
	if err != nil {
		terr := transportError(ctx, err)
		c.observer.ObserveAPICall(path, outcome(terr), elapsed)
		return terr
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		herr := apperr.NewHTTPError(status, parseRetryAfter(resp.Header().Get("Retry-After"), c.clock.Now()), resp.String())
		c.observer.ObserveAPICall(path, outcome(herr), elapsed)
		return herr
	}

	var env Envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		c.observer.ObserveAPICall(path, "decode_error", elapsed)
		return &apperr.TransportError{Kind: apperr.TransportDecode, StatusCode: status, Cause: err}
	}
	switch env.Code {
	case 0:
	case apperr.RateLimitCode:
		c.observer.ObserveAPICall(path, "rate_limited", elapsed)
		return &apperr.RateLimitError{Msg: env.Msg}
	default:
		c.observer.ObserveAPICall(path, "business_error", elapsed)
		return &apperr.BusinessError{Code: env.Code, Msg: env.Msg}
	}

	c.observer.ObserveAPICall(path, "ok", elapsed)
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &apperr.TransportError{Kind: apperr.TransportDecode, StatusCode: status, Cause: err}
	}
	return nil
}

func isUnauthorized(err error) bool {
	var te *apperr.TransportError
	return errors.As(err, &te) && te.StatusCode == http.StatusUnauthorized
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Annotate(ctxErr, "request aborted")
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &apperr.TransportError{Kind: apperr.TransportTimeout, Cause: err}
	}
	return &apperr.TransportError{Kind: apperr.TransportConn, Cause: err}
}

func outcome(err error) string {
	var te *apperr.TransportError
	if errors.As(err, &te) {
		return string(te.Kind)
	}
	return "aborted"
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
