package sellfox

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/juju/clock"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/config"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
)

const (
	TokenPath = "/api/oauth/v2/token.json"

	// expires_in values above this are absolute epoch milliseconds.
	epochMillisThreshold = 86_400_000

	defaultRefreshMargin = 5 * time.Minute
	defaultRefreshWait   = 30 * time.Second
	defaultTokenLifetime = 2 * time.Hour
)

type tokenResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   Float  `json:"expires_in"`
	} `json:"data"`
}

// TokenClient fetches and caches the client-credentials access token.
type TokenClient struct {
	creds  config.APICredentials
	http   *resty.Client
	clock  clock.Clock
	logger logger.ZapLogger

	// refresh holds one slot; whoever owns it is the single in-flight refresh.
	refresh chan struct{}

	mu    sync.RWMutex
	token *oauth2.Token

	RefreshMargin time.Duration
	RefreshWait   time.Duration
}

func NewTokenClient(creds config.APICredentials, httpClient *resty.Client, clk clock.Clock, log logger.ZapLogger) *TokenClient {
	if clk == nil {
		clk = clock.WallClock
	}
	return &TokenClient{
		creds:         creds,
		http:          httpClient,
		clock:         clk,
		logger:        log,
		refresh:       make(chan struct{}, 1),
		RefreshMargin: defaultRefreshMargin,
		RefreshWait:   defaultRefreshWait,
	}
}

// AccessToken returns a cached token that is not within RefreshMargin of
// expiry, fetching a new one when needed.
func (c *TokenClient) AccessToken(ctx context.Context) (string, error) {
	if tok := c.cached(); tok != "" {
		return tok, nil
	}
	return c.refreshToken(ctx, "")
}

// ForceRefresh discards stale and fetches a new token. When another caller
// has already replaced stale, that newer token is returned instead.
func (c *TokenClient) ForceRefresh(ctx context.Context, stale string) (string, error) {
	return c.refreshToken(ctx, stale)
}

// Expiry reports the cached token's expiry, zero when nothing is cached.
func (c *TokenClient) Expiry() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return time.Time{}
	}
	return c.token.Expiry
}

func (c *TokenClient) cached() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil || c.token.AccessToken == "" {
		return ""
	}
	if !c.clock.Now().Before(c.token.Expiry.Add(-c.RefreshMargin)) {
		return ""
	}
	return c.token.AccessToken
}

func (c *TokenClient) refreshToken(ctx context.Context, stale string) (string, error) {
	select {
	case c.refresh <- struct{}{}:
	default:
		select {
		case c.refresh <- struct{}{}:
		case <-ctx.Done():
			return "", &apperr.AuthError{Msg: "waiting for token refresh", Cause: ctx.Err()}
		case <-c.clock.After(c.RefreshWait):
			return "", &apperr.AuthError{Msg: "timed out waiting for in-flight token refresh"}
		}
	}
	defer func() { <-c.refresh }()

	// Another caller may have refreshed while we waited.
	if tok := c.cached(); tok != "" && tok != stale {
		return tok, nil
	}

	tok, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()

	c.logger.Info("Refreshed access token", zap.Time("expires_at", tok.Expiry))
	return tok.AccessToken, nil
}

func (c *TokenClient) fetch(ctx context.Context) (*oauth2.Token, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client_id":     c.creds.ClientID,
			"client_secret": c.creds.ClientSecret,
			"grant_type":    "client_credentials",
		}).
		Post(TokenPath)
	if err != nil {
		return nil, &apperr.AuthError{Msg: "token request failed", Cause: transportError(ctx, err)}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &apperr.AuthError{
			Msg:   "token endpoint rejected request",
			Cause: apperr.NewHTTPError(resp.StatusCode(), 0, resp.String()),
		}
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, &apperr.AuthError{Msg: "decode token response", Cause: err}
	}
	if body.Code != 0 || body.Data.AccessToken == "" {
		return nil, &apperr.AuthError{Msg: "token endpoint returned no token",
			Cause: &apperr.BusinessError{Code: body.Code, Msg: body.Msg}}
	}

	return &oauth2.Token{
		AccessToken: body.Data.AccessToken,
		TokenType:   "Bearer",
		Expiry:      c.expiry(float64(body.Data.ExpiresIn)),
	}, nil
}

func (c *TokenClient) expiry(expiresIn float64) time.Time {
	now := c.clock.Now()
	switch {
	case expiresIn > epochMillisThreshold:
		return time.UnixMilli(int64(expiresIn))
	case expiresIn > 0:
		return now.Add(time.Duration(expiresIn * float64(time.Second)))
	default:
		c.logger.Warn("Token response without expires_in, assuming default lifetime",
			zap.Duration("lifetime", defaultTokenLifetime))
		return now.Add(defaultTokenLifetime)
	}
}
