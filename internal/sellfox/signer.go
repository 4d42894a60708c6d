package sellfox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/clock"
)

// SignedParams are the query parameters attached to every business call.
type SignedParams struct {
	AccessToken string
	ClientID    string
	Timestamp   string
	Nonce       string
	Sign        string
}

func (p SignedParams) Query() map[string]string {
	return map[string]string{
		"access_token": p.AccessToken,
		"client_id":    p.ClientID,
		"timestamp":    p.Timestamp,
		"nonce":        p.Nonce,
		"sign":         p.Sign,
	}
}

// Signer produces per-request HMAC-SHA256 signatures.
type Signer struct {
	clientID     string
	clientSecret string
	clock        clock.Clock
	nonce        func() int
}

// NewSigner stamps signatures with clk's time; nil means the wall clock.
func NewSigner(clientID, clientSecret string, clk clock.Clock) *Signer {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Signer{
		clientID:     clientID,
		clientSecret: clientSecret,
		clock:        clk,
		nonce:        func() int { return 100000 + rand.IntN(900000) },
	}
}

// Sign signs a POST to path (no scheme or host) with the given access token.
func (s *Signer) Sign(path, accessToken string) SignedParams {
	ts := strconv.FormatInt(s.clock.Now().UnixMilli(), 10)
	nonce := strconv.Itoa(s.nonce())
	params := map[string]string{
		"access_token": accessToken,
		"client_id":    s.clientID,
		"method":       "post",
		"nonce":        nonce,
		"timestamp":    ts,
		"url":          path,
	}
	return SignedParams{
		AccessToken: accessToken,
		ClientID:    s.clientID,
		Timestamp:   ts,
		Nonce:       nonce,
		Sign:        ComputeSign(s.clientSecret, params),
	}
}

// ComputeSign joins params as k=v pairs sorted by ASCII key and returns the
// lowercase hex HMAC-SHA256 of the result keyed by secret.
func ComputeSign(secret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
