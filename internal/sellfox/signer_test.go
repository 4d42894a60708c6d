package sellfox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSigner() *Signer {
	s := NewSigner("client-42", "top-secret", testclock.NewClock(time.UnixMilli(1719792000123)))
	s.nonce = func() int { return 654321 }
	return s
}

func TestComputeSignSortsKeys(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("k"))
	mac.Write([]byte("a=1&b=2&c=3"))
	want := hex.EncodeToString(mac.Sum(nil))

	got := ComputeSign("k", map[string]string{"c": "3", "a": "1", "b": "2"})
	assert.Equal(t, want, got)
	assert.Regexp(t, `^[0-9a-f]{64}$`, got)
}

func TestSignParams(t *testing.T) {
	p := fixedSigner().Sign("/api/productAnalyze/new/pageList.json", "tok")

	assert.Equal(t, "1719792000123", p.Timestamp)
	assert.Len(t, p.Timestamp, 13)
	assert.Equal(t, "654321", p.Nonce)
	assert.Equal(t, ComputeSign("top-secret", map[string]string{
		"access_token": "tok",
		"client_id":    "client-42",
		"method":       "post",
		"nonce":        "654321",
		"timestamp":    "1719792000123",
		"url":          "/api/productAnalyze/new/pageList.json",
	}), p.Sign)

	q := p.Query()
	assert.Equal(t, "tok", q["access_token"])
	assert.Equal(t, p.Sign, q["sign"])
	assert.NotContains(t, q, "url")
}

func TestSignChangesWhenAnyInputChanges(t *testing.T) {
	base := map[string]string{
		"access_token": "tok",
		"client_id":    "client-42",
		"method":       "post",
		"nonce":        "654321",
		"timestamp":    "1719792000123",
		"url":          "/api/x.json",
	}
	ref := ComputeSign("top-secret", base)

	for key := range base {
		t.Run(key, func(t *testing.T) {
			mutated := make(map[string]string, len(base))
			for k, v := range base {
				mutated[k] = v
			}
			mutated[key] += "x"
			assert.NotEqual(t, ref, ComputeSign("top-secret", mutated))
		})
	}
	assert.NotEqual(t, ref, ComputeSign("top-secreT", base))
}

func TestSignTimestampFollowsClock(t *testing.T) {
	clk := testclock.NewClock(time.UnixMilli(1719792000000))
	s := NewSigner("id", "secret", clk)
	s.nonce = func() int { return 123456 }

	first := s.Sign("/api/x.json", "tok")
	assert.Equal(t, "1719792000000", first.Timestamp)

	clk.Advance(90 * time.Second)
	second := s.Sign("/api/x.json", "tok")
	assert.Equal(t, "1719792090000", second.Timestamp)
	assert.NotEqual(t, first.Sign, second.Sign)
}

func TestNonceIsSixDigits(t *testing.T) {
	s := NewSigner("id", "secret", nil)
	for i := 0; i < 200; i++ {
		n := s.nonce()
		require.GreaterOrEqual(t, n, 100000)
		require.Less(t, n, 1000000)
	}
}
