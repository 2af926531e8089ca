// Package auth issues and verifies the short-lived action tokens that guard
// admin commands.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/feed-aggregator/internal/config"
	"github.com/ignite/feed-aggregator/internal/pkg/httputil"
)

// NonceHeader carries a token on API requests.
const NonceHeader = "X-Blacklist-Nonce"

// tokenLength is the number of hex characters kept from the MAC.
const tokenLength = 20

// ErrEmptySecret is returned by NewFromConfig when the guard is enabled
// without a secret.
var ErrEmptySecret = errors.New("auth: nonce_secret is required unless auth.disabled is set")

// NonceGuard creates HMAC tokens bound to an action, a subject (the item or
// permalink acted on) and a time window.
// A token verifies during the half-lifetime tick it was made in and the
// following one, so it lives between half and the full lifetime.
type NonceGuard struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewNonceGuard creates a guard. A lifetime under two seconds is raised to
// one day.
func NewNonceGuard(secret string, lifetime time.Duration) *NonceGuard {
	if lifetime < 2*time.Second {
		lifetime = 24 * time.Hour
	}
	return &NonceGuard{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// NewFromConfig returns a nil guard when auth is disabled. An enabled guard
// with an empty secret is refused, since anyone could compute its tokens.
func NewFromConfig(cfg config.AuthConfig) (*NonceGuard, error) {
	if cfg.Disabled {
		return nil, nil
	}
	if cfg.NonceSecret == "" {
		return nil, ErrEmptySecret
	}
	return NewNonceGuard(cfg.NonceSecret, cfg.NonceLifetime()), nil
}

func (g *NonceGuard) tick() int64 {
	half := int64(g.lifetime / 2)
	return (g.now().UnixNano() + half - 1) / half
}

func (g *NonceGuard) token(action, subject string, tick int64) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(strconv.Itoa(len(action))))
	mac.Write([]byte{'|'})
	mac.Write([]byte(action))
	mac.Write([]byte{'|'})
	mac.Write([]byte(subject))
	return hex.EncodeToString(mac.Sum(nil))[:tokenLength]
}

// Create returns a token for action on subject, valid from now.
func (g *NonceGuard) Create(action, subject string) string {
	return g.token(action, subject, g.tick())
}

// Verify reports whether token was created for action on subject within its
// lifetime.
func (g *NonceGuard) Verify(action, subject, token string) bool {
	if len(token) != tokenLength {
		return false
	}
	tick := g.tick()
	for _, t := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(token), []byte(g.token(action, subject, t))) {
			return true
		}
	}
	return false
}

// Require is middleware that rejects requests without a valid token for
// action in the NonceHeader header or the _nonce query parameter. subject
// extracts what the token must be bound to; nil binds to the empty subject.
func (g *NonceGuard) Require(action string, subject func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g == nil {
				next.ServeHTTP(w, r)
				return
			}
			token := r.Header.Get(NonceHeader)
			if token == "" {
				token = r.URL.Query().Get("_nonce")
			}
			var subj string
			if subject != nil {
				subj = subject(r)
			}
			if !g.Verify(action, subj, token) {
				httputil.ErrorCode(w, http.StatusForbidden, "invalid_nonce", "invalid nonce")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
