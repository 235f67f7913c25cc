package keep

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// tokenBytes is the entropy of a share token: 32 random bytes, well
// above the 128-bit floor, URL-safe encoded.
const tokenBytes = 32

type shareEntry struct {
	path         string
	expiry       time.Time
	passwordHash []byte // nil when the token is not password-protected
}

// ShareRegistry issues and resolves expiring capability tokens, each
// granting time-limited access to one logical file. The registry is
// process-wide in-memory state: tokens do not survive a restart.
// Safe for concurrent use.
type ShareRegistry struct {
	mu     sync.Mutex
	clock  Clock
	tokens map[string]shareEntry
}

// NewShareRegistry creates an empty registry using the given clock for
// expiry decisions.
func NewShareRegistry(clock Clock) *ShareRegistry {
	if clock == nil {
		clock = RealClock{}
	}
	return &ShareRegistry{
		clock:  clock,
		tokens: make(map[string]shareEntry),
	}
}

// Issue creates a token for the logical path, valid for ttl from now.
// A non-empty password is stored only as a bcrypt hash. Re-issuing for
// the same path creates an unrelated new token; tokens are never
// renewable.
func (r *ShareRegistry) Issue(path, password string, ttl time.Duration) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating share token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	var hash []byte
	if password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("hashing share password: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = shareEntry{
		path:         path,
		expiry:       r.clock.Now().Add(ttl),
		passwordHash: hash,
	}
	return token, nil
}

// Resolve exchanges a token for its logical path. Outcomes:
// ErrNotFound for an unknown token; ErrExpired for a token at or past
// its expiry (the token and its password hash are purged before
// returning); ErrPasswordRequired / ErrDenied for protected tokens
// resolved without or with a wrong password. A token issued with
// ttl=0 is expired on its very first resolve.
func (r *ShareRegistry) Resolve(token, password string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tokens[token]
	if !ok {
		return "", ErrNotFound
	}
	if !r.clock.Now().Before(e.expiry) {
		delete(r.tokens, token)
		return "", ErrExpired
	}
	if e.passwordHash != nil {
		if password == "" {
			return "", ErrPasswordRequired
		}
		if bcrypt.CompareHashAndPassword(e.passwordHash, []byte(password)) != nil {
			return "", ErrDenied
		}
	}
	return e.path, nil
}

// Revoke destroys a token before its expiry. Returns ErrNotFound if
// the token does not exist (or already expired away).
func (r *ShareRegistry) Revoke(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token]; !ok {
		return ErrNotFound
	}
	delete(r.tokens, token)
	return nil
}

// Len reports the number of live (not yet purged) tokens.
func (r *ShareRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
