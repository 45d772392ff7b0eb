// Package token mints and verifies capability tokens: signed envelopes
// binding an operator to a robot for a session with a scope.
package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrKeyNotFound = errors.New("token: signing key not found")

// signingKey is one ed25519 keypair with a stable key id.
type signingKey struct {
	kid     string
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// KeyManager holds the Gateway's current signing key, and retains the
// previous key for a grace window after rotation so recently issued
// tokens keep verifying. Development bootstraps an ephemeral key;
// production would load one from secure storage (out of scope here).
type KeyManager struct {
	mu         sync.RWMutex
	current    signingKey
	previous   *signingKey
	graceUntil time.Time
	gracePeriod time.Duration
}

func NewKeyManager(gracePeriod time.Duration) (*KeyManager, error) {
	if gracePeriod <= 0 {
		gracePeriod = 10 * time.Minute
	}
	km := &KeyManager{gracePeriod: gracePeriod}
	if err := km.rotateLocked(); err != nil {
		return nil, err
	}
	return km, nil
}

func (km *KeyManager) rotateLocked() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	if km.current.private != nil {
		prev := km.current
		km.previous = &prev
		km.graceUntil = time.Now().Add(km.gracePeriod)
	}
	km.current = signingKey{kid: uuid.NewString(), private: priv, public: pub}
	return nil
}

// Rotate generates a fresh signing key; the outgoing key keeps verifying
// until the grace period elapses.
func (km *KeyManager) Rotate() error {
	km.mu.Lock()
	defer km.mu.Unlock()
	return km.rotateLocked()
}

func (km *KeyManager) CurrentKeyID() string {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.current.kid
}

func (km *KeyManager) Sign() (kid string, priv ed25519.PrivateKey) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.current.kid, km.current.private
}

// PublicKeyFor resolves a kid to a public key, honoring the post-rotation
// grace window for the previous key.
func (km *KeyManager) PublicKeyFor(kid string) (ed25519.PublicKey, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	if kid == km.current.kid {
		return km.current.public, nil
	}
	if km.previous != nil && kid == km.previous.kid && time.Now().Before(km.graceUntil) {
		return km.previous.public, nil
	}
	return nil, ErrKeyNotFound
}

// PublicKeySet returns every key id currently eligible to verify,
// for JWKS publication.
func (km *KeyManager) PublicKeySet() map[string]ed25519.PublicKey {
	km.mu.RLock()
	defer km.mu.RUnlock()
	out := map[string]ed25519.PublicKey{km.current.kid: km.current.public}
	if km.previous != nil && time.Now().Before(km.graceUntil) {
		out[km.previous.kid] = km.previous.public
	}
	return out
}
