package robotsession

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
)

var ErrKeyNotFound = errors.New("robotsession: jwks key not found")

const (
	DefaultRefreshInterval = 5 * time.Minute
	DefaultFetchTimeout    = 5 * time.Second
	maxRetries             = 3
)

// JWKSFetcher periodically refreshes the Gateway's published
// verification key set and also refreshes on-demand when a kid is not
// found, with bounded retries.
type JWKSFetcher struct {
	url    string
	client *http.Client

	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

func NewJWKSFetcher(url string) *JWKSFetcher {
	return &JWKSFetcher{
		url:    url,
		client: &http.Client{Timeout: DefaultFetchTimeout},
		keys:   make(map[string]ed25519.PublicKey),
	}
}

func (f *JWKSFetcher) PublicKey(kid string) (ed25519.PublicKey, error) {
	f.mu.RLock()
	k, ok := f.keys[kid]
	f.mu.RUnlock()
	if ok {
		return k, nil
	}

	if err := f.refreshWithRetry(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	k, ok = f.keys[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return k, nil
}

func (f *JWKSFetcher) refreshWithRetry() error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := f.refresh(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (f *JWKSFetcher) refresh() error {
	resp, err := f.client.Get(f.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("robotsession: jwks fetch non-200")
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return err
	}

	next := make(map[string]ed25519.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if pub, ok := k.Key.(ed25519.PublicKey); ok {
			next[k.KeyID] = pub
		}
	}

	f.mu.Lock()
	f.keys = next
	f.mu.Unlock()
	return nil
}

// Run refreshes on DefaultRefreshInterval until stop closes.
func (f *JWKSFetcher) Run(stop <-chan struct{}) {
	_ = f.refresh()
	ticker := time.NewTicker(DefaultRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = f.refresh()
		case <-stop:
			return
		}
	}
}
