// Package registry implements the token registry and revocation cache
// of §4.5: an in-memory active-token index with secondary indexes, and a
// bounded revocation cache with append-only persistence.
package registry

import (
	"sync"
	"time"
)

// Entry is a token registry entry: (token id, session id, operator id,
// robot id, expiry).
type Entry struct {
	TokenID    string
	SessionID  string
	OperatorID string
	RobotID    string
	ExpiresAt  time.Time
}

// Registry is the in-memory map from token id to entry, with secondary
// indexes on session id and operator id.
type Registry struct {
	mu         sync.RWMutex
	byToken    map[string]Entry
	bySession  map[string]map[string]struct{} // sessionID -> tokenIDs
	byOperator map[string]map[string]struct{} // operatorID -> tokenIDs
	revocation *RevocationCache
}

func NewRegistry(revocation *RevocationCache) *Registry {
	return &Registry{
		byToken:    make(map[string]Entry),
		bySession:  make(map[string]map[string]struct{}),
		byOperator: make(map[string]map[string]struct{}),
		revocation: revocation,
	}
}

func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[e.TokenID] = e
	indexAdd(r.bySession, e.SessionID, e.TokenID)
	indexAdd(r.byOperator, e.OperatorID, e.TokenID)
}

func indexAdd(idx map[string]map[string]struct{}, key, tokenID string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[tokenID] = struct{}{}
}

func indexRemove(idx map[string]map[string]struct{}, key, tokenID string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, tokenID)
	if len(set) == 0 {
		delete(idx, key)
	}
}

// Revoke revokes a single token, recording it in the revocation cache
// and removing it from the active index.
func (r *Registry) Revoke(tokenID string, reason string) bool {
	r.mu.Lock()
	e, ok := r.byToken[tokenID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.byToken, tokenID)
	indexRemove(r.bySession, e.SessionID, tokenID)
	indexRemove(r.byOperator, e.OperatorID, tokenID)
	r.mu.Unlock()

	r.revocation.Add(tokenID, e.ExpiresAt, reason)
	return true
}

// RevokeBySession revokes every token for a session id; returns the
// count revoked.
func (r *Registry) RevokeBySession(sessionID string, reason string) int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.bySession[sessionID]))
	for id := range r.bySession[sessionID] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	count := 0
	for _, id := range ids {
		if r.Revoke(id, reason) {
			count++
		}
	}
	return count
}

// RevokeByOperator revokes every token belonging to an operator; returns
// the distinct set of affected session ids.
func (r *Registry) RevokeByOperator(operatorID string, reason string) []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.byOperator[operatorID]))
	for id := range r.byOperator[operatorID] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sessions := make(map[string]struct{})
	for _, id := range ids {
		r.mu.RLock()
		e, ok := r.byToken[id]
		r.mu.RUnlock()
		if ok {
			sessions[e.SessionID] = struct{}{}
		}
		r.Revoke(id, reason)
	}
	out := make([]string, 0, len(sessions))
	for sid := range sessions {
		out = append(out, sid)
	}
	return out
}

// IsValid returns false if the token is revoked, not registered, or
// expired. The revocation cache is consulted first so post-restart
// bearers of revoked tokens are rejected even before the registry is
// reconstructed (§4.5).
func (r *Registry) IsValid(tokenID string) bool {
	if r.revocation.IsRevoked(tokenID) {
		return false
	}
	r.mu.RLock()
	e, ok := r.byToken[tokenID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return time.Now().Before(e.ExpiresAt)
}

func (r *Registry) GetByToken(tokenID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byToken[tokenID]
	return e, ok
}

func (r *Registry) GetBySession(sessionID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.bySession[sessionID]))
	for id := range r.bySession[sessionID] {
		out = append(out, r.byToken[id])
	}
	return out
}

// All returns a snapshot of all live entries (for the near-expiry monitor).
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.byToken))
	for _, e := range r.byToken {
		out = append(out, e)
	}
	return out
}

// Cleanup removes expired entries from the active index; they do not
// need to enter the revocation cache since they are no longer valid
// regardless.
func (r *Registry) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, e := range r.byToken {
		if !now.Before(e.ExpiresAt) {
			delete(r.byToken, id)
			indexRemove(r.bySession, e.SessionID, id)
			indexRemove(r.byOperator, e.OperatorID, id)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup on an interval until stop is closed.
func (r *Registry) StartCleanup(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				r.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
