package policy

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrAlreadyExists = errors.New("policy: already exists")
	ErrNotFound      = errors.New("policy: not found")
	ErrCapacity      = errors.New("policy: store at capacity")
)

const DefaultCap = 10000

// Store holds policies in memory, keyed by id, with a version history per
// id. An optional Postgres mirror (see postgres.go) can shadow-write the
// history for durability; the in-memory map remains authoritative.
type Store struct {
	mu      sync.RWMutex
	current map[string]*Policy
	history map[string][]*Policy
	cap     int
	mirror  HistoryMirror
}

// HistoryMirror is implemented by internal/policy/postgres.go's
// PostgresMirror; when no DSN is configured no mirror is set and
// recording is skipped.
type HistoryMirror interface {
	RecordVersion(p *Policy) error
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{
		current: make(map[string]*Policy),
		history: make(map[string][]*Policy),
		cap:     capacity,
	}
}

func (s *Store) SetMirror(m HistoryMirror) { s.mirror = m }

func (s *Store) Create(id, name string, rules []Rule) (*Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.current[id]; ok {
		return nil, ErrAlreadyExists
	}
	if len(s.current) >= s.cap {
		return nil, ErrCapacity
	}
	now := time.Now().UTC()
	p := &Policy{
		ID:        id,
		Version:   1,
		Name:      name,
		Rules:     rules,
		Hash:      CanonicalHash(rules),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.current[id] = p
	s.history[id] = []*Policy{snapshot(p)}
	s.mirrorRecord(p)
	return p, nil
}

func (s *Store) Update(id, name string, rules []Rule) (*Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.current[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := &Policy{
		ID:        id,
		Version:   existing.Version + 1,
		Name:      name,
		Rules:     rules,
		Hash:      CanonicalHash(rules),
		CreatedAt: existing.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	s.current[id] = next
	s.history[id] = append(s.history[id], snapshot(next))
	s.mirrorRecord(next)
	return next, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.current[id]; !ok {
		return ErrNotFound
	}
	delete(s.current, id)
	delete(s.history, id)
	return nil
}

func (s *Store) Get(id string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.current[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(p), nil
}

func (s *Store) GetByVersion(id string, version int) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.history[id] {
		if p.Version == version {
			return snapshot(p), nil
		}
	}
	return nil, ErrNotFound
}

func (s *Store) List() []*Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Policy, 0, len(s.current))
	for _, p := range s.current {
		out = append(out, snapshot(p))
	}
	return out
}

func (s *Store) GetVersionHistory(id string) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.history[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]*Policy, len(h))
	for i, p := range h {
		out[i] = snapshot(p)
	}
	return out, nil
}

func (s *Store) mirrorRecord(p *Policy) {
	if s.mirror == nil {
		return
	}
	_ = s.mirror.RecordVersion(snapshot(p))
}

func snapshot(p *Policy) *Policy {
	cp := *p
	cp.Rules = append([]Rule(nil), p.Rules...)
	return &cp
}
