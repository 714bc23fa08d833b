package catalog

import (
	"sync"
	"sync/atomic"
)

// Store owns the current catalog snapshot. Reads are lock-free; Reload
// builds a new snapshot and swaps the pointer in one step.
type Store struct {
	path    string
	current atomic.Pointer[Catalog]
	mu      sync.Mutex // serializes reloads so versions stay monotonic

	onReload []func(*Catalog)
}

// NewStore loads path and returns a store holding version 1.
func NewStore(path string) *Store {
	s := &Store{path: path}
	s.current.Store(Load(path, 1))
	return s
}

// Current returns the snapshot in effect. Callers should hold on to it for
// the duration of one request.
func (s *Store) Current() *Catalog {
	return s.current.Load()
}

// Path is the file the store reloads from.
func (s *Store) Path() string { return s.path }

// OnReload registers a callback run after each successful swap.
func (s *Store) OnReload(fn func(*Catalog)) {
	s.mu.Lock()
	s.onReload = append(s.onReload, fn)
	s.mu.Unlock()
}

// Reload re-reads the document and replaces the held snapshot wholesale.
func (s *Store) Reload() *Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	if s.path == "" {
		return prev
	}
	next := Load(s.path, prev.Version()+1)
	s.current.Store(next)

	for _, fn := range s.onReload {
		fn(next)
	}
	return next
}
