// Package history records generation runs.
package history

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned for an unknown record id.
var ErrNotFound = errors.New("history: record not found")

// Status is the lifecycle state of one run.
type Status string

const (
	StatusInvoked   Status = "invoked"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is one generation run.
type Record struct {
	ID         string     `json:"id"`
	Dataset    string     `json:"dataset"`
	Year       string     `json:"year"`
	Status     Status     `json:"status"`
	Filename   string     `json:"filename,omitempty"`
	Error      string     `json:"error,omitempty"`
	Logs       []string   `json:"logs"`
	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Outcome is what Finish writes onto a record.
type Outcome struct {
	Status   Status
	Filename string
	Error    string
	Logs     []string
}

// Store persists records.
type Store interface {
	Create(ctx context.Context, r Record) error
	MarkRunning(ctx context.Context, id string) error
	Finish(ctx context.Context, id string, o Outcome) error
	List(ctx context.Context, limit int) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
}

// TrimLogs keeps the last max lines.
func TrimLogs(lines []string, max int) []string {
	if max > 0 && len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// MemoryStore keeps the most recent records in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	cap   int
	order []string // oldest first
	byID  map[string]*Record
	now   func() time.Time
}

// NewMemoryStore retains at most capacity records.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 200
	}
	return &MemoryStore{cap: capacity, byID: make(map[string]*Record), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Status == "" {
		r.Status = StatusInvoked
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	if r.Logs == nil {
		r.Logs = []string{}
	}
	if _, exists := s.byID[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	s.byID[r.ID] = &r

	for len(s.order) > s.cap {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *MemoryStore) MarkRunning(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status.Terminal() {
		return nil
	}
	t := s.now()
	r.Status = StatusRunning
	r.StartedAt = &t
	return nil
}

func (s *MemoryStore) Finish(_ context.Context, id string, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	t := s.now()
	r.Status = o.Status
	r.Filename = o.Filename
	r.Error = o.Error
	r.Logs = append([]string{}, o.Logs...)
	r.FinishedAt = &t
	return nil
}

// List returns up to limit records, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]Record, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyRecord(s.byID[s.order[i]]))
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(r), nil
}

func copyRecord(r *Record) Record {
	c := *r
	c.Logs = append([]string{}, r.Logs...)
	return c
}
