package store

import (
	"context"
	"sync"
	"time"

	"veranda/internal/audit"
)

// InMemory keeps audit entries in insertion order. Used in tests and when no
// database is configured.
type InMemory struct {
	mu      sync.RWMutex
	entries []audit.Entry

	failNext error
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// FailNextAppend makes the next Append return err. Tests use it to verify
// that a failed audit write aborts the whole transition.
func (s *InMemory) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *InMemory) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemory) ListBySubject(_ context.Context, subject audit.Subject) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemory) ListBetween(_ context.Context, from, to time.Time) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every entry in insertion order. Test helper.
func (s *InMemory) All() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries...)
}
