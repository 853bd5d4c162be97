// Package fake provides an in-memory [linkstore.Store] for tests.
package fake

import (
	"context"
	"slices"
	"sync"

	"github.com/caionorder/redirectd/internal/linkstore"
)

// Store is an in-memory, concurrency-safe [linkstore.Store] for tests.
type Store struct {
	mu      sync.Mutex
	records map[string]linkstore.LinkRecord
}

// New returns a new, empty *Store.
func New() (s *Store) {
	return &Store{
		records: map[string]linkstore.LinkRecord{},
	}
}

// type check
var _ linkstore.Store = (*Store)(nil)

// DeactivateAll implements the [linkstore.Store] interface for *Store.
func (s *Store) DeactivateAll(_ context.Context, keepActive []string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for domain, rec := range s.records {
		if !slices.Contains(keepActive, domain) {
			rec.Status = false
			s.records[domain] = rec
		}
	}

	return nil
}

// UpsertActive implements the [linkstore.Store] interface for *Store.
func (s *Store) UpsertActive(_ context.Context, domain, url string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[domain]
	rec.Domain = domain
	rec.URL = url
	rec.Status = true
	s.records[domain] = rec

	return nil
}

// ListActive implements the [linkstore.Store] interface for *Store.
func (s *Store) ListActive(_ context.Context) (records []linkstore.LinkRecord, err error) {
	return s.Active(), nil
}

// Active returns the currently active records, for test assertions.
func (s *Store) Active() (active []linkstore.LinkRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.Status {
			active = append(active, rec)
		}
	}

	return active
}
