package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
	"github.com/cognicore/calldriver/pkg/calldriver/store"
)

// Store is an in-memory implementation of store.Store for tests and
// one-shot CLI runs.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]store.Run
	tickets map[string][]store.Ticket
	labels  map[string][]store.ClusterLabel
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:    make(map[string]store.Run),
		tickets: make(map[string][]store.Ticket),
		labels:  make(map[string][]store.ClusterLabel),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun implements store.Store.
func (s *Store) SaveRun(ctx context.Context, r store.Run, tickets []store.Ticket, labels []store.ClusterLabel) error {
	if r.ID == "" {
		return fmt.Errorf("run id: %w", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("run %s: %w", r.ID, internalerr.ErrDuplicate)
	}
	s.runs[r.ID] = r
	s.tickets[r.ID] = append([]store.Ticket(nil), tickets...)
	s.labels[r.ID] = append([]store.ClusterLabel(nil), labels...)
	return nil
}

// GetRun implements store.Store.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return r, nil
}

// ListRuns implements store.Store.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Tickets implements store.Store.
func (s *Store) Tickets(ctx context.Context, runID string) ([]store.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.tickets[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	return append([]store.Ticket(nil), ts...), nil
}

// ClusterLabels implements store.Store.
func (s *Store) ClusterLabels(ctx context.Context, runID string) ([]store.ClusterLabel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.labels[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	out := append([]store.ClusterLabel(nil), ls...)
	sort.Slice(out, func(i, j int) bool { return out[i].Driver < out[j].Driver })
	return out, nil
}
