// Package store persists pipeline runs: per-ticket final drivers and the
// labels given to discovered clusters.
package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store is the interface for persisting and querying runs.
type Store interface {
	Close() error

	// SaveRun writes a run with its tickets and cluster labels atomically.
	SaveRun(ctx context.Context, r Run, tickets []Ticket, labels []ClusterLabel) error
	// GetRun returns internalerr.ErrNotFound for an unknown id.
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns the newest runs first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Tickets(ctx context.Context, runID string) ([]Ticket, error)
	ClusterLabels(ctx context.Context, runID string) ([]ClusterLabel, error)
}

// Run summarizes one classification run.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Tickets     int
	OtherBefore float64 // Other fraction after rules
	OtherAfter  float64 // Other fraction after reduction
	Rounds      int
	Stop        string
}

// Ticket is one ticket's outcome within a run.
type Ticket struct {
	Index  int
	Ref    string // caller's ticket number, if any
	Text   string
	Driver string // final driver, cluster drivers replaced by their title
	Source string // rule, taxonomy, cluster or other
}

// ClusterLabel is the name resolved for one discovered cluster.
type ClusterLabel struct {
	Driver    string // cluster_<id>
	Title     string
	Rationale string
	Source    string
	Size      int
}

// IDs issues lexicographically sortable run ids. Safe for concurrent use.
type IDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDs creates an id source backed by crypto/rand.
func NewIDs() *IDs {
	return &IDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns a ULID for time t.
func (g *IDs) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}
