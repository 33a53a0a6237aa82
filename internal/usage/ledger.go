// Package usage tracks how often each candidate was selected for a given
// normalized query. Counters only grow, except through an explicit Reset.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
)

// Counters maps normalized query text to candidate id to selection count.
type Counters map[string]map[string]int64

// Clone returns a deep copy.
func (c Counters) Clone() Counters {
	out := make(Counters, len(c))
	for q, bucket := range c {
		b := make(map[string]int64, len(bucket))
		for id, n := range bucket {
			b[id] = n
		}
		out[q] = b
	}
	return out
}

// Count returns the count for (query, id), zero if unseen.
func (c Counters) Count(query, id string) int64 {
	return c[query][id]
}

// Bucket returns the counts for one query. The map must not be modified.
func (c Counters) Bucket(query string) map[string]int64 {
	return c[query]
}

// Total returns the sum of all counts.
func (c Counters) Total() int64 {
	var total int64
	for _, bucket := range c {
		for _, n := range bucket {
			total += n
		}
	}
	return total
}

// sanitize drops empty candidate ids and non-positive counts from loaded
// data. The blank query is a real bucket: it holds selections made from the
// default list.
func sanitize(in Counters) Counters {
	out := make(Counters, len(in))
	for q, bucket := range in {
		if len(bucket) == 0 {
			continue
		}
		b := make(map[string]int64, len(bucket))
		for id, n := range bucket {
			if id != "" && n > 0 {
				b[id] = n
			}
		}
		if len(b) > 0 {
			out[q] = b
		}
	}
	return out
}

// Ledger is the read/write contract the ranking stage depends on.
type Ledger interface {
	// Snapshot returns an immutable copy of the counters.
	Snapshot() Counters

	// BucketSnapshot returns a copy of the counts for one query.
	BucketSnapshot(query string) map[string]int64

	// Record increments the count for (query, candidateID) by one.
	Record(ctx context.Context, query, candidateID string) error

	// Reset clears every counter.
	Reset(ctx context.Context) error
}

// Persister loads counters at startup and is told about every change.
type Persister interface {
	Load(ctx context.Context) (Counters, error)
	OnChanged(ctx context.Context, counters Counters) error
	Close() error
}

// MemoryLedger keeps counters in memory and forwards changes to a Persister.
// Writes are serialized from snapshot to persist, so the persister always
// sees snapshots in the order they were taken.
type MemoryLedger struct {
	mu        sync.RWMutex
	persistMu sync.Mutex
	counts    Counters
	persister Persister
	logger    *slog.Logger
}

var _ Ledger = (*MemoryLedger)(nil)

// Option configures a MemoryLedger.
type Option func(*MemoryLedger)

// WithPersister sets the collaborator that stores counters.
func WithPersister(p Persister) Option {
	return func(l *MemoryLedger) {
		l.persister = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *MemoryLedger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLedger builds a ledger and loads persisted counters. Load failures and
// malformed data start the ledger empty.
func NewLedger(ctx context.Context, opts ...Option) *MemoryLedger {
	l := &MemoryLedger{
		counts: make(Counters),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.persister == nil {
		return l
	}
	loaded, err := l.persister.Load(ctx)
	if err != nil {
		l.logger.Warn("usage_load_failed", lerrors.LogAttrs(err)...)
		return l
	}
	l.counts = sanitize(loaded)
	l.logger.Debug("usage_loaded",
		slog.Int("queries", len(l.counts)),
		slog.Int64("selections", l.counts.Total()))
	return l
}

// Snapshot returns a deep copy of the counters.
func (l *MemoryLedger) Snapshot() Counters {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counts.Clone()
}

// BucketSnapshot returns a copy of the counts for query, nil if unseen.
func (l *MemoryLedger) BucketSnapshot(query string) map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bucket, ok := l.counts[query]
	if !ok {
		return nil
	}
	out := make(map[string]int64, len(bucket))
	for id, n := range bucket {
		out[id] = n
	}
	return out
}

// Record increments (query, candidateID). The in-memory count is updated
// even when persisting fails; the error reports the persistence failure.
func (l *MemoryLedger) Record(ctx context.Context, query, candidateID string) error {
	if candidateID == "" {
		return lerrors.New(lerrors.ErrCodeInvalidInput, "candidate id is required", nil)
	}

	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	bucket, ok := l.counts[query]
	if !ok {
		bucket = make(map[string]int64)
		l.counts[query] = bucket
	}
	bucket[candidateID]++
	count := bucket[candidateID]
	snapshot := l.counts.Clone()
	l.mu.Unlock()

	l.logger.Debug("usage_recorded",
		slog.String("query", query),
		slog.String("candidate", candidateID),
		slog.Int64("count", count))

	return l.persist(ctx, snapshot)
}

// Reset clears every counter.
func (l *MemoryLedger) Reset(ctx context.Context) error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	l.counts = make(Counters)
	l.mu.Unlock()

	l.logger.Info("usage_reset")
	return l.persist(ctx, Counters{})
}

// Close closes the persister, if any.
func (l *MemoryLedger) Close() error {
	if l.persister == nil {
		return nil
	}
	return l.persister.Close()
}

func (l *MemoryLedger) persist(ctx context.Context, snapshot Counters) error {
	if l.persister == nil {
		return nil
	}
	if err := l.persister.OnChanged(ctx, snapshot); err != nil {
		l.logger.Warn("usage_persist_failed", slog.String("error", err.Error()))
		return fmt.Errorf("persist usage: %w", err)
	}
	return nil
}
