// Package telemetry provides query-turn telemetry for the launcher.
// All telemetry data is stored locally - no external reporting.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// =============================================================================
// Events
// =============================================================================

// TurnEvent describes one finished query turn.
type TurnEvent struct {
	Query       string
	Outcome     string
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult reports whether a delivered turn had no candidates.
// Superseded and canceled turns are never zero-result.
func (e TurnEvent) IsZeroResult() bool {
	return e.ResultCount == 0 && (e.Outcome == "completed" || e.Outcome == "shortcut")
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int // Current number of items
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		// Buffer full - oldest item is at head
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// =============================================================================
// Term Extraction
// =============================================================================

// ExtractTerms lowercases the query and returns its words of two or more runes.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(w)) >= 2 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// SourceStats aggregates per-source outcomes.
type SourceStats struct {
	OK       int64         `json:"ok"`
	Failed   int64         `json:"failed"`
	Timeout  int64         `json:"timeout"`
	Skipped  int64         `json:"skipped"`
	Canceled int64         `json:"canceled"`
	Total    time.Duration `json:"total_duration_ns"`
}

// Calls returns how many times the source was resolved (skips excluded).
func (s SourceStats) Calls() int64 {
	return s.OK + s.Failed + s.Timeout + s.Canceled
}

// MeanLatency is the mean resolve duration.
func (s SourceStats) MeanLatency() time.Duration {
	if n := s.Calls(); n > 0 {
		return s.Total / time.Duration(n)
	}
	return 0
}

// =============================================================================
// Snapshot
// =============================================================================

// QueryMetricsSnapshot is an immutable snapshot of query metrics.
type QueryMetricsSnapshot struct {
	OutcomeCounts       map[string]int64       `json:"outcome_counts"`
	TopTerms            []TermCount            `json:"top_terms"`
	ZeroResultQueries   []string               `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	Sources             map[string]SourceStats `json:"sources"`
	TotalTurns          int64                  `json:"total_turns"`
	ZeroResultCount     int64                  `json:"zero_result_count"`
	Selections          int64                  `json:"selections"`
	ExactRepeatCount    int64                  `json:"exact_repeat_count"`
	Since               time.Time              `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result turns.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalTurns == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalTurns) * 100
}

// =============================================================================
// Store
// =============================================================================

// QueryMetricsStore persists aggregated metrics across sessions.
type QueryMetricsStore interface {
	SaveOutcomeCounts(date string, counts map[string]int64) error
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	SaveSourceStats(date string, stats map[string]SourceStats) error
	UpsertTermCounts(terms map[string]int64) error
	Close() error
}

// =============================================================================
// Query Metrics
// =============================================================================

// QueryMetricsConfig configures the collector.
type QueryMetricsConfig struct {
	TopTermsCapacity      int // Max terms to track (default: 100)
	ZeroResultsCapacity   int // Max zero-result queries to keep (default: 100)
	RecentQueriesCapacity int // Max queries to track for repetition (default: 500)
}

// DefaultQueryMetricsConfig returns sensible defaults.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
	}
}

// QueryMetrics collects turn telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	outcomes        map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	sources         map[string]SourceStats
	recentQueries   *lru.Cache[string, struct{}]
	totalTurns      int64
	zeroResultCount int64
	selections      int64
	exactRepeats    int64
	startTime       time.Time

	// Flushed deltas are subtracted so repeated flushes do not double count.
	flushed flushMark

	store  QueryMetricsStore
	closed bool
}

type flushMark struct {
	outcomes  map[string]int64
	latencies map[LatencyBucket]int64
	sources   map[string]SourceStats
	terms     map[string]int64
}

// NewQueryMetrics creates a collector with the default configuration.
// If store is nil, metrics are only kept in memory.
func NewQueryMetrics(store QueryMetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector with custom configuration.
func NewQueryMetricsWithConfig(store QueryMetricsStore, cfg QueryMetricsConfig) *QueryMetrics {
	def := DefaultQueryMetricsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recentQueries, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	return &QueryMetrics{
		outcomes:      make(map[string]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		sources:       make(map[string]SourceStats),
		recentQueries: recentQueries,
		startTime:     time.Now(),
		store:         store,
		flushed: flushMark{
			outcomes:  make(map[string]int64),
			latencies: make(map[LatencyBucket]int64),
			sources:   make(map[string]SourceStats),
			terms:     make(map[string]int64),
		},
	}
}

// RecordTurn captures one finished turn.
func (m *QueryMetrics) RecordTurn(event TurnEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.outcomes[event.Outcome]++
	m.totalTurns++
	m.latencies[LatencyToBucket(event.Latency)]++

	if event.Outcome != "completed" && event.Outcome != "shortcut" {
		return
	}

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}
	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
	}

	key := strings.ToLower(strings.TrimSpace(event.Query))
	if _, seen := m.recentQueries.Get(key); seen {
		m.exactRepeats++
	}
	m.recentQueries.Add(key, struct{}{})
}

// ObserveSource records one source outcome.
func (m *QueryMetrics) ObserveSource(sourceID string, status source.Status, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	s := m.sources[sourceID]
	switch status {
	case source.StatusOK:
		s.OK++
	case source.StatusFailed:
		s.Failed++
	case source.StatusTimeout:
		s.Timeout++
	case source.StatusSkipped:
		s.Skipped++
	case source.StatusCanceled:
		s.Canceled++
	}
	s.Total += d
	m.sources[sourceID] = s
}

// RecordSelection counts one candidate selection.
func (m *QueryMetrics) RecordSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.selections++
	}
}

// Snapshot returns current metrics for reporting.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *QueryMetrics) snapshotLocked() *QueryMetricsSnapshot {
	outcomes := make(map[string]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}
	sources := make(map[string]SourceStats, len(m.sources))
	for k, v := range m.sources {
		sources[k] = v
	}

	topTerms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.SliceStable(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})

	return &QueryMetricsSnapshot{
		OutcomeCounts:       outcomes,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		Sources:             sources,
		TotalTurns:          m.totalTurns,
		ZeroResultCount:     m.zeroResultCount,
		Selections:          m.selections,
		ExactRepeatCount:    m.exactRepeats,
		Since:               m.startTime,
	}
}

// Flush persists what was recorded since the previous flush.
// Safe to call even if no store is configured.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	snap := m.snapshotLocked()
	outcomes := diffCounts(snap.OutcomeCounts, m.flushed.outcomes)
	latencies := diffCounts(snap.LatencyDistribution, m.flushed.latencies)
	sources := make(map[string]SourceStats)
	for id, s := range snap.Sources {
		prev := m.flushed.sources[id]
		d := SourceStats{
			OK:       s.OK - prev.OK,
			Failed:   s.Failed - prev.Failed,
			Timeout:  s.Timeout - prev.Timeout,
			Skipped:  s.Skipped - prev.Skipped,
			Canceled: s.Canceled - prev.Canceled,
			Total:    s.Total - prev.Total,
		}
		if d.Calls() > 0 || d.Skipped > 0 {
			sources[id] = d
		}
	}
	terms := make(map[string]int64)
	for _, tc := range snap.TopTerms {
		if d := tc.Count - m.flushed.terms[tc.Term]; d > 0 {
			terms[tc.Term] = d
		}
	}
	m.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if err := m.store.SaveOutcomeCounts(today, outcomes); err != nil {
		return err
	}
	if err := m.store.SaveLatencyCounts(today, latencies); err != nil {
		return err
	}
	if err := m.store.SaveSourceStats(today, sources); err != nil {
		return err
	}
	if err := m.store.UpsertTermCounts(terms); err != nil {
		return err
	}

	m.mu.Lock()
	m.flushed.outcomes = snap.OutcomeCounts
	m.flushed.latencies = snap.LatencyDistribution
	m.flushed.sources = snap.Sources
	for _, tc := range snap.TopTerms {
		m.flushed.terms[tc.Term] = tc.Count
	}
	m.mu.Unlock()
	return nil
}

func diffCounts[K comparable](now, prev map[K]int64) map[K]int64 {
	out := make(map[K]int64)
	for k, v := range now {
		if d := v - prev[k]; d > 0 {
			out[k] = d
		}
	}
	return out
}

// Close flushes and stops recording. The store is closed too.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	err := m.Flush()

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if m.store != nil {
		if cerr := m.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
