// Package dispatch fans one query out to every applicable source, joins
// their results and groups them by source of origin.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/panjf2000/ants/v2"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/ranking"
	"github.com/Aman-CERP/amanlaunch/internal/scorer"
	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// Default dispatcher settings.
const (
	DefaultSourceTimeout = 500 * time.Millisecond
	DefaultMaxWorkers    = 16

	// collectGrace is how long past the source deadline the join waits for a
	// source that does not honour its context.
	collectGrace = 25 * time.Millisecond
)

// Report describes one source's part in a turn.
type Report struct {
	SourceID string        `json:"source_id"`
	Status   source.Status `json:"status"`
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Turn is the joined output of one fan-out.
type Turn struct {
	// Groups holds each completed source's candidates in the order the
	// source returned them.
	Groups ranking.Grouped

	// Reports covers every enabled source that accepted the query, in
	// registration order.
	Reports []Report
}

// Observer is notified of each source outcome. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveSource(sourceID string, status source.Status, d time.Duration)
}

// Dispatcher runs query turns against a fixed set of sources.
type Dispatcher struct {
	sources  []source.Source
	index    map[string]int
	breakers map[string]*lerrors.CircuitBreaker
	pool     *ants.Pool
	timeout  time.Duration
	workers  int
	logger   *slog.Logger
	observer Observer

	breakerFailures int
	breakerReset    time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSourceTimeout sets the per-source soft time budget.
func WithSourceTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// WithMaxWorkers sets the worker pool size.
func WithMaxWorkers(n int) Option {
	return func(dp *Dispatcher) {
		if n > 0 {
			dp.workers = n
		}
	}
}

// WithCircuitBreaker sets how many consecutive failures skip a source and
// for how long.
func WithCircuitBreaker(maxFailures int, reset time.Duration) Option {
	return func(dp *Dispatcher) {
		dp.breakerFailures = maxFailures
		dp.breakerReset = reset
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(dp *Dispatcher) {
		if l != nil {
			dp.logger = l
		}
	}
}

// WithObserver sets a per-source outcome observer (telemetry).
func WithObserver(o Observer) Option {
	return func(dp *Dispatcher) {
		dp.observer = o
	}
}

// New creates a Dispatcher over sources, in registration order.
// Source ids must be unique and non-empty.
func New(sources []source.Source, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		index:           make(map[string]int, len(sources)),
		breakers:        make(map[string]*lerrors.CircuitBreaker, len(sources)),
		timeout:         DefaultSourceTimeout,
		workers:         DefaultMaxWorkers,
		logger:          slog.Default(),
		breakerFailures: 5,
		breakerReset:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}

	for i, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("source %d: %w", i, lerrors.ErrNilDependency)
		}
		id := src.ID()
		if id == "" {
			return nil, lerrors.New(lerrors.ErrCodeInvalidInput, fmt.Sprintf("source %d has an empty id", i), nil)
		}
		if _, dup := d.index[id]; dup {
			return nil, lerrors.New(lerrors.ErrCodeInvalidInput, fmt.Sprintf("duplicate source id %q", id), nil)
		}
		d.index[id] = i
		d.breakers[id] = lerrors.NewCircuitBreaker(id,
			lerrors.WithMaxFailures(d.breakerFailures),
			lerrors.WithResetTimeout(d.breakerReset))
	}
	d.sources = append([]source.Source(nil), sources...)

	pool, err := ants.NewPool(d.workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	d.pool = pool
	return d, nil
}

// Sources returns the registered sources in registration order.
func (d *Dispatcher) Sources() []source.Source {
	return append([]source.Source(nil), d.sources...)
}

// SourceIDs returns the registered source ids in registration order.
func (d *Dispatcher) SourceIDs() []string {
	ids := make([]string, len(d.sources))
	for i, s := range d.sources {
		ids[i] = s.ID()
	}
	return ids
}

// Has reports whether id is a registered source.
func (d *Dispatcher) Has(id string) bool {
	_, ok := d.index[id]
	return ok
}

// BreakerState returns the circuit state of a source.
func (d *Dispatcher) BreakerState(id string) lerrors.State {
	if cb, ok := d.breakers[id]; ok {
		return cb.State()
	}
	return lerrors.StateClosed
}

// Close releases the worker pool. Running tasks are not interrupted.
func (d *Dispatcher) Close() {
	d.pool.Release()
}

// Run executes one turn. Sources for which enabled returns false are left
// out entirely; a nil enabled means all. Every enabled source whose Accepts
// holds is resolved concurrently with its own deadline. Run returns when all
// have reported, the deadline has passed, or ctx is done. On ctx
// cancellation it returns ctx.Err() and discards everything, including
// results that arrive later.
func (d *Dispatcher) Run(ctx context.Context, q source.Query, enabled func(id string) bool) (Turn, error) {
	turn := Turn{Groups: make(ranking.Grouped)}
	reports := make(map[string]Report, len(d.sources))

	var accepted []source.Source
	for _, src := range d.sources {
		id := src.ID()
		if enabled != nil && !enabled(id) {
			continue
		}
		if !d.accepts(src, q) {
			continue
		}
		if !d.breakers[id].Allow() {
			reports[id] = Report{SourceID: id, Status: source.StatusSkipped}
			d.logger.Debug("source_skipped", slog.String("source", id), slog.String("reason", "circuit_open"))
			continue
		}
		accepted = append(accepted, src)
	}

	if len(accepted) > 0 {
		outcomes, err := d.fanOut(ctx, q, accepted)
		if err != nil {
			for _, src := range accepted {
				d.breakers[src.ID()].Cancel()
			}
			return Turn{}, err
		}
		for _, src := range accepted {
			id := src.ID()
			out, ok := outcomes[id]
			if !ok {
				out = source.Outcome{SourceID: id, Status: source.StatusTimeout, Duration: d.timeout + collectGrace}
				d.logger.Warn("source_timeout", slog.String("source", id), slog.Bool("unresponsive", true))
			}
			d.record(id, out)
			if out.Status == source.StatusOK {
				turn.Groups[id] = d.scoreUnscored(q, out.Candidates)
			}
			r := Report{SourceID: id, Status: out.Status, Count: len(out.Candidates), Duration: out.Duration}
			if out.Err != nil {
				r.Error = out.Err.Error()
			}
			reports[id] = r
		}
	}

	turn.Reports = make([]Report, 0, len(reports))
	for _, r := range reports {
		turn.Reports = append(turn.Reports, r)
	}
	sort.Slice(turn.Reports, func(i, j int) bool {
		return d.index[turn.Reports[i].SourceID] < d.index[turn.Reports[j].SourceID]
	})
	return turn, nil
}

// accepts runs the predicate, treating a panic as "not applicable".
func (d *Dispatcher) accepts(src source.Source, q source.Query) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("source_accepts_panic", slog.String("source", src.ID()), slog.Any("panic", r))
			ok = false
		}
	}()
	return src.Accepts(q)
}

// fanOut resolves every source on the pool and collects outcomes until all
// arrive or the join deadline passes.
func (d *Dispatcher) fanOut(ctx context.Context, q source.Query, srcs []source.Source) (map[string]source.Outcome, error) {
	// Buffered so late workers never block after the join gives up.
	results := make(chan source.Outcome, len(srcs))
	cancels := make([]context.CancelFunc, 0, len(srcs))
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	for _, src := range srcs {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		cancels = append(cancels, cancel)
		task := func() {
			results <- source.Guard(sctx, src, q, d.logger)
		}
		if err := d.pool.Submit(task); err != nil {
			// Pool saturated or released: run on a fresh goroutine.
			go task()
		}
	}

	deadline := time.NewTimer(d.timeout + collectGrace)
	defer deadline.Stop()

	outcomes := make(map[string]source.Outcome, len(srcs))
	for len(outcomes) < len(srcs) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case out := <-results:
			outcomes[out.SourceID] = out
		case <-deadline.C:
			return outcomes, nil
		}
	}

	// A turn superseded while the last result was arriving is still discarded.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (d *Dispatcher) record(id string, out source.Outcome) {
	switch out.Status {
	case source.StatusOK:
		d.breakers[id].RecordSuccess()
	case source.StatusFailed, source.StatusTimeout:
		d.breakers[id].RecordFailure()
	default:
		d.breakers[id].Cancel()
	}
	if d.observer != nil {
		d.observer.ObserveSource(id, out.Status, out.Duration)
	}
}

// scoreUnscored fills RankScore and title positions for candidates the
// source did not score, keeping the source's order.
func (d *Dispatcher) scoreUnscored(q source.Query, cands []source.Candidate) []source.Candidate {
	for i := range cands {
		if cands[i].Scored {
			continue
		}
		m, ok := scorer.Match(q.Normalized, cands[i].Title)
		if ok {
			cands[i].RankScore = m.Score
			cands[i].TitleMatchPositions = m.Positions
		} else {
			cands[i].RankScore = 0
			cands[i].TitleMatchPositions = nil
		}
		cands[i].Scored = true
	}
	return cands
}
