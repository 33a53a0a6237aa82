// Package launcher is the caller-facing query engine: it resolves shortcuts,
// runs one dispatch turn per submission, ranks the joined results and
// carries out selections.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Aman-CERP/amanlaunch/internal/alias"
	"github.com/Aman-CERP/amanlaunch/internal/dispatch"
	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/ranking"
	"github.com/Aman-CERP/amanlaunch/internal/source"
	"github.com/Aman-CERP/amanlaunch/internal/telemetry"
	"github.com/Aman-CERP/amanlaunch/internal/usage"
)

// ShortcutSourceID is the SourceID of candidates synthesized from aliases.
const ShortcutSourceID = "alias"

// shortcutScore is the fixed RankScore of a shortcut candidate.
const shortcutScore = 1000

// Outcome says how a turn ended.
type Outcome string

const (
	// OutcomeCompleted means every source reported or timed out.
	OutcomeCompleted Outcome = "completed"

	// OutcomeShortcut means an alias matched and dispatch was skipped.
	OutcomeShortcut Outcome = "shortcut"

	// OutcomeSuperseded means a newer distinct submission replaced the turn.
	OutcomeSuperseded Outcome = "superseded"

	// OutcomeCanceled means the caller's context ended first, or every
	// caller left before the turn finished.
	OutcomeCanceled Outcome = "canceled"
)

// Delivered reports whether the outcome carries candidates for display.
func (o Outcome) Delivered() bool {
	return o == OutcomeCompleted || o == OutcomeShortcut
}

// Result is the output of one Submit.
type Result struct {
	TurnID     string             `json:"turn_id"`
	Query      source.Query       `json:"query"`
	Outcome    Outcome            `json:"outcome"`
	Candidates []source.Candidate `json:"candidates"`
	Reports    []dispatch.Report  `json:"reports,omitempty"`

	// Shortcut is set when an alias matched.
	Shortcut *alias.Hit `json:"shortcut,omitempty"`

	// Direct means the single shortcut candidate may be invoked without
	// showing a list: the residual is blank and the target is an app or a
	// quicklink.
	Direct bool `json:"direct,omitempty"`

	Duration time.Duration `json:"duration_ns"`
}

// Find returns the candidate with the given id.
func (r Result) Find(id string) (source.Candidate, bool) {
	for _, c := range r.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return source.Candidate{}, false
}

// Selection reports what Select did.
type Selection struct {
	Candidate source.Candidate `json:"candidate"`

	// Recorded is true when usage was counted for the selection.
	Recorded bool `json:"recorded"`

	// KeepVisible mirrors the candidate's KeepResultsVisibleAfterAction flag.
	KeepVisible bool `json:"keep_visible"`
}

// TargetResolver turns an alias target id into a title and an action.
// Sources that own shortcut targets implement it.
type TargetResolver interface {
	ResolveTarget(id, residual string) (title string, action source.Action, ok bool)
}

// SourceInfo describes a registered source for listing.
type SourceInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Position    int    `json:"position"`
	Enabled     bool   `json:"enabled"`
	Circuit     string `json:"circuit"`
}

// turn is one in-flight submission.
type turn struct {
	id         string
	query      source.Query
	cancel     context.CancelFunc
	done       chan struct{}
	result     Result
	superseded bool

	// waiters counts Submit calls still blocked on the turn; abandoned is
	// set when the count reaches zero. Both are guarded by Engine.mu.
	waiters   int
	abandoned bool
}

// Engine serves Submit and Select. Safe for concurrent use.
type Engine struct {
	dispatcher *dispatch.Dispatcher
	aliases    *alias.Index
	ledger     usage.Ledger
	resolvers  map[alias.TargetKind]TargetResolver
	invoker    source.Invoker
	metrics    *telemetry.QueryMetrics
	sink       SettingsSink
	logger     *slog.Logger

	mu       sync.Mutex
	sinkMu   sync.Mutex
	settings Settings
	current  *turn
	last     Result
}

// Option configures an Engine.
type Option func(*Engine)

// WithAliases sets the shortcut index. Without one no shortcut ever matches.
func WithAliases(ix *alias.Index) Option {
	return func(e *Engine) {
		e.aliases = ix
	}
}

// WithLedger sets the usage ledger for frequency ranking and selections.
func WithLedger(l usage.Ledger) Option {
	return func(e *Engine) {
		e.ledger = l
	}
}

// WithTargetResolver registers the resolver for one alias target kind.
func WithTargetResolver(kind alias.TargetKind, r TargetResolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.resolvers[kind] = r
		}
	}
}

// WithInvoker sets how selected actions are carried out.
func WithInvoker(inv source.Invoker) Option {
	return func(e *Engine) {
		e.invoker = inv
	}
}

// WithSettings sets the initial settings. The source order is normalized
// against the registered sources.
func WithSettings(s Settings) Option {
	return func(e *Engine) {
		e.settings = s.Clone()
	}
}

// WithSettingsSink sets the collaborator notified of settings changes.
func WithSettingsSink(sink SettingsSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithMetrics sets an optional turn metrics collector.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine over a dispatcher.
func New(d *dispatch.Dispatcher, opts ...Option) (*Engine, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: dispatcher is required", lerrors.ErrNilDependency)
	}
	e := &Engine{
		dispatcher: d,
		resolvers:  make(map[alias.TargetKind]TargetResolver),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.settings.SourceOrder = ranking.NormalizeOrder(e.settings.SourceOrder, d.SourceIDs())
	return e, nil
}

// Submit runs one turn for raw text and blocks until it ends.
//
// An alias hit answers immediately with one synthetic candidate. Otherwise
// the text is dispatched to the enabled sources and the groups are ranked
// with the settings and usage snapshot taken when the turn started.
//
// A distinct submission made while a turn is pending supersedes it: the
// older call returns OutcomeSuperseded with no candidates. An identical
// submission (same normalized text) joins the pending turn instead.
// Callers wait independently; a turn is canceled only when superseded or
// when every caller waiting on it has gone.
func (e *Engine) Submit(ctx context.Context, raw string) Result {
	start := time.Now()
	q := source.NewQuery(raw, source.OriginUserInput)

	e.mu.Lock()
	if cur := e.current; cur != nil && cur.query.Normalized == q.Normalized {
		cur.waiters++
		e.mu.Unlock()
		e.logger.Debug("turn_joined", slog.String("turn_id", cur.id))
		return e.await(ctx, cur, start)
	}
	e.supersedeLocked()

	id := ulid.Make().String()
	if e.aliases != nil {
		if hit, ok := e.aliases.Resolve(raw); ok {
			res := e.shortcut(id, q, hit)
			res.Duration = time.Since(start)
			e.last = res
			e.mu.Unlock()
			e.observe(res)
			return res
		}
	}

	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &turn{id: id, query: q, cancel: cancel, done: make(chan struct{}), waiters: 1}
	e.current = t
	settings := e.settings.Clone()
	e.mu.Unlock()

	go e.run(tctx, t, settings, start)
	return e.await(ctx, t, start)
}

// run dispatches t and publishes its result. ctx belongs to the turn, not
// to any caller.
func (e *Engine) run(ctx context.Context, t *turn, settings Settings, start time.Time) {
	defer t.cancel()
	q := t.query

	var counters usage.Counters
	if e.ledger != nil {
		if bucket := e.ledger.BucketSnapshot(q.Normalized); bucket != nil {
			counters = usage.Counters{q.Normalized: bucket}
		}
	}

	e.logger.Debug("turn_started",
		slog.String("turn_id", t.id),
		slog.String("query", q.Normalized))

	res := Result{TurnID: t.id, Query: q}
	dt, err := e.dispatcher.Run(ctx, q, settings.Enabled)
	if err == nil {
		res.Outcome = OutcomeCompleted
		res.Reports = dt.Reports
		res.Candidates = ranking.Order(ranking.Input{
			Groups:       dt.Groups,
			Order:        settings.SourceOrder,
			Usage:        counters,
			UseFrequency: settings.UseFrequency,
			Query:        q.Normalized,
		})
	}
	res.Duration = time.Since(start)

	e.mu.Lock()
	switch {
	case t.superseded:
		res = Result{TurnID: t.id, Query: q, Outcome: OutcomeSuperseded, Duration: res.Duration}
	case err != nil || t.abandoned:
		res = Result{TurnID: t.id, Query: q, Outcome: OutcomeCanceled, Duration: res.Duration}
	default:
		e.last = res
	}
	if e.current == t {
		e.current = nil
	}
	t.result = res
	e.mu.Unlock()

	e.observe(res)
	close(t.done)
}

// supersedeLocked cancels the pending turn, if any. Callers hold e.mu.
func (e *Engine) supersedeLocked() {
	if cur := e.current; cur != nil {
		cur.superseded = true
		cur.cancel()
		e.current = nil
		e.logger.Debug("turn_superseded", slog.String("turn_id", cur.id))
	}
}

// await blocks until t ends or ctx does. The last waiter to leave cancels
// the turn.
func (e *Engine) await(ctx context.Context, t *turn, start time.Time) Result {
	select {
	case <-t.done:
		e.mu.Lock()
		defer e.mu.Unlock()
		return t.result
	case <-ctx.Done():
	}

	e.mu.Lock()
	t.waiters--
	if t.waiters == 0 {
		t.abandoned = true
		t.cancel()
		if e.current == t {
			e.current = nil
		}
		e.logger.Debug("turn_abandoned", slog.String("turn_id", t.id))
	}
	e.mu.Unlock()
	return Result{TurnID: t.id, Query: t.query, Outcome: OutcomeCanceled, Duration: time.Since(start)}
}

// shortcut builds the single-candidate result for an alias hit.
func (e *Engine) shortcut(id string, q source.Query, hit alias.Hit) Result {
	target := hit.Entry.Target
	title, action, ok := "", source.Action{}, false
	if r, found := e.resolvers[target.Kind]; found {
		title, action, ok = r.ResolveTarget(target.ID, hit.Residual)
	}
	if !ok {
		e.logger.Warn("alias_target_unknown",
			slog.String("key", hit.Entry.Key),
			slog.String("kind", string(target.Kind)),
			slog.String("target", target.ID))
		title = target.Label
		if title == "" {
			title = target.ID
		}
		action = source.Action{Kind: source.ActionNone}
	}

	c := source.Candidate{
		ID:        source.ItemID(ShortcutSourceID, hit.Entry.Key),
		Title:     title,
		Subtitle:  hit.Entry.Key,
		SourceID:  ShortcutSourceID,
		RankScore: shortcutScore,
		Flags:     source.Flags{ExcludeFromUsageLearning: true},
		Action:    action,
		Scored:    true,
	}

	h := hit
	return Result{
		TurnID:     id,
		Query:      q,
		Outcome:    OutcomeShortcut,
		Candidates: []source.Candidate{c},
		Shortcut:   &h,
		Direct:     ok && hit.Residual == "" && (target.Kind == alias.KindAppLaunch || target.Kind == alias.KindQuicklink),
	}
}

func (e *Engine) observe(res Result) {
	e.logger.Debug("turn_finished",
		slog.String("turn_id", res.TurnID),
		slog.String("outcome", string(res.Outcome)),
		slog.Int("candidates", len(res.Candidates)),
		slog.Duration("duration", res.Duration))
	if e.metrics != nil {
		e.metrics.RecordTurn(telemetry.TurnEvent{
			Query:       res.Query.Normalized,
			Outcome:     string(res.Outcome),
			ResultCount: len(res.Candidates),
			Latency:     res.Duration,
			Timestamp:   time.Now(),
		})
	}
}

// Last returns the most recently delivered result.
func (e *Engine) Last() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Select carries out the candidate with id from the last delivered result:
// it records usage (unless the candidate is excluded from learning) and
// invokes the candidate's action. A usage persistence failure is logged and
// does not stop the action.
func (e *Engine) Select(ctx context.Context, id string) (Selection, error) {
	e.mu.Lock()
	last := e.last
	e.mu.Unlock()

	c, ok := last.Find(id)
	if !ok {
		return Selection{}, lerrors.New(lerrors.ErrCodeUnknownCandidate,
			fmt.Sprintf("no candidate %q in the current results", id), nil).
			WithSuggestion("Run a search first, then select one of its result ids")
	}

	sel := Selection{Candidate: c, KeepVisible: c.Flags.KeepResultsVisibleAfterAction}
	recorded, err := ranking.RecordSelection(ctx, e.ledger, c, last.Query.Normalized)
	sel.Recorded = recorded
	if err != nil {
		e.logger.Warn("usage_record_failed", lerrors.LogAttrs(err)...)
	}
	if e.metrics != nil {
		e.metrics.RecordSelection()
	}

	e.logger.Info("candidate_selected",
		slog.String("turn_id", last.TurnID),
		slog.String("candidate", c.ID),
		slog.String("action", string(c.Action.Kind)),
		slog.Bool("recorded", recorded))

	if e.invoker == nil || c.Action.Kind == "" || c.Action.Kind == source.ActionNone {
		return sel, nil
	}
	if err := e.invoker.Invoke(ctx, c.Action); err != nil {
		if errors.Is(err, context.Canceled) {
			return sel, err
		}
		return sel, lerrors.New(lerrors.ErrCodeActionFailed,
			fmt.Sprintf("failed to %s %s", c.Action.Kind, c.Action.Target), err)
	}
	return sel, nil
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.Clone()
}

// Sources lists registered sources in the current manual order.
func (e *Engine) Sources() []SourceInfo {
	e.mu.Lock()
	settings := e.settings.Clone()
	e.mu.Unlock()

	names := make(map[string]string)
	for _, s := range e.dispatcher.Sources() {
		names[s.ID()] = s.DisplayName()
	}
	out := make([]SourceInfo, 0, len(settings.SourceOrder))
	for i, id := range settings.SourceOrder {
		out = append(out, SourceInfo{
			ID:          id,
			DisplayName: names[id],
			Position:    i + 1,
			Enabled:     settings.Enabled(id),
			Circuit:     e.dispatcher.BreakerState(id).String(),
		})
	}
	return out
}

// ReorderSource moves a source one step, skipping disabled neighbours. It
// reports whether the order changed; a move at the boundary is a no-op.
func (e *Engine) ReorderSource(id string, dir ranking.Direction) (bool, error) {
	if !e.dispatcher.Has(id) {
		return false, unknownSource(id)
	}
	return e.mutate(func(s *Settings) bool {
		order, moved := ranking.Reorder(s.SourceOrder, id, dir, s.Enabled)
		s.SourceOrder = order
		return moved
	})
}

// SetSourceEnabled includes or excludes a source from subsequent turns.
func (e *Engine) SetSourceEnabled(id string, enabled bool) error {
	if !e.dispatcher.Has(id) {
		return unknownSource(id)
	}
	_, err := e.mutate(func(s *Settings) bool {
		if s.Enabled(id) == enabled {
			return false
		}
		if s.Disabled == nil {
			s.Disabled = make(map[string]bool)
		}
		if enabled {
			delete(s.Disabled, id)
		} else {
			s.Disabled[id] = true
		}
		return true
	})
	return err
}

// SetFrequencyRanking switches between frequency and manual ranking.
func (e *Engine) SetFrequencyRanking(on bool) error {
	_, err := e.mutate(func(s *Settings) bool {
		if s.UseFrequency == on {
			return false
		}
		s.UseFrequency = on
		return true
	})
	return err
}

// mutate applies fn under the lock and notifies the sink when fn reports a
// change. Turns already running keep the snapshot they started with.
// sinkMu is held from the change to the save, so saves land in order.
func (e *Engine) mutate(fn func(s *Settings) bool) (bool, error) {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()

	e.mu.Lock()
	changed := fn(&e.settings)
	snapshot := e.settings.Clone()
	e.mu.Unlock()

	if !changed {
		return false, nil
	}
	e.logger.Info("settings_changed",
		slog.Any("source_order", snapshot.SourceOrder),
		slog.Any("disabled", snapshot.DisabledIDs()),
		slog.Bool("use_frequency", snapshot.UseFrequency))
	if e.sink == nil {
		return true, nil
	}
	if err := e.sink.SettingsChanged(snapshot); err != nil {
		return true, lerrors.New(lerrors.ErrCodeStorageFailed, "failed to save settings", err)
	}
	return true, nil
}

// ResetUsage clears every usage counter.
func (e *Engine) ResetUsage(ctx context.Context) error {
	if e.ledger == nil {
		return nil
	}
	return e.ledger.Reset(ctx)
}

// Aliases returns the shortcut index, which may be nil.
func (e *Engine) Aliases() *alias.Index {
	return e.aliases
}

// Ledger returns the usage ledger, which may be nil.
func (e *Engine) Ledger() usage.Ledger {
	return e.ledger
}

func unknownSource(id string) error {
	return lerrors.New(lerrors.ErrCodeUnknownSource, fmt.Sprintf("unknown source %q", id), nil).
		WithSuggestion("Run 'amanlaunch sources list' to see registered sources")
}
