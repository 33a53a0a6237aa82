package launcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlaunch/internal/alias"
	"github.com/Aman-CERP/amanlaunch/internal/dispatch"
	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
	"github.com/Aman-CERP/amanlaunch/internal/ranking"
	"github.com/Aman-CERP/amanlaunch/internal/source"
	"github.com/Aman-CERP/amanlaunch/internal/source/sourcetest"
	"github.com/Aman-CERP/amanlaunch/internal/telemetry"
	"github.com/Aman-CERP/amanlaunch/internal/usage"
)

func newTestEngine(t *testing.T, srcs []source.Source, opts ...Option) *Engine {
	t.Helper()
	d, err := dispatch.New(srcs, dispatch.WithSourceTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	e, err := New(d, opts...)
	require.NoError(t, err)
	return e
}

type recordingInvoker struct {
	mu      sync.Mutex
	actions []source.Action
	err     error
}

func (r *recordingInvoker) Invoke(_ context.Context, a source.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
	return r.err
}

type staticResolver map[string]string

func (s staticResolver) ResolveTarget(id, residual string) (string, source.Action, bool) {
	url, ok := s[id]
	if !ok {
		return "", source.Action{}, false
	}
	return id + " " + residual, source.Action{Kind: source.ActionOpenURL, Target: url + residual}, true
}

func TestNew_RequiresDispatcher(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, lerrors.ErrNilDependency)
}

func TestNew_NormalizesSourceOrder(t *testing.T) {
	a := &sourcetest.Fake{Name: "a"}
	b := &sourcetest.Fake{Name: "b"}
	c := &sourcetest.Fake{Name: "c"}

	e := newTestEngine(t, []source.Source{a, b, c},
		WithSettings(Settings{SourceOrder: []string{"c", "gone", "a", "c"}}))

	assert.Equal(t, []string{"c", "a", "b"}, e.Settings().SourceOrder)
}

func TestSubmit_ManualOrder(t *testing.T) {
	// Given: two sources, "links" first in manual order
	apps := &sourcetest.Fake{Name: "apps", Items: sourcetest.Items("apps", "firefox")}
	links := &sourcetest.Fake{Name: "links", Items: sourcetest.Items("links", "feeds", "forum")}
	e := newTestEngine(t, []source.Source{apps, links},
		WithSettings(Settings{SourceOrder: []string{"links", "apps"}}))

	// When: submitting a query
	res := e.Submit(context.Background(), "  f ")

	// Then: groups are concatenated in manual order
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "f", res.Query.Normalized)
	assert.Equal(t, []string{"links:feeds", "links:forum", "apps:firefox"}, sourcetest.IDs(res.Candidates))
	assert.NotEmpty(t, res.TurnID)
	assert.Len(t, res.Reports, 2)
	assert.Equal(t, res.TurnID, e.Last().TurnID)
}

func TestSubmit_BlankQueryStillDispatches(t *testing.T) {
	apps := &sourcetest.Fake{Name: "apps", Items: sourcetest.Items("apps", "firefox")}
	e := newTestEngine(t, []source.Source{apps})

	res := e.Submit(context.Background(), "   ")

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.True(t, res.Query.IsBlank())
	assert.Equal(t, int64(1), apps.Calls())
}

func TestSubmit_NewerQuerySupersedesPending(t *testing.T) {
	// Given: a source that never finishes "a" until canceled
	slow := &sourcetest.Fake{Name: "slow", ResolveFunc: func(ctx context.Context, q source.Query) ([]source.Candidate, error) {
		if q.Normalized == "a" {
			<-ctx.Done()
			return sourcetest.Items("slow", "late"), nil
		}
		return sourcetest.Items("slow", q.Normalized), nil
	}}
	e := newTestEngine(t, []source.Source{slow})

	first := make(chan Result, 1)
	go func() { first <- e.Submit(context.Background(), "a") }()
	require.Eventually(t, func() bool { return slow.Calls() == 1 }, time.Second, time.Millisecond)

	// When: a distinct query arrives
	second := e.Submit(context.Background(), "ab")

	// Then: the older turn is never delivered
	old := <-first
	assert.Equal(t, OutcomeSuperseded, old.Outcome)
	assert.Empty(t, old.Candidates)
	assert.Equal(t, OutcomeCompleted, second.Outcome)
	assert.Equal(t, []string{"slow:ab"}, sourcetest.IDs(second.Candidates))
	assert.Equal(t, second.TurnID, e.Last().TurnID)
}

func TestSubmit_IdenticalQueryJoinsPending(t *testing.T) {
	release := make(chan struct{})
	src := &sourcetest.Fake{Name: "mail", ResolveFunc: func(ctx context.Context, q source.Query) ([]source.Candidate, error) {
		<-release
		return sourcetest.Items("mail", "inbox"), nil
	}}
	e := newTestEngine(t, []source.Source{src})

	results := make(chan Result, 2)
	go func() { results <- e.Submit(context.Background(), "mail") }()
	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, time.Millisecond)
	go func() { results <- e.Submit(context.Background(), " mail") }()
	time.Sleep(50 * time.Millisecond)
	close(release)

	a, b := <-results, <-results
	assert.Equal(t, a.TurnID, b.TurnID)
	assert.Equal(t, OutcomeCompleted, a.Outcome)
	assert.Equal(t, OutcomeCompleted, b.Outcome)
	assert.Equal(t, int64(1), src.Calls())
}

func TestSubmit_CallerCancel(t *testing.T) {
	src := &sourcetest.Fake{Name: "s", Delay: time.Second}
	e := newTestEngine(t, []source.Source{src})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.Submit(ctx, "query")

	assert.Equal(t, OutcomeCanceled, res.Outcome)
	assert.Empty(t, res.Candidates)
	assert.Empty(t, e.Last().TurnID)
}

func TestSubmit_FailingSourceIsIsolated(t *testing.T) {
	bad := &sourcetest.Fake{Name: "bad", Err: errors.New("boom")}
	good := &sourcetest.Fake{Name: "good", Items: sourcetest.Items("good", "one")}
	e := newTestEngine(t, []source.Source{bad, good})

	res := e.Submit(context.Background(), "o")

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, []string{"good:one"}, sourcetest.IDs(res.Candidates))
	assert.Equal(t, source.StatusFailed, res.Reports[0].Status)
}

func newAliasIndex(t *testing.T, entries map[string]alias.Target, order ...string) *alias.Index {
	t.Helper()
	ix := alias.NewIndex(context.Background())
	for _, key := range order {
		r, err := ix.Insert(context.Background(), key, entries[key])
		require.NoError(t, err)
		require.Equal(t, alias.Success, r)
	}
	return ix
}

func TestSubmit_ShortcutSkipsDispatch(t *testing.T) {
	// Given: a web search alias "g"
	src := &sourcetest.Fake{Name: "apps"}
	ix := newAliasIndex(t, map[string]alias.Target{"g": alias.WebSearch("google", "Google")}, "g")
	e := newTestEngine(t, []source.Source{src},
		WithAliases(ix),
		WithTargetResolver(alias.KindWebSearch, staticResolver{"google": "https://google.test/?q="}))

	// When: the query starts with the alias and a boundary
	res := e.Submit(context.Background(), "g maps")

	// Then: one synthetic candidate and no fan-out
	assert.Equal(t, OutcomeShortcut, res.Outcome)
	require.Len(t, res.Candidates, 1)
	c := res.Candidates[0]
	assert.Equal(t, "alias:g", c.ID)
	assert.Equal(t, ShortcutSourceID, c.SourceID)
	assert.True(t, c.Flags.ExcludeFromUsageLearning)
	assert.Equal(t, source.Action{Kind: source.ActionOpenURL, Target: "https://google.test/?q=maps"}, c.Action)
	require.NotNil(t, res.Shortcut)
	assert.Equal(t, "maps", res.Shortcut.Residual)
	assert.False(t, res.Direct)
	assert.Zero(t, src.Calls())
}

func TestSubmit_NoBoundaryDispatches(t *testing.T) {
	src := &sourcetest.Fake{Name: "apps", Items: sourcetest.Items("apps", "github")}
	ix := newAliasIndex(t, map[string]alias.Target{"g": alias.WebSearch("google", "Google")}, "g")
	e := newTestEngine(t, []source.Source{src}, WithAliases(ix))

	res := e.Submit(context.Background(), "github")

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Nil(t, res.Shortcut)
	assert.Equal(t, int64(1), src.Calls())
}

func TestSubmit_DirectShortcut(t *testing.T) {
	ix := newAliasIndex(t, map[string]alias.Target{
		"ff":   alias.AppLaunch("firefox", "Firefox"),
		"docs": alias.Quicklink("missing", "Docs"),
	}, "ff", "docs")
	e := newTestEngine(t, []source.Source{&sourcetest.Fake{Name: "apps"}},
		WithAliases(ix),
		WithTargetResolver(alias.KindAppLaunch, staticResolver{"firefox": "firefox"}))

	res := e.Submit(context.Background(), "FF")
	assert.Equal(t, OutcomeShortcut, res.Outcome)
	assert.True(t, res.Direct)

	res = e.Submit(context.Background(), "ff private")
	assert.False(t, res.Direct)

	// An unresolvable target still answers, with no action.
	res = e.Submit(context.Background(), "docs")
	assert.Equal(t, OutcomeShortcut, res.Outcome)
	assert.False(t, res.Direct)
	assert.Equal(t, "Docs", res.Candidates[0].Title)
	assert.Equal(t, source.ActionNone, res.Candidates[0].Action.Kind)
}

func TestSubmit_FrequencyRanking(t *testing.T) {
	// Given: "b:x" was chosen twice for "x"
	a := &sourcetest.Fake{Name: "a", Items: sourcetest.Items("a", "x")}
	b := &sourcetest.Fake{Name: "b", Items: sourcetest.Items("b", "x")}
	ledger := usage.NewLedger(context.Background())
	require.NoError(t, ledger.Record(context.Background(), "x", "b:x"))
	require.NoError(t, ledger.Record(context.Background(), "x", "b:x"))
	e := newTestEngine(t, []source.Source{a, b}, WithLedger(ledger))

	// When/Then: manual mode keeps source order
	assert.Equal(t, []string{"a:x", "b:x"}, sourcetest.IDs(e.Submit(context.Background(), "x").Candidates))

	// When/Then: frequency mode promotes the used candidate
	require.NoError(t, e.SetFrequencyRanking(true))
	assert.Equal(t, []string{"b:x", "a:x"}, sourcetest.IDs(e.Submit(context.Background(), "x").Candidates))
}

func TestSelect_RecordsAndInvokes(t *testing.T) {
	items := sourcetest.Items("apps", "firefox")
	items[0].Action = source.Action{Kind: source.ActionLaunchApp, Target: "firefox"}
	apps := &sourcetest.Fake{Name: "apps", Items: items}
	ledger := usage.NewLedger(context.Background())
	inv := &recordingInvoker{}
	metrics := telemetry.NewQueryMetrics(nil)
	e := newTestEngine(t, []source.Source{apps}, WithLedger(ledger), WithInvoker(inv), WithMetrics(metrics))

	e.Submit(context.Background(), " fire ")
	sel, err := e.Select(context.Background(), "apps:firefox")

	require.NoError(t, err)
	assert.True(t, sel.Recorded)
	assert.False(t, sel.KeepVisible)
	assert.Equal(t, int64(1), ledger.Snapshot().Count("fire", "apps:firefox"))
	assert.Equal(t, []source.Action{{Kind: source.ActionLaunchApp, Target: "firefox"}}, inv.actions)
	assert.Equal(t, int64(1), metrics.Snapshot().Selections)
	assert.Equal(t, int64(1), metrics.Snapshot().OutcomeCounts["completed"])
}

func TestSelect_RepeatedSelectionsCountExactly(t *testing.T) {
	apps := &sourcetest.Fake{Name: "apps", Items: sourcetest.Items("apps", "term")}
	ledger := usage.NewLedger(context.Background())
	e := newTestEngine(t, []source.Source{apps}, WithLedger(ledger))

	e.Submit(context.Background(), "t")
	for i := 0; i < 4; i++ {
		_, err := e.Select(context.Background(), "apps:term")
		require.NoError(t, err)
	}

	assert.Equal(t, int64(4), ledger.Snapshot().Count("t", "apps:term"))
}

func TestSelect_ExcludedCandidateNotRecorded(t *testing.T) {
	items := sourcetest.Items("calc", "4")
	items[0].Flags = source.Flags{ExcludeFromUsageLearning: true, KeepResultsVisibleAfterAction: true}
	calc := &sourcetest.Fake{Name: "calc", Items: items}
	ledger := usage.NewLedger(context.Background())
	e := newTestEngine(t, []source.Source{calc}, WithLedger(ledger))

	e.Submit(context.Background(), "2+2")
	sel, err := e.Select(context.Background(), "calc:4")

	require.NoError(t, err)
	assert.False(t, sel.Recorded)
	assert.True(t, sel.KeepVisible)
	assert.Zero(t, ledger.Snapshot().Total())
}

func TestSelect_UnknownCandidate(t *testing.T) {
	e := newTestEngine(t, []source.Source{&sourcetest.Fake{Name: "apps"}})

	_, err := e.Select(context.Background(), "apps:nothing")

	assert.Equal(t, lerrors.ErrCodeUnknownCandidate, lerrors.GetCode(err))
}

func TestSelect_InvokerFailure(t *testing.T) {
	items := sourcetest.Items("links", "docs")
	items[0].Action = source.Action{Kind: source.ActionOpenURL, Target: "https://docs.test"}
	e := newTestEngine(t, []source.Source{&sourcetest.Fake{Name: "links", Items: items}},
		WithInvoker(&recordingInvoker{err: errors.New("no browser")}))

	e.Submit(context.Background(), "d")
	_, err := e.Select(context.Background(), "links:docs")

	assert.Equal(t, lerrors.ErrCodeActionFailed, lerrors.GetCode(err))
}

func TestSettings_ReorderAndSink(t *testing.T) {
	srcs := []source.Source{&sourcetest.Fake{Name: "a"}, &sourcetest.Fake{Name: "b"}, &sourcetest.Fake{Name: "c"}}
	var saved []Settings
	e := newTestEngine(t, srcs, WithSettingsSink(SettingsSinkFunc(func(s Settings) error {
		saved = append(saved, s)
		return nil
	})))

	moved, err := e.ReorderSource("c", ranking.Up)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"a", "c", "b"}, e.Settings().SourceOrder)

	// Disabled neighbours are skipped.
	require.NoError(t, e.SetSourceEnabled("a", false))
	moved, err = e.ReorderSource("b", ranking.Up)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"a", "b", "c"}, e.Settings().SourceOrder)

	moved, err = e.ReorderSource("a", ranking.Up)
	require.NoError(t, err)
	assert.False(t, moved)

	require.Len(t, saved, 3)
	assert.Equal(t, []string{"a"}, saved[2].DisabledIDs())
}

func TestSettings_UnknownSource(t *testing.T) {
	e := newTestEngine(t, []source.Source{&sourcetest.Fake{Name: "a"}})

	_, err := e.ReorderSource("zzz", ranking.Down)
	assert.Equal(t, lerrors.ErrCodeUnknownSource, lerrors.GetCode(err))
	assert.Equal(t, lerrors.ErrCodeUnknownSource, lerrors.GetCode(e.SetSourceEnabled("zzz", true)))
}

func TestSettings_DisabledSourceLeftOut(t *testing.T) {
	a := &sourcetest.Fake{Name: "a", Items: sourcetest.Items("a", "x")}
	b := &sourcetest.Fake{Name: "b", Items: sourcetest.Items("b", "x")}
	e := newTestEngine(t, []source.Source{a, b})

	require.NoError(t, e.SetSourceEnabled("b", false))
	res := e.Submit(context.Background(), "x")

	assert.Equal(t, []string{"a:x"}, sourcetest.IDs(res.Candidates))
	assert.Zero(t, b.Calls())

	infos := e.Sources()
	require.Len(t, infos, 2)
	assert.Equal(t, SourceInfo{ID: "b", DisplayName: "Fake b", Position: 2, Enabled: false, Circuit: "closed"}, infos[1])
}

func TestSettings_SinkFailure(t *testing.T) {
	e := newTestEngine(t, []source.Source{&sourcetest.Fake{Name: "a"}},
		WithSettingsSink(SettingsSinkFunc(func(Settings) error { return errors.New("disk full") })))

	err := e.SetFrequencyRanking(true)

	assert.Equal(t, lerrors.ErrCodeStorageFailed, lerrors.GetCode(err))
	assert.True(t, e.Settings().UseFrequency)
}

func TestResetUsage(t *testing.T) {
	ledger := usage.NewLedger(context.Background())
	require.NoError(t, ledger.Record(context.Background(), "q", "a:1"))
	e := newTestEngine(t, []source.Source{&sourcetest.Fake{Name: "a"}}, WithLedger(ledger))

	require.NoError(t, e.ResetUsage(context.Background()))
	assert.Zero(t, ledger.Snapshot().Total())
}

func TestSubmit_JoinedCallerOutlivesFirstCaller(t *testing.T) {
	// Given: a pending turn with two waiters
	release := make(chan struct{})
	src := &sourcetest.Fake{Name: "mail", ResolveFunc: func(ctx context.Context, q source.Query) ([]source.Candidate, error) {
		select {
		case <-release:
			return sourcetest.Items("mail", "inbox"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	e := newTestEngine(t, []source.Source{src})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	first := make(chan Result, 1)
	go func() { first <- e.Submit(firstCtx, "mail") }()
	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, time.Millisecond)

	second := make(chan Result, 1)
	go func() { second <- e.Submit(context.Background(), "mail") }()
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.current != nil && e.current.waiters == 2
	}, time.Second, time.Millisecond)

	// When: only the first caller gives up
	cancelFirst()
	assert.Equal(t, OutcomeCanceled, (<-first).Outcome)
	close(release)

	// Then: the joined caller still gets the completed turn
	res := <-second
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, []string{"mail:inbox"}, sourcetest.IDs(res.Candidates))
	assert.Equal(t, int64(1), src.Calls())
}

func TestSubmit_LastWaiterLeavingCancelsTurn(t *testing.T) {
	// Given: a source that only returns once its context ends
	stopped := make(chan struct{})
	src := &sourcetest.Fake{Name: "s", ResolveFunc: func(ctx context.Context, q source.Query) ([]source.Candidate, error) {
		<-ctx.Done()
		close(stopped)
		return nil, ctx.Err()
	}}
	e := newTestEngine(t, []source.Source{src})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- e.Submit(ctx, "q") }()
	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, time.Millisecond)

	// When: the only caller leaves
	cancel()

	// Then: the caller is released and the source is told to stop
	assert.Equal(t, OutcomeCanceled, (<-done).Outcome)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("source context was not canceled")
	}
	assert.Empty(t, e.Last().TurnID)
}

type bucketSpyLedger struct {
	*usage.MemoryLedger

	mu      sync.Mutex
	full    int
	buckets []string
}

func (l *bucketSpyLedger) Snapshot() usage.Counters {
	l.mu.Lock()
	l.full++
	l.mu.Unlock()
	return l.MemoryLedger.Snapshot()
}

func (l *bucketSpyLedger) BucketSnapshot(query string) map[string]int64 {
	l.mu.Lock()
	l.buckets = append(l.buckets, query)
	l.mu.Unlock()
	return l.MemoryLedger.BucketSnapshot(query)
}

func TestSubmit_ReadsOnlyTheQueryBucket(t *testing.T) {
	// Given: usage for two queries and frequency ranking on
	ctx := context.Background()
	a := &sourcetest.Fake{Name: "a", Items: sourcetest.Items("a", "x")}
	b := &sourcetest.Fake{Name: "b", Items: sourcetest.Items("b", "x")}
	ledger := &bucketSpyLedger{MemoryLedger: usage.NewLedger(ctx)}
	require.NoError(t, ledger.Record(ctx, "x", "b:x"))
	require.NoError(t, ledger.Record(ctx, "other", "a:x"))
	e := newTestEngine(t, []source.Source{a, b}, WithLedger(ledger),
		WithSettings(Settings{UseFrequency: true}))

	// When
	res := e.Submit(ctx, " x ")

	// Then: ranking used the "x" bucket without copying the whole ledger
	assert.Equal(t, []string{"b:x", "a:x"}, sourcetest.IDs(res.Candidates))
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	assert.Zero(t, ledger.full)
	assert.Equal(t, []string{"x"}, ledger.buckets)
}

func TestSettings_SavesLandInOrder(t *testing.T) {
	// Given: a sink whose first save is slow
	var (
		mu      sync.Mutex
		saved   []Settings
		calls   int
		entered = make(chan struct{})
	)
	sink := SettingsSinkFunc(func(s Settings) error {
		mu.Lock()
		calls++
		slow := calls == 1
		mu.Unlock()
		if slow {
			close(entered)
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		saved = append(saved, s)
		mu.Unlock()
		return nil
	})
	e := newTestEngine(t, []source.Source{&sourcetest.Fake{Name: "a"}, &sourcetest.Fake{Name: "b"}},
		WithSettingsSink(sink))

	// When: a second change arrives while the first is being saved
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, e.SetFrequencyRanking(true))
	}()
	<-entered
	go func() {
		defer wg.Done()
		assert.NoError(t, e.SetSourceEnabled("b", false))
	}()
	wg.Wait()

	// Then: the last save holds both changes
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, saved, 2)
	last := saved[len(saved)-1]
	assert.True(t, last.UseFrequency)
	assert.Equal(t, []string{"b"}, last.DisabledIDs())
	assert.Equal(t, e.Settings().DisabledIDs(), last.DisabledIDs())
}
