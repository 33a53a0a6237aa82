package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	mu      sync.Mutex
	loaded  Counters
	loadErr error
	saveErr error
	saves   []Counters
	closed  bool
}

func (m *memPersister) Load(context.Context) (Counters, error) { return m.loaded, m.loadErr }

func (m *memPersister) OnChanged(_ context.Context, c Counters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, c)
	return m.saveErr
}

func (m *memPersister) Close() error {
	m.closed = true
	return nil
}

func TestRecord_IncrementsExactlyN(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx)

	for i := 0; i < 7; i++ {
		require.NoError(t, l.Record(ctx, "fire", "apps:firefox"))
	}
	require.NoError(t, l.Record(ctx, "fire", "apps:files"))

	snap := l.Snapshot()
	assert.Equal(t, int64(7), snap.Count("fire", "apps:firefox"))
	assert.Equal(t, int64(1), snap.Count("fire", "apps:files"))
	assert.Equal(t, int64(0), snap.Count("other", "apps:firefox"))
	assert.Equal(t, int64(8), snap.Total())
}

func TestRecord_Concurrent(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Record(ctx, "q", "a:1")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), l.Snapshot().Count("q", "a:1"))
}

func TestRecord_RejectsEmptyID(t *testing.T) {
	l := NewLedger(context.Background())
	assert.Error(t, l.Record(context.Background(), "q", ""))
	assert.Empty(t, l.Snapshot())
}

func TestSnapshot_IsIsolated(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx)
	require.NoError(t, l.Record(ctx, "q", "a:1"))

	snap := l.Snapshot()
	snap["q"]["a:1"] = 99
	require.NoError(t, l.Record(ctx, "q", "a:1"))

	assert.Equal(t, int64(2), l.Snapshot().Count("q", "a:1"))
	assert.Equal(t, int64(99), snap.Count("q", "a:1"))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}
	l := NewLedger(ctx, WithPersister(p))
	require.NoError(t, l.Record(ctx, "q", "a:1"))

	require.NoError(t, l.Reset(ctx))

	assert.Empty(t, l.Snapshot())
	require.Len(t, p.saves, 2)
	assert.Empty(t, p.saves[1])
}

func TestNewLedger_LoadFailureYieldsEmpty(t *testing.T) {
	l := NewLedger(context.Background(), WithPersister(&memPersister{loadErr: errors.New("corrupt")}))
	assert.Empty(t, l.Snapshot())
}

func TestNewLedger_SanitizesLoaded(t *testing.T) {
	p := &memPersister{loaded: Counters{
		"q":  {"a:1": 3, "a:2": 0, "a:3": -4, "": 2},
		"":   {"a:1": 5},
		"q2": {"a:1": -1},
	}}

	l := NewLedger(context.Background(), WithPersister(p))

	// The blank query is kept; it holds selections from the default list.
	assert.Equal(t, Counters{"q": {"a:1": 3}, "": {"a:1": 5}}, l.Snapshot())
}

func TestRecord_PersistFailureKeepsCount(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, WithPersister(&memPersister{saveErr: errors.New("disk full")}))

	err := l.Record(ctx, "q", "a:1")

	assert.Error(t, err)
	assert.Equal(t, int64(1), l.Snapshot().Count("q", "a:1"))
}

func TestClose(t *testing.T) {
	p := &memPersister{}
	l := NewLedger(context.Background(), WithPersister(p))
	require.NoError(t, l.Close())
	assert.True(t, p.closed)

	assert.NoError(t, NewLedger(context.Background()).Close())
}

// slowFirstPersister delays its first save until the test has started a
// second write.
type slowFirstPersister struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	saves   []Counters
}

func (p *slowFirstPersister) Load(context.Context) (Counters, error) { return nil, nil }

func (p *slowFirstPersister) OnChanged(_ context.Context, c Counters) error {
	p.mu.Lock()
	p.calls++
	slow := p.calls == 1
	p.mu.Unlock()
	if slow {
		close(p.entered)
		time.Sleep(50 * time.Millisecond)
	}
	p.mu.Lock()
	p.saves = append(p.saves, c)
	p.mu.Unlock()
	return nil
}

func (p *slowFirstPersister) Close() error { return nil }

func TestRecord_OverlappingSavesKeepNewest(t *testing.T) {
	// Given: a ledger whose first save is slow
	ctx := context.Background()
	p := &slowFirstPersister{entered: make(chan struct{})}
	l := NewLedger(ctx, WithPersister(p))

	// When: a second record happens during the first save
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, l.Record(ctx, "fire", "apps:firefox"))
	}()
	<-p.entered
	go func() {
		defer wg.Done()
		assert.NoError(t, l.Record(ctx, "fire", "apps:firefox"))
	}()
	wg.Wait()

	// Then: the stored count matches memory
	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.saves, 2)
	assert.Equal(t, int64(2), l.Snapshot().Count("fire", "apps:firefox"))
	assert.Equal(t, int64(2), p.saves[len(p.saves)-1].Count("fire", "apps:firefox"))
}

func TestReset_NotUndoneByEarlierRecord(t *testing.T) {
	// Given: a record whose save is still in flight
	ctx := context.Background()
	p := &slowFirstPersister{entered: make(chan struct{})}
	l := NewLedger(ctx, WithPersister(p))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, l.Record(ctx, "q", "a:1"))
	}()
	<-p.entered

	// When: counters are reset meanwhile
	go func() {
		defer wg.Done()
		assert.NoError(t, l.Reset(ctx))
	}()
	wg.Wait()

	// Then: the reset is the last thing stored
	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.saves, 2)
	assert.Empty(t, p.saves[len(p.saves)-1])
	assert.Empty(t, l.Snapshot())
}

func TestBucketSnapshot(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx)
	require.NoError(t, l.Record(ctx, "fire", "apps:firefox"))
	require.NoError(t, l.Record(ctx, "other", "apps:files"))

	bucket := l.BucketSnapshot("fire")
	assert.Equal(t, map[string]int64{"apps:firefox": 1}, bucket)
	assert.Nil(t, l.BucketSnapshot("unseen"))

	// The copy is detached from the ledger.
	bucket["apps:firefox"] = 50
	assert.Equal(t, int64(1), l.Snapshot().Count("fire", "apps:firefox"))
}
