package errors

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(maxFailures int, reset time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("apps",
		WithMaxFailures(maxFailures),
		WithResetTimeout(reset),
		withClock(clock.Now),
	)
	return cb, clock
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a circuit breaker with max 3 failures
	cb, _ := newTestBreaker(3, time.Second)

	// When: recording 3 failures
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}

	// Then: circuit is open and requests are rejected without running
	assert.Equal(t, StateOpen, cb.State())
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	assert.Equal(t, 1, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	// Given: an open circuit
	cb, clock := newTestBreaker(1, 100*time.Millisecond)
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	// When: the reset timeout elapses
	clock.Advance(100 * time.Millisecond)

	// Then: exactly one probe is admitted
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow())

	// And: a successful probe closes the circuit
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, clock := newTestBreaker(3, 100*time.Millisecond)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clock.Advance(150 * time.Millisecond)
	require.True(t, cb.Allow())

	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb, _ := newTestBreaker(1000, time.Second)

	var wg sync.WaitGroup
	var calls atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cb.Execute(func() error {
				calls.Add(1)
				if i%2 == 0 {
					return errors.New("fail")
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(50), calls.Load())
	assert.Equal(t, StateClosed, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestCircuitBreaker_Name(t *testing.T) {
	cb := NewCircuitBreaker("files")
	assert.Equal(t, "files", cb.Name())
}

func TestCircuitBreaker_CancelReleasesProbe(t *testing.T) {
	cb, clock := newTestBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	clock.Advance(20 * time.Millisecond)

	require.True(t, cb.Allow())
	require.False(t, cb.Allow())

	cb.Cancel()

	assert.True(t, cb.Allow())
}
