// Package sourcetest provides a configurable Source for dispatcher and
// engine tests.
package sourcetest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// Fake is a Source whose behaviour is set by its fields.
type Fake struct {
	Name string

	// Items are returned for any accepted query unless ResolveFunc is set.
	Items []source.Candidate

	// AcceptFunc overrides the default of accepting every query.
	AcceptFunc func(q source.Query) bool

	// ResolveFunc overrides Items when set.
	ResolveFunc func(ctx context.Context, q source.Query) ([]source.Candidate, error)

	// Delay is waited before resolving; the wait honours ctx.
	Delay time.Duration

	// IgnoreCancel makes the Delay wait ignore ctx.
	IgnoreCancel bool

	// Err is returned after Delay.
	Err error

	// Panic is raised after Delay when non-nil.
	Panic any

	calls atomic.Int64
}

// ID implements source.Source.
func (f *Fake) ID() string { return f.Name }

// DisplayName implements source.Source.
func (f *Fake) DisplayName() string { return "Fake " + f.Name }

// Accepts implements source.Source.
func (f *Fake) Accepts(q source.Query) bool {
	if f.AcceptFunc != nil {
		return f.AcceptFunc(q)
	}
	return true
}

// Resolve implements source.Source.
func (f *Fake) Resolve(ctx context.Context, q source.Query) ([]source.Candidate, error) {
	f.calls.Add(1)

	if f.Delay > 0 {
		if f.IgnoreCancel {
			time.Sleep(f.Delay)
		} else {
			timer := time.NewTimer(f.Delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	if f.Panic != nil {
		panic(f.Panic)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if f.ResolveFunc != nil {
		return f.ResolveFunc(ctx, q)
	}

	out := make([]source.Candidate, len(f.Items))
	copy(out, f.Items)
	return out, nil
}

// Calls returns how many times Resolve was invoked.
func (f *Fake) Calls() int64 { return f.calls.Load() }

// Items builds scored candidates with ids "<name>:<key>" and descending scores.
func Items(name string, keys ...string) []source.Candidate {
	out := make([]source.Candidate, len(keys))
	for i, k := range keys {
		out[i] = source.Candidate{
			ID:        source.ItemID(name, k),
			Title:     k,
			SourceID:  name,
			RankScore: 100 - i,
			Scored:    true,
		}
	}
	return out
}

// IDs returns the candidate ids in order.
func IDs(cands []source.Candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.ID
	}
	return ids
}
