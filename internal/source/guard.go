package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
)

// Status describes how a source finished for one turn.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFailed   Status = "failed"
	StatusTimeout  Status = "timeout"
	StatusCanceled Status = "canceled"
	StatusSkipped  Status = "skipped"
)

// Outcome is what a guarded Resolve call produced. Candidates is empty for
// every status other than StatusOK.
type Outcome struct {
	SourceID   string
	Candidates []Candidate
	Status     Status
	Err        error
	Duration   time.Duration
}

// Guard calls src.Resolve and contains every failure at the source boundary:
// errors and panics become StatusFailed, an expired deadline becomes
// StatusTimeout and cancellation StatusCanceled. In each of those cases the
// candidate slice is dropped, including partial results returned alongside
// the error. Guard itself never panics or returns an error.
func Guard(ctx context.Context, src Source, q Query, logger *slog.Logger) (out Outcome) {
	if logger == nil {
		logger = slog.Default()
	}
	id := src.ID()
	start := time.Now()
	out = Outcome{SourceID: id, Status: StatusOK}

	defer func() {
		out.Duration = time.Since(start)
		if r := recover(); r != nil {
			out.Candidates = nil
			out.Status = StatusFailed
			out.Err = lerrors.New(lerrors.ErrCodeSourcePanic,
				fmt.Sprintf("source %s panicked: %v", id, r), nil)
			logger.Error("source_panic",
				slog.String("source", id),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Status = statusForContext(err)
		out.Err = err
		return out
	}

	candidates, err := src.Resolve(ctx, q)

	// A late return after the deadline is discarded even if it succeeded.
	if cerr := ctx.Err(); cerr != nil {
		out.Status = statusForContext(cerr)
		out.Err = timeoutError(id, cerr)
		if out.Status == StatusTimeout {
			logger.Warn("source_timeout", slog.String("source", id))
		}
		return out
	}

	if err != nil {
		out.Status = StatusFailed
		out.Err = lerrors.New(lerrors.ErrCodeSourceFailed,
			fmt.Sprintf("source %s failed", id), err)
		logger.Warn("source_failed", slog.String("source", id), slog.String("error", err.Error()))
		return out
	}

	for i := range candidates {
		candidates[i].SourceID = id
	}
	out.Candidates = candidates
	return out
}

func statusForContext(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	return StatusCanceled
}

func timeoutError(id string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return lerrors.New(lerrors.ErrCodeSourceTimeout,
			fmt.Sprintf("source %s exceeded its time budget", id), err)
	}
	return err
}
