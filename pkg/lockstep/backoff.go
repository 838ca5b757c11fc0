package lockstep

import (
	"context"
	"math/rand"
	"time"
)

// Backoff retries an operation with randomized exponential backoff.
type Backoff struct {
	// Attempts bounds the number of tries. Zero means a single try.
	Attempts int
	// MaxWait caps the wait between tries.
	MaxWait time.Duration
	// Report is called with every failed try. A non-nil return aborts the
	// loop with that error.
	Report func(attempt int, err error) error
}

// Retry calls try until it succeeds, the attempts run out, Report aborts
// or ctx is cancelled. It returns the last error.
func (b Backoff) Retry(ctx context.Context, try func(ctx context.Context) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	backoff := time.Millisecond
	var err error
	for attempt := 1; ; attempt++ {
		before := time.Now()
		if err = try(ctx); err == nil {
			return nil
		}
		elapsed := time.Since(before)

		if b.Report != nil {
			if abort := b.Report(attempt, err); abort != nil {
				return abort
			}
		}
		if attempt >= attempts {
			return err
		}

		// the duration of a try is the minimum wait
		if backoff <= elapsed {
			backoff = elapsed
		}
		backoff += time.Duration(rand.Int63n(int64(backoff)))
		if b.MaxWait > 0 && backoff > b.MaxWait {
			backoff = b.MaxWait
		}

		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}
