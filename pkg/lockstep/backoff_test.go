package lockstep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var reported []int
	b := Backoff{
		Attempts: 5,
		MaxWait:  5 * time.Millisecond,
		Report: func(attempt int, err error) error {
			reported = append(reported, attempt)
			return nil
		},
	}
	err := b.Retry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("refused")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, reported)
}

func TestBackoff_GivesUp(t *testing.T) {
	refused := errors.New("refused")
	calls := 0
	err := Backoff{Attempts: 3, MaxWait: time.Millisecond}.Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return refused
	})
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 3, calls)
}

func TestBackoff_ReportAborts(t *testing.T) {
	fatal := &FatalSessionError{Reason: "join rejected"}
	calls := 0
	err := Backoff{
		Attempts: 10,
		Report: func(attempt int, err error) error {
			if IsFatalSession(err) {
				return err
			}
			return nil
		},
	}.Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})
	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Backoff{Attempts: 3}.Retry(ctx, func(ctx context.Context) error {
		t.Fatal("should not be called")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
