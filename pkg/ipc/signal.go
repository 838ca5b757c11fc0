package ipc

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Signal wakes one waiter when new data is available. Notifications
// coalesce: any number of Notify calls before a Wait wake it once.
// The zero value is ready to use.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

func NewSignal() *Signal {
	s := &Signal{}
	s.init()
	return s
}

func (s *Signal) init() {
	s.once.Do(func() {
		s.ch = make(chan struct{}, 1)
	})
}

// Notify marks the signal. It never blocks.
func (s *Signal) Notify() {
	s.init()
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C returns the channel that receives notifications, for use in select.
func (s *Signal) C() <-chan struct{} {
	s.init()
	return s.ch
}

// Wait blocks until the signal is notified or ctx is done.
func (s *Signal) Wait(ctx context.Context) error {
	s.init()
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimedOut
		}
		return ctx.Err()
	}
}

// WaitTimeout blocks at most d. A non-positive d waits without a deadline.
func (s *Signal) WaitTimeout(d time.Duration) error {
	s.init()
	if d <= 0 {
		<-s.ch
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ch:
		return nil
	case <-timer.C:
		return ErrTimedOut
	}
}
