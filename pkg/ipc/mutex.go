// Package ipc holds the primitives shared between the network thread and
// the simulation thread. Every blocking call can be bounded by a timeout or
// a context and reports ErrTimedOut instead of waiting forever.
package ipc

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimedOut is returned when a bounded wait expires.
var ErrTimedOut = errors.New("timed out")

// Mutex is a mutual exclusion lock whose acquisition can time out.
// The zero value is an unlocked mutex.
type Mutex struct {
	once sync.Once
	ch   chan struct{}
}

func (m *Mutex) init() {
	m.once.Do(func() {
		m.ch = make(chan struct{}, 1)
	})
}

// Lock blocks until the mutex is acquired.
func (m *Mutex) Lock() {
	m.init()
	m.ch <- struct{}{}
}

// TryLock acquires the mutex only if it is free.
func (m *Mutex) TryLock() bool {
	m.init()
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock releases the mutex. It panics if the mutex is not held.
func (m *Mutex) Unlock() {
	m.init()
	select {
	case <-m.ch:
	default:
		panic("ipc: unlock of unlocked mutex")
	}
}

// LockTimeout waits at most d for the mutex. A non-positive d waits forever.
func (m *Mutex) LockTimeout(d time.Duration) error {
	if d <= 0 {
		m.Lock()
		return nil
	}
	m.init()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrTimedOut
	}
}

// LockContext waits for the mutex until ctx is done.
func (m *Mutex) LockContext(ctx context.Context) error {
	m.init()
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimedOut
		}
		return ctx.Err()
	}
}

// Do runs fn while holding the mutex. The mutex is released when fn
// returns or panics.
func (m *Mutex) Do(fn func()) {
	m.Lock()
	defer m.Unlock()
	fn()
}

// DoTimeout is Do with a bounded acquisition. fn is not run on timeout.
func (m *Mutex) DoTimeout(d time.Duration, fn func()) error {
	if err := m.LockTimeout(d); err != nil {
		return err
	}
	defer m.Unlock()
	fn()
	return nil
}
