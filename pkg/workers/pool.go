package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/queue"
)

var (
	// ErrPoolClosed is returned for tasks submitted after Shutdown, and for
	// queued tasks discarded when the shutdown grace period expires.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolFull is returned when a bounded task queue is at capacity.
	ErrPoolFull = errors.New("worker pool queue is full")
)

// PanicError wraps a panic recovered from a task.
type PanicError struct {
	Task  string
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value)
}

// TaskFailure records a failed task on the pool's failure queue.
type TaskFailure struct {
	Name string
	Tag  interface{}
	Err  error
}

// Task is a unit of work. ctx is cancelled when the pool is shut down.
type Task[T any] func(ctx context.Context) (T, error)

type job struct {
	name string
	tag  interface{}
	run  func(ctx context.Context) error
	fail func(err error)
}

// Pool executes short tasks on a fixed set of worker goroutines.
// Submission never blocks; tasks wait in a queue while workers are busy.
type Pool struct {
	lock     sync.Mutex
	cond     *sync.Cond
	jobs     []*job
	capacity int
	closed   bool

	ctx      context.Context
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	inflight sync.WaitGroup

	failures queue.Queue[TaskFailure]
	logger   *log.Logger
}

type NewPoolOptions struct {
	// Workers is the number of worker goroutines. Defaults to 1.
	Workers int
	// QueueCapacity bounds the number of waiting tasks. Zero means unbounded.
	QueueCapacity int
	// Failures receives every failed task, if set.
	Failures queue.Queue[TaskFailure]
	Logger   *log.Logger
}

// NewPool creates a Pool and starts its workers.
func NewPool(opts NewPoolOptions) *Pool {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		capacity: opts.QueueCapacity,
		ctx:      ctx,
		cancel:   cancel,
		failures: opts.Failures,
		logger:   logger,
	}
	p.cond = sync.NewCond(&p.lock)

	p.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// Submit queues task on the pool and returns a Future for its result.
func Submit[T any](p *Pool, name string, task Task[T]) *Future[T] {
	return SubmitTagged(p, name, nil, task)
}

// SubmitTagged is Submit with a tag that is carried into the TaskFailure
// if the task fails.
func SubmitTagged[T any](p *Pool, name string, tag interface{}, task Task[T]) *Future[T] {
	f := newFuture[T](name)
	j := &job{
		name: name,
		tag:  tag,
		run: func(ctx context.Context) error {
			value, err := task(ctx)
			f.complete(value, err)
			return err
		},
		fail: func(err error) {
			var zero T
			f.complete(zero, err)
		},
	}
	if err := p.enqueue(j); err != nil {
		j.fail(err)
	}
	return f
}

func (p *Pool) enqueue(j *job) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.capacity > 0 && len(p.jobs) >= p.capacity {
		return ErrPoolFull
	}
	p.inflight.Add(1)
	p.jobs = append(p.jobs, j)
	p.cond.Signal()
	return nil
}

func (p *Pool) next() (*job, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	for len(p.jobs) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.jobs) == 0 {
		return nil, false
	}
	j := p.jobs[0]
	p.jobs[0] = nil
	p.jobs = p.jobs[1:]
	return j, true
}

func (p *Pool) work() {
	defer p.workers.Done()
	for {
		j, ok := p.next()
		if !ok {
			return
		}
		p.execute(j)
	}
}

func (p *Pool) execute(j *job) {
	defer p.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{Task: j.name, Value: r, Stack: debug.Stack()}
			j.fail(err)
			p.reportFailure(j, err)
		}
	}()

	if err := j.run(p.ctx); err != nil {
		p.reportFailure(j, err)
	}
}

func (p *Pool) reportFailure(j *job, err error) {
	p.logger.Error("Task %s failed: %v", j.name, err)
	if p.failures == nil {
		return
	}
	if err := p.failures.Enqueue(TaskFailure{Name: j.name, Tag: j.tag, Err: err}); err != nil {
		p.logger.Error("Failed to record failure of task %s: %v", j.name, err)
	}
}

// Size returns the number of tasks waiting for a worker.
func (p *Pool) Size() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.jobs)
}

// Context returns the context handed to every task.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Shutdown stops accepting tasks and waits up to grace for queued and
// running tasks. After the grace period the task context is cancelled,
// queued tasks fail with ErrPoolClosed and the workers are joined.
func (p *Pool) Shutdown(grace time.Duration) error {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		p.workers.Wait()
		return nil
	}
	p.closed = true
	p.cond.Broadcast()
	p.lock.Unlock()

	drained := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(drained)
	}()

	var err error
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		err = fmt.Errorf("worker pool did not drain within %s", grace)
		p.lock.Lock()
		abandoned := p.jobs
		p.jobs = nil
		p.lock.Unlock()
		for _, j := range abandoned {
			j.fail(ErrPoolClosed)
			p.inflight.Done()
		}
	}

	p.cancel()
	p.workers.Wait()
	return err
}
