package wsclient

import (
	"sync"

	"github.com/eapache/queue"
)

// serialExecutor runs submitted tasks one at a time, in submission order, on a single
// goroutine. Submit never blocks: pending tasks are held in an unbounded FIFO.
type serialExecutor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  *queue.Queue
	closed bool
	done   chan struct{}
}

func newSerialExecutor() *serialExecutor {
	e := &serialExecutor{
		tasks: queue.New(),
		done:  make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)

	go e.run()

	return e
}

// Submit enqueues task. It reports false once the executor has been closed.
func (e *serialExecutor) Submit(task func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}

	e.tasks.Add(task)
	e.cond.Signal()
	return true
}

// Close stops accepting tasks. Already queued tasks still run. It does not wait for them,
// so it may be called from inside a task.
func (e *serialExecutor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.cond.Broadcast()
}

// Done is closed when the worker goroutine has drained the queue after Close.
func (e *serialExecutor) Done() <-chan struct{} {
	return e.done
}

func (e *serialExecutor) run() {
	defer close(e.done)

	for {
		e.mu.Lock()
		for e.tasks.Length() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.tasks.Length() == 0 {
			e.mu.Unlock()
			return
		}
		task := e.tasks.Remove().(func())
		e.mu.Unlock()

		task()
	}
}
