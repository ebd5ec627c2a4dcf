package engine

import (
	"fmt"
	"sync/atomic"
)

// taskResult carries a completed computation back to the coordinator.
type taskResult struct {
	out *Output
	err error
}

// task is one unit of work submitted to the pool. The reply channel is
// buffered so a worker can deliver and move on even when the coordinator
// has already stopped listening (superseded or timed-out requests).
type task struct {
	run   func() (*Output, error)
	reply chan taskResult
}

// pool runs layout computations on dedicated goroutines so a large graph
// never blocks the interactive path. The pool mirrors a message-passing
// worker: no shared mutable state crosses the boundary except the task
// payload and its reply.
//
// A panic inside a task marks the whole pool failed, the moral equivalent
// of a worker error event. Once failed, Submit refuses work and the
// coordinator routes everything to synchronous computation until Restart
// builds a fresh pool.
type pool struct {
	tasks  chan task
	done   chan struct{}
	failed atomic.Bool
}

// newPool starts size worker goroutines. Size below 1 gets one worker.
func newPool(size int) *pool {
	if size < 1 {
		size = 1
	}
	p := &pool{
		tasks: make(chan task, 64),
		done:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		go p.loop()
	}
	return p
}

func (p *pool) loop() {
	for {
		select {
		case <-p.done:
			return
		case t := <-p.tasks:
			p.runOne(t)
		}
	}
}

// runOne executes a task, converting panics into an error result and a
// failed pool.
func (p *pool) runOne(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Store(true)
			t.reply <- taskResult{err: fmt.Errorf("worker panic: %v", r)}
		}
	}()
	out, err := t.run()
	if err != nil {
		p.failed.Store(true)
	}
	t.reply <- taskResult{out: out, err: err}
}

// Submit queues work and returns the reply channel. Returns false when the
// pool is failed, shut down, or saturated; the caller falls back to
// synchronous computation.
func (p *pool) Submit(run func() (*Output, error)) (<-chan taskResult, bool) {
	if p.Failed() {
		return nil, false
	}
	t := task{run: run, reply: make(chan taskResult, 1)}
	select {
	case p.tasks <- t:
		return t.reply, true
	case <-p.done:
		return nil, false
	default:
		return nil, false
	}
}

// Failed reports whether a task has panicked or errored since the last
// restart.
func (p *pool) Failed() bool { return p.failed.Load() }

// Close stops the worker goroutines. Queued tasks are abandoned; their
// reply channels stay empty, which callers treat like a timeout.
func (p *pool) Close() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}
