// Package taskqueue runs submitted tasks with a bounded concurrency
// ceiling, dispatching strictly in submission order as running slots free
// up. A failed task never blocks the tasks queued behind it.
package taskqueue

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Task is one unit of queued work.
type Task func(ctx context.Context) error

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("task queue closed")

const (
	minConcurrency = 2
	maxConcurrency = 6
)

// DefaultConcurrency derives the concurrency ceiling from the host CPU
// count, clamped to a sane range.
func DefaultConcurrency() int {
	limit := runtime.NumCPU()
	if limit < minConcurrency {
		limit = minConcurrency
	}
	if limit > maxConcurrency {
		limit = maxConcurrency
	}
	return limit
}

type item struct {
	ctx  context.Context
	task Task
	done chan error
}

// Queue is a FIFO work queue with a fixed concurrency ceiling.
type Queue struct {
	mu      sync.Mutex
	limit   int
	running int
	pending []*item
	closed  bool
	idle    *sync.Cond
}

// New builds a queue with the given concurrency ceiling. Non-positive
// limits fall back to DefaultConcurrency.
func New(limit int) *Queue {
	if limit <= 0 {
		limit = DefaultConcurrency()
	}
	q := &Queue{limit: limit}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Limit reports the queue's concurrency ceiling.
func (q *Queue) Limit() int {
	return q.limit
}

// Submit enqueues a task and returns a channel that receives its result
// exactly once. Submission never blocks on running work.
func (q *Queue) Submit(ctx context.Context, task Task) <-chan error {
	done := make(chan error, 1)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		done <- ErrClosed
		return done
	}
	q.pending = append(q.pending, &item{ctx: ctx, task: task, done: done})
	q.dispatchLocked()
	q.mu.Unlock()

	return done
}

// dispatchLocked starts queued items while slots are free. Callers hold
// q.mu.
func (q *Queue) dispatchLocked() {
	for q.running < q.limit && len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.running++
		go q.run(next)
	}
}

func (q *Queue) run(it *item) {
	var err error
	if ctxErr := it.ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else {
		err = it.task(it.ctx)
	}
	it.done <- err

	q.mu.Lock()
	q.running--
	q.dispatchLocked()
	if q.running == 0 && len(q.pending) == 0 {
		q.idle.Broadcast()
	}
	q.mu.Unlock()
}

// Close rejects further submissions and waits for queued and running work
// to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	for q.running > 0 || len(q.pending) > 0 {
		q.idle.Wait()
	}
	q.mu.Unlock()
}
