// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/vmchat/lib/clock"
)

// DefaultCapacity is the number of chat events held between the
// listener and the dispatcher.
const DefaultCapacity = 10

// Queue is a bounded FIFO of values. Safe for one or more producers
// and consumers.
type Queue[T any] struct {
	items   chan T
	clock   clock.Clock
	dropped atomic.Uint64
}

// New creates a Queue holding at most capacity values. Pop timeouts
// are measured on clk. Panics if capacity is not positive.
func New[T any](capacity int, clk clock.Clock) *Queue[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("queue: capacity must be positive, got %d", capacity))
	}
	return &Queue[T]{
		items: make(chan T, capacity),
		clock: clk,
	}
}

// Push offers value to the queue without blocking. Returns false when
// the queue was full and the value was discarded.
func (q *Queue[T]) Push(value T) bool {
	select {
	case q.items <- value:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop removes the oldest value, waiting up to timeout for one to
// arrive. Returns false when the timeout elapses or ctx is cancelled
// with the queue still empty.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (T, bool) {
	// Fast path: avoid registering a timer when a value is ready.
	select {
	case value := <-q.items:
		return value, true
	default:
	}

	var zero T
	select {
	case value := <-q.items:
		return value, true
	case <-q.clock.After(timeout):
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int { return len(q.items) }

// Capacity returns the maximum number of queued values.
func (q *Queue[T]) Capacity() int { return cap(q.items) }

// Dropped returns how many pushes were discarded because the queue
// was full.
func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }
