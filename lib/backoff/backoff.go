// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package backoff implements the doubling retry delay shared by the
// chat listener's reconnect loop and the process supervisor's restart
// loop. Both start at one minute, double after every failure, stop
// growing at one hour, and return to the start after a success.
package backoff

import (
	"fmt"
	"time"
)

// Defaults for both supervisors.
const (
	DefaultInitial = 60 * time.Second
	DefaultMax     = 60 * time.Minute
)

// Backoff tracks the current retry delay. Not safe for concurrent use;
// each supervisor owns its own.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// New returns a Backoff starting at initial and capped at max. Panics
// unless 0 < initial < max.
func New(initial, max time.Duration) *Backoff {
	if initial <= 0 || initial >= max {
		panic(fmt.Sprintf("backoff: need 0 < initial < max, got %v and %v", initial, max))
	}
	return &Backoff{initial: initial, max: max, current: initial}
}

// Default returns a Backoff with DefaultInitial and DefaultMax.
func Default() *Backoff { return New(DefaultInitial, DefaultMax) }

// Current returns the delay to use for the next wait.
func (b *Backoff) Current() time.Duration { return b.current }

// Fail doubles the delay, capped at the maximum, and returns the new
// value.
func (b *Backoff) Fail() time.Duration {
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return b.current
}

// Next returns the current delay and then doubles it for the following
// call. This is the restart loop's shape: sleep, then grow.
func (b *Backoff) Next() time.Duration {
	delay := b.current
	b.Fail()
	return delay
}

// Reset returns the delay to its initial value.
func (b *Backoff) Reset() { b.current = b.initial }
