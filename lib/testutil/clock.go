// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"time"

	"github.com/bureau-foundation/vmchat/lib/clock"
)

// InstantClock is a fake clock whose After and Sleep return at once,
// moving fake time forward by the requested duration. Use it for code
// that paces itself with many short waits (key and mouse injection)
// where the test cares about the sequence of effects, not the timing.
type InstantClock struct {
	*clock.FakeClock
}

// Instant returns an InstantClock starting at start.
func Instant(start time.Time) *InstantClock {
	return &InstantClock{FakeClock: clock.Fake(start)}
}

func (c *InstantClock) After(d time.Duration) <-chan time.Time {
	if d > 0 {
		c.Advance(d)
	}
	channel := make(chan time.Time, 1)
	channel <- c.Now()
	return channel
}

func (c *InstantClock) Sleep(d time.Duration) {
	if d > 0 {
		c.Advance(d)
	}
}
