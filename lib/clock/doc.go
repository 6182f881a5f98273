// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets vmchat components wait and read time through an
// injected [Clock] instead of the time package.
//
// The daemon is full of waits: the queue pops with a half-second
// timeout, mouse moves sleep between steps, key events sleep a
// millisecond, and both supervisors back off for minutes. Production
// wiring passes [Real]; tests pass a [FakeClock] and drive it:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go supervisor.Run(ctx)
//	fake.WaitForTimers(1)      // the supervisor is now sleeping
//	fake.Advance(time.Minute)  // wake it deterministically
//
// [FakeClock.WaitForTimers] removes the race between a goroutine
// registering a wait and the test advancing past it.
package clock
