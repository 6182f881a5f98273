// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatcher runs the loop that turns queued chat events into
// machine input.
//
// Each tick the [Dispatcher] first makes sure the machine can take
// input: a powered-off, saved or aborted machine is launched, a stuck
// one is powered down, and any other non-running state is waited out.
// Only a running machine gets events popped off the queue. Each event
// is interpreted into actions; every action is written to the input
// log and then executed, strictly in order.
//
// Screenshots are taken on a counter cadence (the 5th input, then
// every 100th) and fed to the liveness monitor. A frozen verdict
// resets the machine at once, outside the interpreter's reset rate
// limit.
//
// A failure while handling one event is logged and the loop moves on;
// a malformed chat message never stops the dispatcher. Run returns
// when its context is canceled.
package dispatcher
