// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue provides the bounded hand-off between the chat
// listener and the dispatcher.
//
// The policy is drop-newest: [Queue.Push] never blocks, and when the
// queue is full the event being pushed is discarded. Chat volume can
// exceed what the machine can absorb, and losing a low-value message
// is preferred to stalling the listener's network read loop. Delivery
// is therefore at-most-once and best-effort. Events that are accepted
// come out of [Queue.Pop] in arrival order.
package queue
