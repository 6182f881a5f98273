// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package action

import "time"

// ChatEvent is one chat message awaiting dispatch. The listener
// creates it on receipt; it lives only until the dispatcher dequeues
// it or the queue drops it.
type ChatEvent struct {
	Sender     string
	Text       string
	ReceivedAt time.Time
}
