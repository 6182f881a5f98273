// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by vmchat tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-deadline
// pattern used when a test waits on a goroutine it started. They are
// the only wall-clock waits in the suite; everything else advances a
// fake clock. [WritePNG] builds small grayscale screenshots for the
// liveness and dispatcher tests.
package testutil
