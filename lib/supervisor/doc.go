// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor keeps a child process running.
//
// A [Supervisor] starts the child and waits for it. A clean exit (status
// 0) ends supervision. Any other exit is followed by a sleep and a
// restart. The sleep starts at one minute and doubles after each failure
// up to one hour. A run that lasted longer than the healthy-run threshold
// (ten minutes by default) resets it to one minute first, treating the
// failure as transient.
//
// When the supervisor's context is canceled the [ExecRunner] asks the
// child's process group to terminate, repeating SIGTERM every 100ms,
// and sends SIGKILL if the group is still alive after five seconds.
//
// After every run the supervisor records its restart state with
// [watchdog.Write] when a state file is configured.
package supervisor
