// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// vmchat-supervisor keeps vmchat running.
//
// It runs the child until it exits with status 0. After a failure it
// sleeps, starting at --min-sleep and doubling up to --max-sleep; a
// child that ran longer than --healthy-run resets the sleep. On SIGINT
// or SIGTERM the child's process group is sent SIGTERM repeatedly and
// then SIGKILL.
//
// Usage:
//
//	vmchat-supervisor [flags] <config-file>
//	vmchat-supervisor [flags] -- <command> [args...]
//
// The first form runs the vmchat binary installed next to the
// supervisor with the given arguments.
package main
