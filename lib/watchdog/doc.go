// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchdog persists the process supervisor's restart state in
// a small JSON file that operators and monitoring can read.
//
// The supervisor rewrites the file each time its child exits: how many
// times it has restarted, how the last run ended and how long it
// lasted, and how long the supervisor will sleep before the next
// start. A supervisor that is itself restarted reads the file with
// [Check] to log how its predecessor left off; [Check] ignores files
// older than a caller-supplied age.
//
// Writes are atomic: the state goes to a temporary file that is
// fsynced and renamed over the target, and the parent directory is
// fsynced after the rename. Readers never see a partial file.
package watchdog
