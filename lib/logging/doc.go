// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the daemon's structured logger.
//
// Every record goes to two places: the console (stderr), as text when
// stderr is a terminal and JSON otherwise, and a JSON log file
// <log_dir>/log. The file rolls over at UTC midnight; the finished day
// is renamed to log.YYYY-MM-DD, which the maintenance pass later
// compresses.
//
// All records carry a run attribute, a UUID generated per process, so
// the lines of one daemon run can be picked out of a day's file after
// the supervisor has restarted it.
package logging
