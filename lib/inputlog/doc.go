// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package inputlog is the append-only audit trail of delivered input.
//
// Every action is recorded as one CSV row in <dir>/<YYYY-MM-DD>.csv,
// keyed by UTC date:
//
//	2026-03-01T12:00:00.000123,viewer1,E_UP
//
// The [Writer] flushes each row as it is written and moves to a new
// file when the UTC date changes. Screenshots are saved next to the
// logs in a per-day directory, named by their full timestamp.
//
// [ReadDay] reads a day back, transparently handling files the
// maintenance pass has compressed to .csv.zst.
package inputlog
