// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog indexes the screenshots under a log directory in a
// SQLite database (<log_dir>/catalog.db) and titles each one with the
// words chat typed most often since the screenshot before it.
//
// The catalog only reads the log directory. It can run in the daemon or
// from the gallery command against a copy of the logs.
package catalog
