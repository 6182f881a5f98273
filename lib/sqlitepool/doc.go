// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens small SQLite connection pools for local
// indexes such as the screenshot catalog.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every connection
// gets WAL journaling, synchronous=NORMAL and a busy timeout, then the
// optional Schema script, then the optional OnConnect hook. Callers
// Take a connection, run SQL with sqlitex, and Put it back.
// Connections are not safe for concurrent use.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(logDir, "catalog.db"),
//	    Schema: schema,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
package sqlitepool
