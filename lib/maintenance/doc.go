// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package maintenance keeps the log directory small. A pass runs at
// start and then on a fixed interval; each pass only touches files
// from days before the current UTC day:
//
//   - input logs YYYY-MM-DD.csv are compressed to .csv.zst (zstd)
//   - rotated daemon logs log.YYYY-MM-DD are compressed to .lz4
//   - consecutive screenshots of a day with identical content (by
//     BLAKE3 hash) are removed, keeping the first
//   - remaining .png screenshots are re-encoded at best compression
//     as .c.png
//
// A compressed file replaces its source only after it has been
// synced. A failure on one file is logged and the pass moves on.
package maintenance
