// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the vmchat
// binaries: reporting a fatal error before (or after) the structured
// logger exists, and mapping errors onto exit codes.
package process
