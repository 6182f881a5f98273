// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the vmchat binaries.
//
// [Version], [GitCommit] and [BuildTime] may be injected with -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/vmchat/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When they are not, the commit and time fall back to the VCS stamp the
// Go toolchain embeds in module builds.
package version
