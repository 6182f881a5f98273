// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the vmchat configuration file.
//
// Configuration comes from a single file, named either on the command
// line (via [LoadFile]) or by the VMCHAT_CONFIG environment variable
// (via [Load]). There is no discovery and no per-field environment
// override.
//
// The file may be YAML (.yaml, .yml) or JSON (.json, .jsonc). JSON
// files may carry comments and trailing commas. The top-level keys
// are the historical ones (channel, server, virtual_machine, log_dir,
// minimized_gui, debug); the qemu, maintenance and gallery sections
// are optional and fall back to [Default].
//
// After loading, ${HOME}, ${LOG_DIR} and ${VAR:-default} references in
// path fields are expanded.
package config
