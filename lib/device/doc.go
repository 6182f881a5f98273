// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package device executes [action.Action] values against a
// [machine.Session].
//
// Input injection is paced. Key and button events are separated by a
// millisecond, and mouse moves travel in steps of at most ten units
// with 100ms between steps, shrinking the remaining distance by 5%
// after each step, so the pointer glides instead of jumping. A move of
// 64 units takes about half a second.
//
// Keys are looked up by name in a US-layout table ([Lookup]); unknown
// names are skipped and logged at debug level, never reported as
// errors, because the key names come from chat.
package device
