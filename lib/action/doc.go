// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package action defines the device-input instructions that the
// interpreter derives from chat messages and the dispatcher executes
// against a machine session.
//
// [Action] is a closed set: every concrete type lives in this package
// and implements an unexported marker method, so a type switch over
// the types listed here is exhaustive. Each action renders exactly one
// audit line through [Action.Describe]; the dispatcher writes that line
// to the input log before the action touches the device.
//
// The description strings are a stable format. Historical input logs
// and the gallery catalog parse them (notably the "Word:" prefix), so
// changing a description is a format break.
package action
