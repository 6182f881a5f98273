// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package machine defines the control surface of the virtual machine
// that receives chat input: lifecycle queries on [Machine] and the
// input, display and power primitives of a [Session].
//
// The dispatcher is the only caller of both, so implementations need
// not be safe for concurrent use. Package qmp provides the QEMU
// implementation.
package machine

import (
	"context"
	"errors"
	"fmt"
)

// State is the coarse lifecycle state of the machine.
type State int

const (
	Unknown State = iota
	PoweredOff
	Saved
	Aborted
	Stuck
	Starting
	Paused
	Running
)

var stateNames = map[State]string{
	Unknown:    "unknown",
	PoweredOff: "powered_off",
	Saved:      "saved",
	Aborted:    "aborted",
	Stuck:      "stuck",
	Starting:   "starting",
	Paused:     "paused",
	Running:    "running",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// NeedsLaunch reports whether the machine must be (re)launched before
// it can take input.
func (s State) NeedsLaunch() bool {
	return s == PoweredOff || s == Saved || s == Aborted
}

// ErrNotRunning is returned by session operations when the machine
// went away underneath the session.
var ErrNotRunning = errors.New("machine is not running")

// Machine is the lifecycle side of the capability.
type Machine interface {
	// State queries the current machine state.
	State(ctx context.Context) (State, error)

	// Launch starts (or resumes) the machine and returns once the
	// launch has been acknowledged.
	Launch(ctx context.Context) error

	// Session returns the input session for a running machine,
	// creating it on first use and reusing it afterwards.
	Session(ctx context.Context) (Session, error)

	// ReleaseSession drops the current session, if any, unlocking the
	// machine for a fresh launch.
	ReleaseSession() error
}

// Buttons is a set of pressed mouse buttons.
type Buttons uint8

const (
	ButtonLeft   Buttons = 0x01
	ButtonRight  Buttons = 0x02
	ButtonMiddle Buttons = 0x04
)

// Session is the input, display and power side of the capability.
type Session interface {
	// KeyEvent presses (down) or releases one key. code is a QEMU
	// qnum: the XT set-1 scancode, plus 0x80 for E0-prefixed keys.
	KeyEvent(ctx context.Context, code uint16, down bool) error

	// MouseEvent moves the pointer by (dx, dy) with buttons held.
	MouseEvent(ctx context.Context, dx, dy int, buttons Buttons) error

	// SendInterrupt sends Ctrl-Alt-Del.
	SendInterrupt(ctx context.Context) error

	// Reset hard-resets the machine.
	Reset(ctx context.Context) error

	// PowerDown turns the machine off without a guest shutdown.
	PowerDown(ctx context.Context) error

	// ScreenResolution returns the display size in pixels.
	ScreenResolution(ctx context.Context) (width, height int, err error)

	// Screenshot captures the display as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}
