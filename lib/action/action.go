// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package action

import "fmt"

// Action is one device-input instruction.
type Action interface {
	// Describe returns the audit line written to the input log for
	// this action.
	Describe() string

	isAction()
}

// Button identifies a mouse button. Values are the button bit flags
// used by the pointer device.
type Button uint8

const (
	ButtonLeft   Button = 0x01
	ButtonRight  Button = 0x02
	ButtonMiddle Button = 0x04
)

// String returns the single-letter prefix used in descriptions.
func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "L"
	case ButtonRight:
		return "R"
	case ButtonMiddle:
		return "M"
	default:
		return fmt.Sprintf("B%d", uint8(b))
	}
}

// Description prefix for typed words. The catalog matches on it.
const WordPrefix = "Word:"

// KeyPress presses and releases Key. When Modifier is set, the
// modifier is held down across the key press.
type KeyPress struct {
	Key      string
	Modifier string
}

func (a KeyPress) Describe() string {
	if a.Modifier != "" {
		return a.Key + "+" + a.Modifier
	}
	return a.Key
}

// MouseMove moves the pointer by a relative offset. The interpreter
// only ever sets one axis.
type MouseMove struct {
	DX int
	DY int
}

func (a MouseMove) Describe() string {
	switch {
	case a.DY == 0:
		return fmt.Sprintf("XD:%d", a.DX)
	case a.DX == 0:
		return fmt.Sprintf("YD:%d", a.DY)
	default:
		return fmt.Sprintf("XD:%d YD:%d", a.DX, a.DY)
	}
}

// MouseClick presses and releases Button.
type MouseClick struct {
	Button Button
}

func (a MouseClick) Describe() string { return a.Button.String() + "Click" }

// MouseButtonDown presses Button and keeps it held for later moves
// (drag start).
type MouseButtonDown struct {
	Button Button
}

func (a MouseButtonDown) Describe() string { return a.Button.String() + "MBDown" }

// MouseButtonUp releases every held button (drag end).
type MouseButtonUp struct{}

func (MouseButtonUp) Describe() string { return "MBUp" }

// CenterCursor moves the pointer to the middle of the screen
// regardless of where it currently is.
type CenterCursor struct{}

func (CenterCursor) Describe() string { return "CenterXY" }

// SendInterrupt sends the Ctrl-Alt-Del sequence.
type SendInterrupt struct{}

func (SendInterrupt) Describe() string { return "CAD" }

// AltTabCycle holds Alt and presses Tab Count times.
type AltTabCycle struct {
	Count int
}

func (a AltTabCycle) Describe() string { return fmt.Sprintf("AltTab:%d", a.Count) }

// ResetMachine hard-resets the machine console.
type ResetMachine struct{}

func (ResetMachine) Describe() string { return "Reset" }

// TypeWord types Word character by character followed by one space.
type TypeWord struct {
	Word string
}

func (a TypeWord) Describe() string { return WordPrefix + a.Word }

func (KeyPress) isAction()        {}
func (MouseMove) isAction()       {}
func (MouseClick) isAction()      {}
func (MouseButtonDown) isAction() {}
func (MouseButtonUp) isAction()   {}
func (CenterCursor) isAction()    {}
func (SendInterrupt) isAction()   {}
func (AltTabCycle) isAction()     {}
func (ResetMachine) isAction()    {}
func (TypeWord) isAction()        {}
