// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package machinetest provides in-memory implementations of
// [machine.Machine] and [machine.Session] that record every call.
package machinetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/bureau-foundation/vmchat/lib/machine"
)

// KeyEvent is one recorded key press or release.
type KeyEvent struct {
	Code uint16
	Down bool
}

// MouseEvent is one recorded pointer event.
type MouseEvent struct {
	DX, DY  int
	Buttons machine.Buttons
}

// Session records calls. Screenshots are served from Screens in order;
// once exhausted, the last one repeats. ScreenshotErr, when set, fails
// every capture.
type Session struct {
	mu sync.Mutex

	Width, Height int
	Screens       [][]byte
	ScreenshotErr error

	Keys        []KeyEvent
	Mouse       []MouseEvent
	Interrupts  int
	Resets      int
	PowerDowns  int
	Screenshots int

	// Calls lists operation names in call order: "key", "mouse",
	// "interrupt", "reset", "power_down", "resolution", "screenshot".
	Calls []string
}

var _ machine.Session = (*Session)(nil)

func (s *Session) record(call string) {
	s.Calls = append(s.Calls, call)
}

func (s *Session) KeyEvent(_ context.Context, code uint16, down bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("key")
	s.Keys = append(s.Keys, KeyEvent{Code: code, Down: down})
	return nil
}

func (s *Session) MouseEvent(_ context.Context, dx, dy int, buttons machine.Buttons) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("mouse")
	s.Mouse = append(s.Mouse, MouseEvent{DX: dx, DY: dy, Buttons: buttons})
	return nil
}

func (s *Session) SendInterrupt(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("interrupt")
	s.Interrupts++
	return nil
}

func (s *Session) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("reset")
	s.Resets++
	return nil
}

func (s *Session) PowerDown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("power_down")
	s.PowerDowns++
	return nil
}

func (s *Session) ScreenResolution(context.Context) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("resolution")
	return s.Width, s.Height, nil
}

func (s *Session) Screenshot(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("screenshot")
	s.Screenshots++
	if s.ScreenshotErr != nil {
		return nil, s.ScreenshotErr
	}
	if len(s.Screens) == 0 {
		return nil, fmt.Errorf("machinetest: no screens configured")
	}
	index := min(s.Screenshots-1, len(s.Screens)-1)
	return s.Screens[index], nil
}

// Snapshot returns a copy of the call log.
func (s *Session) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Calls...)
}

// Machine serves States in order (the last one repeats) and hands out
// Sess from Session.
type Machine struct {
	mu sync.Mutex

	States []machine.State
	Sess   *Session

	StateQueries int
	Launches     int
	Sessions     int
	Releases     int

	// LaunchedState, when non-zero, replaces the state sequence after
	// a Launch, modelling a machine that came up.
	LaunchedState machine.State
}

var _ machine.Machine = (*Machine)(nil)

func (m *Machine) State(context.Context) (machine.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StateQueries++
	if len(m.States) == 0 {
		return machine.Running, nil
	}
	state := m.States[0]
	if len(m.States) > 1 {
		m.States = m.States[1:]
	}
	return state, nil
}

func (m *Machine) Launch(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Launches++
	if m.LaunchedState != machine.Unknown {
		m.States = []machine.State{m.LaunchedState}
	}
	return nil
}

func (m *Machine) Session(context.Context) (machine.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sessions++
	return m.Sess, nil
}

func (m *Machine) ReleaseSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Releases++
	return nil
}

// Counts returns Launches, Releases and StateQueries under the lock.
func (m *Machine) Counts() (launches, releases, queries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Launches, m.Releases, m.StateQueries
}
