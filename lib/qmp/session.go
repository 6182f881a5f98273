// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package qmp

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"

	"github.com/digitalocean/go-qemu/qmp/raw"

	"github.com/bureau-foundation/vmchat/lib/machine"
)

// Session sends input and captures the display through the machine's
// monitor.
type Session struct {
	machine *Machine
}

var _ machine.Session = (*Session)(nil)

func (s *Session) KeyEvent(_ context.Context, code uint16, down bool) error {
	event := raw.InputEventKey{Key: raw.KeyValuefloat64(code), Down: down}
	return s.machine.run("input-send-event", func(monitor *raw.Monitor) error {
		return monitor.InputSendEvent(nil, nil, []raw.InputEvent{event})
	})
}

var buttonNames = []struct {
	bit    machine.Buttons
	button raw.InputButton
}{
	{machine.ButtonLeft, raw.InputButtonLeft},
	{machine.ButtonRight, raw.InputButtonRight},
	{machine.ButtonMiddle, raw.InputButtonMiddle},
}

// MouseEvent moves the pointer by (dx, dy) and sets the state of every
// button in one batch.
func (s *Session) MouseEvent(_ context.Context, dx, dy int, buttons machine.Buttons) error {
	var events []raw.InputEvent
	if dx != 0 {
		events = append(events, raw.InputEventRel{Axis: raw.InputAxisX, Value: int64(dx)})
	}
	if dy != 0 {
		events = append(events, raw.InputEventRel{Axis: raw.InputAxisY, Value: int64(dy)})
	}
	for _, button := range buttonNames {
		events = append(events, raw.InputEventBtn{Button: button.button, Down: buttons&button.bit != 0})
	}
	return s.machine.run("input-send-event", func(monitor *raw.Monitor) error {
		return monitor.InputSendEvent(nil, nil, events)
	})
}

func (s *Session) SendInterrupt(context.Context) error {
	keys := []raw.KeyValue{
		raw.KeyValueQcode(raw.QKeyCodeCtrl),
		raw.KeyValueQcode(raw.QKeyCodeAlt),
		raw.KeyValueQcode(raw.QKeyCodeDelete),
	}
	return s.machine.run("send-key", func(monitor *raw.Monitor) error {
		return monitor.SendKey(keys, nil)
	})
}

func (s *Session) Reset(context.Context) error {
	return s.machine.run("system_reset", (*raw.Monitor).SystemReset)
}

// PowerDown terminates QEMU. The next state query finds the socket
// gone and reports the guest powered off.
func (s *Session) PowerDown(context.Context) error {
	err := s.machine.run("quit", (*raw.Monitor).Quit)
	s.machine.disconnect()
	return err
}

// ScreenResolution reads the dimensions from a fresh screendump.
func (s *Session) ScreenResolution(ctx context.Context) (int, int, error) {
	data, err := s.Screenshot(ctx)
	if err != nil {
		return 0, 0, err
	}
	config, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("reading screendump header: %w", err)
	}
	return config.Width, config.Height, nil
}

// Screenshot captures the primary console as PNG.
func (s *Session) Screenshot(context.Context) ([]byte, error) {
	file, err := os.CreateTemp("", screenshotPattern)
	if err != nil {
		return nil, fmt.Errorf("creating screendump file: %w", err)
	}
	path := file.Name()
	file.Close()
	defer os.Remove(path)

	if err := s.machine.capture(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading screendump: %w", err)
	}
	return data, nil
}
