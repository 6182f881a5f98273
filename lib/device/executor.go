// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/vmchat/lib/action"
	"github.com/bureau-foundation/vmchat/lib/clock"
	"github.com/bureau-foundation/vmchat/lib/machine"
)

const (
	keyDelay = time.Millisecond

	moveStep         = 10
	moveDeceleration = 0.95
	moveStepDelay    = 100 * time.Millisecond
	maxMoveSteps     = 1000
)

// Executor performs actions on one session.
type Executor struct {
	session machine.Session
	clock   clock.Clock
	logger  *slog.Logger
}

// NewExecutor returns an Executor for session. A nil logger discards
// output.
func NewExecutor(session machine.Session, clk clock.Clock, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{session: session, clock: clk, logger: logger}
}

// Execute performs act. held is the caller's record of pressed mouse
// buttons; moves carry it and button actions update it.
func (e *Executor) Execute(ctx context.Context, act action.Action, held *action.Button) error {
	switch a := act.(type) {
	case action.KeyPress:
		return e.keyPress(ctx, a)
	case action.TypeWord:
		for _, r := range a.Word {
			if err := e.key(ctx, string(r), true, true); err != nil {
				return err
			}
		}
		return e.key(ctx, " ", true, true)
	case action.AltTabCycle:
		return e.altTab(ctx, a.Count)
	case action.MouseMove:
		return e.move(ctx, a.DX, a.DY, *held)
	case action.CenterCursor:
		return e.center(ctx, *held)
	case action.MouseClick:
		if err := e.buttons(ctx, a.Button, held); err != nil {
			return err
		}
		if err := e.pause(ctx, keyDelay); err != nil {
			return err
		}
		return e.buttons(ctx, 0, held)
	case action.MouseButtonDown:
		return e.buttons(ctx, a.Button, held)
	case action.MouseButtonUp:
		return e.buttons(ctx, 0, held)
	case action.SendInterrupt:
		e.logger.Debug("send ctrl+alt+del")
		return e.session.SendInterrupt(ctx)
	case action.ResetMachine:
		e.logger.Debug("reset machine")
		return e.session.Reset(ctx)
	default:
		return fmt.Errorf("unsupported action %T", act)
	}
}

func (e *Executor) keyPress(ctx context.Context, a action.KeyPress) error {
	if a.Modifier == "" {
		return e.key(ctx, a.Key, true, true)
	}
	if err := e.key(ctx, a.Modifier, true, false); err != nil {
		return err
	}
	if err := e.key(ctx, a.Key, true, true); err != nil {
		return err
	}
	return e.key(ctx, a.Modifier, false, true)
}

func (e *Executor) altTab(ctx context.Context, count int) error {
	if err := e.key(ctx, "ALT", true, false); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := e.key(ctx, "TAB", true, true); err != nil {
			return err
		}
	}
	return e.key(ctx, "ALT", false, true)
}

// key presses and/or releases a named key. A key that needs Shift is
// wrapped in Shift down/up.
func (e *Executor) key(ctx context.Context, name string, down, up bool) error {
	stroke, ok := Lookup(name)
	if !ok {
		e.logger.Debug("ignored unknown key", "key", name)
		return nil
	}
	e.logger.Debug("send key", "key", name, "down", down, "up", up)

	if down {
		if stroke.Shift {
			if err := e.session.KeyEvent(ctx, codeShift, true); err != nil {
				return err
			}
		}
		if err := e.session.KeyEvent(ctx, stroke.Code, true); err != nil {
			return err
		}
		if err := e.pause(ctx, keyDelay); err != nil {
			return err
		}
	}
	if up {
		if err := e.session.KeyEvent(ctx, stroke.Code, false); err != nil {
			return err
		}
		if stroke.Shift {
			if err := e.session.KeyEvent(ctx, codeShift, false); err != nil {
				return err
			}
		}
		if err := e.pause(ctx, keyDelay); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) buttons(ctx context.Context, pressed action.Button, held *action.Button) error {
	e.logger.Debug("send buttons", "buttons", uint8(pressed))
	if err := e.session.MouseEvent(ctx, 0, 0, machine.Buttons(pressed)); err != nil {
		return err
	}
	*held = pressed
	return nil
}

// move glides the pointer by (x, y) in decelerating steps.
func (e *Executor) move(ctx context.Context, x, y int, held action.Button) error {
	e.logger.Debug("move pointer", "dx", x, "dy", y)
	signX, remainX := split(x)
	signY, remainY := split(y)

	for step := 0; step < maxMoveSteps; step++ {
		stepX, stepY := min(remainX, moveStep), min(remainY, moveStep)
		remainX = int(float64(remainX-stepX) * moveDeceleration)
		remainY = int(float64(remainY-stepY) * moveDeceleration)

		if err := e.session.MouseEvent(ctx, signX*stepX, signY*stepY, machine.Buttons(held)); err != nil {
			return err
		}
		if err := e.pause(ctx, moveStepDelay); err != nil {
			return err
		}
		if remainX <= 0 && remainY <= 0 {
			break
		}
	}
	return nil
}

// center pushes the pointer into the top-left corner, then moves it
// half a screen right and down.
func (e *Executor) center(ctx context.Context, held action.Button) error {
	width, height, err := e.session.ScreenResolution(ctx)
	if err != nil {
		return fmt.Errorf("reading screen resolution: %w", err)
	}
	if err := e.move(ctx, -width, -height, held); err != nil {
		return err
	}
	return e.move(ctx, width/2, height/2, held)
}

func (e *Executor) pause(ctx context.Context, d time.Duration) error {
	select {
	case <-e.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func split(value int) (sign, magnitude int) {
	if value < 0 {
		return -1, -value
	}
	return 1, value
}
