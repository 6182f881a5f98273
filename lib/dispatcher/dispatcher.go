// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bureau-foundation/vmchat/lib/action"
	"github.com/bureau-foundation/vmchat/lib/clock"
	"github.com/bureau-foundation/vmchat/lib/device"
	"github.com/bureau-foundation/vmchat/lib/interpreter"
	"github.com/bureau-foundation/vmchat/lib/liveness"
	"github.com/bureau-foundation/vmchat/lib/machine"
	"github.com/bureau-foundation/vmchat/lib/queue"
)

const (
	// DefaultPopTimeout bounds how long a tick waits for an event.
	DefaultPopTimeout = 500 * time.Millisecond

	// DefaultRetryDelay is the pause after a tick that found the
	// machine unusable.
	DefaultRetryDelay = 5 * time.Second

	// LivenessSender is the sender recorded in the input log for
	// resets issued by the liveness monitor.
	LivenessSender = "liveness"
)

// InputLog records every executed action. Implemented by
// [inputlog.Writer].
type InputLog interface {
	Write(sender, description string) error
	SaveScreenshot(png []byte) (string, error)
}

// Config holds the collaborators of a Dispatcher.
type Config struct {
	Machine     machine.Machine
	Queue       *queue.Queue[action.ChatEvent]
	Interpreter *interpreter.Interpreter
	Monitor     *liveness.Monitor
	Log         InputLog
	Clock       clock.Clock
	Logger      *slog.Logger

	// PopTimeout and RetryDelay default to DefaultPopTimeout and
	// DefaultRetryDelay when zero.
	PopTimeout time.Duration
	RetryDelay time.Duration
}

// Dispatcher consumes the queue and drives the machine. It is the
// single owner of the interpreter state and the machine session.
type Dispatcher struct {
	config Config
	logger *slog.Logger

	state    interpreter.State
	session  machine.Session
	executor *device.Executor
}

// New validates config and returns a Dispatcher.
func New(config Config) (*Dispatcher, error) {
	var errs []error
	if config.Machine == nil {
		errs = append(errs, errors.New("machine is required"))
	}
	if config.Queue == nil {
		errs = append(errs, errors.New("queue is required"))
	}
	if config.Interpreter == nil {
		errs = append(errs, errors.New("interpreter is required"))
	}
	if config.Monitor == nil {
		errs = append(errs, errors.New("liveness monitor is required"))
	}
	if config.Log == nil {
		errs = append(errs, errors.New("input log is required"))
	}
	if config.Clock == nil {
		errs = append(errs, errors.New("clock is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("dispatcher config: %w", err)
	}

	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.PopTimeout <= 0 {
		config.PopTimeout = DefaultPopTimeout
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	return &Dispatcher{config: config, logger: config.Logger}, nil
}

// State returns a copy of the interpreter state.
func (d *Dispatcher) State() interpreter.State { return d.state }

// Run loops until ctx is canceled, then releases the machine session.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started")
	defer d.logger.Info("dispatcher stopped")

	for ctx.Err() == nil {
		d.tick(ctx)
	}

	if d.session != nil {
		if err := d.config.Machine.ReleaseSession(); err != nil {
			d.logger.Warn("releasing machine session", "error", err)
		}
		d.dropSession()
	}
	return nil
}

func (d *Dispatcher) tick(ctx context.Context) {
	if !d.ready(ctx) {
		return
	}

	event, ok := d.config.Queue.Pop(ctx, d.config.PopTimeout)
	if !ok {
		return
	}
	if err := d.process(ctx, event); err != nil {
		d.logger.Error("processing input",
			"sender", event.Sender,
			"text", event.Text,
			"error", err,
		)
	}
}

// ready reports whether the machine is running with a session open,
// doing one step of recovery when it is not.
func (d *Dispatcher) ready(ctx context.Context) bool {
	state, err := d.config.Machine.State(ctx)
	if err != nil {
		d.logger.Warn("querying machine state", "error", err)
		d.sleep(ctx)
		return false
	}

	switch {
	case state.NeedsLaunch():
		if d.session != nil {
			d.logger.Info("releasing stale session before launch", "state", state)
			if err := d.config.Machine.ReleaseSession(); err != nil {
				d.logger.Warn("releasing machine session", "error", err)
			}
			d.dropSession()
			d.sleep(ctx)
		}
		d.logger.Info("launching machine", "state", state)
		if err := d.config.Machine.Launch(ctx); err != nil {
			d.logger.Error("launching machine", "error", err)
			d.sleep(ctx)
		}
		return false

	case state == machine.Stuck:
		d.logger.Warn("machine is stuck, powering down")
		if err := d.acquire(ctx); err == nil {
			if err := d.session.PowerDown(ctx); err != nil {
				d.logger.Error("powering down stuck machine", "error", err)
			}
		}
		d.sleep(ctx)
		return false

	case state != machine.Running:
		d.logger.Info("waiting for machine", "state", state)
		d.sleep(ctx)
		return false
	}

	if err := d.acquire(ctx); err != nil {
		d.sleep(ctx)
		return false
	}
	return true
}

func (d *Dispatcher) acquire(ctx context.Context) error {
	if d.session != nil {
		return nil
	}
	session, err := d.config.Machine.Session(ctx)
	if err != nil {
		d.logger.Warn("opening machine session", "error", err)
		return err
	}
	d.session = session
	d.executor = device.NewExecutor(session, d.config.Clock, d.logger)
	return nil
}

func (d *Dispatcher) dropSession() {
	d.session = nil
	d.executor = nil
}

// process handles one event. Panics are turned into errors so a bad
// message cannot take the loop down.
func (d *Dispatcher) process(ctx context.Context, event action.ChatEvent) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()

	before := d.state.InputCounter
	actions := d.config.Interpreter.Interpret(event, &d.state)
	sender := strings.ToLower(event.Sender)
	var performErr error
	for _, act := range actions {
		if performErr = d.perform(ctx, sender, act); performErr != nil {
			break
		}
	}

	// The counter has advanced even if an action failed; the sample
	// it calls for is still taken.
	if counter := d.state.InputCounter; counter != before && sampleDue(counter) {
		d.sample(ctx)
	}
	return performErr
}

// perform logs act and then executes it.
func (d *Dispatcher) perform(ctx context.Context, sender string, act action.Action) error {
	if err := d.config.Log.Write(sender, act.Describe()); err != nil {
		d.logger.Error("writing input log", "error", err)
	}
	err := d.executor.Execute(ctx, act, &d.state.Buttons)
	if errors.Is(err, machine.ErrNotRunning) {
		d.dropSession()
	}
	if err != nil {
		return fmt.Errorf("executing %s: %w", act.Describe(), err)
	}
	return nil
}

func sampleDue(counter uint64) bool {
	return counter == 5 || counter%100 == 0
}

// sample captures a screenshot, feeds the monitor and resets the
// machine if it looks frozen.
func (d *Dispatcher) sample(ctx context.Context) {
	if d.session == nil {
		return
	}
	monitor := d.config.Monitor

	png, err := d.session.Screenshot(ctx)
	if err != nil {
		d.logger.Warn("screenshot failed", "error", err)
		monitor.AddCaptureError()
	} else {
		if path, err := d.config.Log.SaveScreenshot(png); err != nil {
			d.logger.Error("saving screenshot", "error", err)
		} else {
			d.logger.Debug("saved screenshot", "path", path)
		}
		if err := monitor.AddSample(png); err != nil {
			d.logger.Warn("decoding screenshot", "error", err)
		}
	}

	if !monitor.Frozen() {
		return
	}
	d.logger.Warn("machine appears frozen, resetting",
		"samples", monitor.Samples(),
		"capture_errors", monitor.CaptureErrors(),
	)
	if err := d.perform(ctx, LivenessSender, action.ResetMachine{}); err != nil {
		d.logger.Error("resetting frozen machine", "error", err)
	}
}

func (d *Dispatcher) sleep(ctx context.Context) {
	select {
	case <-d.config.Clock.After(d.config.RetryDelay):
	case <-ctx.Done():
	}
}
