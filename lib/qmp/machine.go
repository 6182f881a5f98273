// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package qmp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/digitalocean/go-qemu/qmp/raw"

	"github.com/bureau-foundation/vmchat/lib/clock"
	"github.com/bureau-foundation/vmchat/lib/machine"
)

const (
	// DefaultLaunchTimeout bounds the wait for a freshly started QEMU
	// to open its monitor socket.
	DefaultLaunchTimeout = 60 * time.Second

	dialTimeout       = 2 * time.Second
	launchPollDelay   = 250 * time.Millisecond
	minimizeTimeout   = 10 * time.Second
	screenshotPattern = "vmchat-screendump-*.png"
)

// Config describes the guest and how to start it.
type Config struct {
	// Name is the guest name, passed to QEMU as -name and used to find
	// its window.
	Name string

	// Binary and Args form the QEMU command line. The monitor socket
	// and -name options are appended by the launcher.
	Binary string
	Args   []string

	// Socket is the path of the QMP unix socket.
	Socket string

	LaunchTimeout time.Duration

	// Minimize asks Minimizer to minimize the guest window after
	// launch.
	Minimize bool

	Dial      Dialer
	Start     Starter
	Minimizer Minimizer
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Machine is a QEMU guest. Owned by a single goroutine.
type Machine struct {
	config  Config
	logger  *slog.Logger
	monitor Monitor
	session *Session
}

var _ machine.Machine = (*Machine)(nil)

// New validates config and returns a Machine. Dial and Start default
// to the production implementations.
func New(config Config) (*Machine, error) {
	var errs []error
	if config.Name == "" {
		errs = append(errs, errors.New("machine name is required"))
	}
	if config.Binary == "" {
		errs = append(errs, errors.New("qemu binary is required"))
	}
	if config.Socket == "" {
		errs = append(errs, errors.New("qmp socket path is required"))
	}
	if config.Clock == nil {
		errs = append(errs, errors.New("clock is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("qmp machine config: %w", err)
	}

	if config.Dial == nil {
		config.Dial = DialSocket
	}
	if config.Start == nil {
		config.Start = ExecStarter
	}
	if config.Minimize && config.Minimizer == nil {
		config.Minimizer = XdotoolMinimizer{}
	}
	if config.LaunchTimeout <= 0 {
		config.LaunchTimeout = DefaultLaunchTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Machine{config: config, logger: config.Logger}, nil
}

// statusStates maps QEMU run states onto machine states.
var statusStates = map[raw.RunState]machine.State{
	raw.RunStateRunning:       machine.Running,
	raw.RunStatePaused:        machine.Saved,
	raw.RunStateSuspended:     machine.Saved,
	raw.RunStateShutdown:      machine.PoweredOff,
	raw.RunStateInternalError: machine.Stuck,
	raw.RunStateGuestPanicked: machine.Stuck,
	raw.RunStateIOError:       machine.Stuck,
	raw.RunStatePrelaunch:     machine.Starting,
	raw.RunStateInmigrate:     machine.Starting,
	raw.RunStateRestoreVM:     machine.Starting,
	raw.RunStateFinishMigrate: machine.Starting,
	raw.RunStatePostmigrate:   machine.Paused,
	raw.RunStateSaveVM:        machine.Paused,
	raw.RunStateDebug:         machine.Paused,
	raw.RunStateWatchdog:      machine.Paused,
}

// State queries QEMU. An unreachable monitor is reported as
// PoweredOff rather than as an error.
func (m *Machine) State(ctx context.Context) (machine.State, error) {
	if err := m.connect(); err != nil {
		m.logger.Debug("qmp monitor unreachable", "socket", m.config.Socket, "error", err)
		return machine.PoweredOff, nil
	}
	return m.status()
}

func (m *Machine) status() (machine.State, error) {
	var status raw.StatusInfo
	err := call(m.monitor, "query-status", func(monitor *raw.Monitor) error {
		var err error
		status, err = monitor.QueryStatus()
		return err
	})
	if err != nil {
		if errors.Is(err, machine.ErrNotRunning) {
			m.disconnect()
			return machine.PoweredOff, nil
		}
		return machine.Unknown, err
	}

	state, ok := statusStates[status.Status]
	if !ok {
		m.logger.Warn("unrecognized qemu run state", "status", status.Status.String())
		return machine.Unknown, nil
	}
	return state, nil
}

// Launch resumes a paused guest, or starts a new QEMU (quitting a
// shut-down one first) and waits for its monitor.
func (m *Machine) Launch(ctx context.Context) error {
	if m.monitor != nil {
		state, err := m.status()
		if err == nil && state == machine.Saved {
			m.logger.Info("resuming guest", "name", m.config.Name)
			return call(m.monitor, "cont", (*raw.Monitor).Cont)
		}
		if m.monitor != nil {
			m.logger.Info("quitting stale qemu", "name", m.config.Name, "state", state)
			if err := call(m.monitor, "quit", (*raw.Monitor).Quit); err != nil {
				m.logger.Debug("quit stale qemu", "error", err)
			}
			m.disconnect()
		}
	}

	// A socket left behind by a dead QEMU would make the new one fail
	// to bind.
	if err := os.Remove(m.config.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale qmp socket: %w", err)
	}

	args := append([]string{
		"-name", m.config.Name,
		"-qmp", "unix:" + m.config.Socket + ",server=on,wait=off",
	}, m.config.Args...)
	m.logger.Info("starting qemu", "binary", m.config.Binary, "args", args)
	if err := m.config.Start(ctx, m.config.Binary, args); err != nil {
		return fmt.Errorf("starting qemu: %w", err)
	}

	if err := m.waitForMonitor(ctx); err != nil {
		return err
	}

	if m.config.Minimize {
		minimizeCtx, cancel := context.WithTimeout(ctx, minimizeTimeout)
		defer cancel()
		if err := m.config.Minimizer.Minimize(minimizeCtx, m.config.Name); err != nil {
			m.logger.Warn("minimizing guest window", "error", err)
		}
	}
	return nil
}

func (m *Machine) waitForMonitor(ctx context.Context) error {
	deadline := m.config.Clock.Now().Add(m.config.LaunchTimeout)
	for {
		err := m.connect()
		if err == nil {
			return nil
		}
		if !m.config.Clock.Now().Before(deadline) {
			return fmt.Errorf("qemu monitor did not come up within %s: %w", m.config.LaunchTimeout, err)
		}
		select {
		case <-m.config.Clock.After(launchPollDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Session returns the input session, creating it on first use.
func (m *Machine) Session(ctx context.Context) (machine.Session, error) {
	if m.session != nil {
		return m.session, nil
	}
	if err := m.connect(); err != nil {
		return nil, fmt.Errorf("%w: %w", machine.ErrNotRunning, err)
	}
	m.session = &Session{machine: m}
	return m.session, nil
}

// ReleaseSession drops the session. The monitor connection stays open
// for state queries.
func (m *Machine) ReleaseSession() error {
	m.session = nil
	return nil
}

// Close disconnects from the monitor. QEMU keeps running.
func (m *Machine) Close() error {
	m.session = nil
	if m.monitor == nil {
		return nil
	}
	err := m.monitor.Disconnect()
	m.monitor = nil
	return err
}

func (m *Machine) connect() error {
	if m.monitor != nil {
		return nil
	}
	monitor, err := m.config.Dial(m.config.Socket, dialTimeout)
	if err != nil {
		return err
	}
	if err := monitor.Connect(); err != nil {
		return err
	}
	m.monitor = monitor
	m.logger.Debug("connected to qmp monitor", "socket", m.config.Socket)
	return nil
}

func (m *Machine) disconnect() {
	if m.monitor == nil {
		return
	}
	if err := m.monitor.Disconnect(); err != nil {
		m.logger.Debug("disconnecting qmp monitor", "error", err)
	}
	m.monitor = nil
	m.session = nil
}

// run executes a session command, dropping the monitor if QEMU went
// away so the next State call redials.
func (m *Machine) run(name string, command func(*raw.Monitor) error) error {
	if m.monitor == nil {
		return machine.ErrNotRunning
	}
	return m.checkGone(call(m.monitor, name, command))
}

// capture writes a PNG screendump to path.
func (m *Machine) capture(path string) error {
	if m.monitor == nil {
		return machine.ErrNotRunning
	}
	return m.checkGone(screendump(m.monitor, path))
}

func (m *Machine) checkGone(err error) error {
	if errors.Is(err, machine.ErrNotRunning) {
		m.disconnect()
	}
	return err
}
