// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/vmchat/lib/clock"
)

const (
	// DefaultTerminateGrace bounds how long a canceled child gets to
	// exit before it is killed.
	DefaultTerminateGrace = 5 * time.Second

	terminateInterval = 100 * time.Millisecond
)

// Runner runs command to completion. It returns the exit code, or an
// error when the child could not be started or died from a signal.
// Canceling ctx must stop the child before Run returns.
type Runner interface {
	Run(ctx context.Context, command []string) (int, error)
}

// ExecRunner runs the child with inherited stdio in its own process
// group. A nil Clock means the real clock.
type ExecRunner struct {
	Clock  clock.Clock
	Logger *slog.Logger

	// TerminateGrace defaults to DefaultTerminateGrace.
	TerminateGrace time.Duration
}

func (r ExecRunner) Run(ctx context.Context, command []string) (int, error) {
	if len(command) == 0 {
		return -1, errors.New("empty command")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := r.Clock
	if clk == nil {
		clk = clock.Real()
	}

	child := exec.Command(command[0], command[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := child.Start(); err != nil {
		return -1, fmt.Errorf("starting %s: %w", command[0], err)
	}
	logger.Info("child started", "pid", child.Process.Pid)

	waited := make(chan error, 1)
	go func() { waited <- child.Wait() }()

	select {
	case err := <-waited:
		return exitStatus(err)
	case <-ctx.Done():
	}

	// The child leads its own group, so the group id is its pid.
	group := child.Process.Pid
	grace := r.TerminateGrace
	if grace <= 0 {
		grace = DefaultTerminateGrace
	}
	deadline := clk.Now().Add(grace)
	logger.Info("terminating child", "pid", group)
	for clk.Now().Before(deadline) {
		if err := unix.Kill(-group, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
			logger.Warn("signaling child", "error", err)
		}
		select {
		case err := <-waited:
			return exitStatus(err)
		case <-clk.After(terminateInterval):
		}
	}

	logger.Warn("child ignored SIGTERM, killing", "pid", group, "grace", grace)
	if err := unix.Kill(-group, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		logger.Warn("killing child", "error", err)
	}
	return exitStatus(<-waited)
}

// exitStatus converts a Wait error into an exit code.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, fmt.Errorf("waiting for child: %w", err)
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return -1, fmt.Errorf("child killed by %s", status.Signal())
	}
	return exitErr.ExitCode(), nil
}
