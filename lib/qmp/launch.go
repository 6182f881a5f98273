// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package qmp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Starter starts the QEMU process and returns without waiting for it.
type Starter func(ctx context.Context, binary string, args []string) error

// ExecStarter runs QEMU in a new process group so that signals aimed
// at the daemon (or its supervisor) leave the guest running. The
// process is reaped in the background.
func ExecStarter(_ context.Context, binary string, args []string) error {
	cmd := exec.Command(binary, args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Minimizer minimizes the guest's window on the host desktop.
type Minimizer interface {
	Minimize(ctx context.Context, name string) error
}

// XdotoolMinimizer minimizes windows with xdotool.
type XdotoolMinimizer struct{}

func (XdotoolMinimizer) Minimize(ctx context.Context, name string) error {
	// QEMU titles its window "QEMU (<name>)"; --sync waits for it to
	// appear.
	cmd := exec.CommandContext(ctx, "xdotool", "search", "--sync", "--name", name, "windowminimize")
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("xdotool: %w: %s", err, output)
	}
	return nil
}
