// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package qmp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/digitalocean/go-qemu/qmp"
	"github.com/digitalocean/go-qemu/qmp/raw"

	"github.com/bureau-foundation/vmchat/lib/machine"
	"github.com/bureau-foundation/vmchat/lib/netutil"
)

// Monitor is a QMP monitor connection. *qmp.SocketMonitor implements
// it.
type Monitor = qmp.Monitor

// Dialer opens (but does not connect) a monitor on a unix socket.
type Dialer func(socket string, timeout time.Duration) (Monitor, error)

// DialSocket is the production Dialer.
func DialSocket(socket string, timeout time.Duration) (Monitor, error) {
	monitor, err := qmp.NewSocketMonitor("unix", socket, timeout)
	if err != nil {
		return nil, err
	}
	return monitor, nil
}

// call runs one typed QMP command through the generated bindings.
func call(monitor Monitor, name string, command func(*raw.Monitor) error) error {
	return commandError(name, command(raw.NewMonitor(monitor)))
}

// screendump asks for a PNG capture of the primary console. The
// generated Screendump binding has no format argument and QEMU's
// default is PPM, so this one command is encoded here.
func screendump(monitor Monitor, filename string) error {
	command, err := json.Marshal(qmp.Command{
		Execute: "screendump",
		Args:    map[string]string{"filename": filename, "format": "png"},
	})
	if err != nil {
		return fmt.Errorf("encoding qmp screendump: %w", err)
	}
	_, err = monitor.Run(command)
	return commandError("screendump", err)
}

// commandError marks a monitor that went away as machine.ErrNotRunning.
func commandError(name string, err error) error {
	if err == nil {
		return nil
	}
	if netutil.IsClosed(err) {
		return fmt.Errorf("qmp %s: %w: %w", name, machine.ErrNotRunning, err)
	}
	return fmt.Errorf("qmp %s: %w", name, err)
}
