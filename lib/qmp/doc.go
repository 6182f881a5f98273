// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package qmp implements [machine.Machine] for a QEMU guest controlled
// over the QEMU Machine Protocol.
//
// The daemon talks to QEMU through a unix socket monitor
// (github.com/digitalocean/go-qemu/qmp), issuing commands through the
// generated bindings in go-qemu's qmp/raw. Lifecycle state comes from
// query-status; keyboard and pointer input go through
// input-send-event using numeric key codes and relative axes; the
// console is captured with screendump into a temporary PNG.
//
// QEMU is started in its own process group so it survives daemon
// restarts. A restarted daemon finds the guest by its monitor socket
// and carries on without relaunching it. An unreachable socket reads
// as [machine.PoweredOff].
package qmp
