// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// vmchat lets a chat channel drive a QEMU virtual machine.
//
// It joins the configured channel anonymously, turns each message into
// keyboard and mouse input with the command interpreter, and delivers
// that input to the guest through QMP. Every delivered input is written
// to the daily input log in the log directory, screenshots are saved
// periodically, and a guest that stops changing its screen is reset.
//
// Usage:
//
//	vmchat [--debug] <config.yaml|config.json>
//
// Without an argument the config path is read from VMCHAT_CONFIG.
// vmchat exits 0 on SIGINT or SIGTERM and 1 when any of its loops
// fails; run it under vmchat-supervisor to restart it.
package main
