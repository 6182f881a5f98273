// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/vmchat/lib/backoff"
	"github.com/bureau-foundation/vmchat/lib/clock"
	"github.com/bureau-foundation/vmchat/lib/logging"
	"github.com/bureau-foundation/vmchat/lib/process"
	"github.com/bureau-foundation/vmchat/lib/supervisor"
	"github.com/bureau-foundation/vmchat/lib/version"
)

const daemonBinary = "vmchat"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	minSleep    time.Duration
	maxSleep    time.Duration
	healthyRun  time.Duration
	stateFile   string
	debug       bool
	showVersion bool
	command     []string
}

func parseArgs(args []string, executable string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("vmchat-supervisor", pflag.ContinueOnError)
	flagSet.DurationVar(&opts.minSleep, "min-sleep", backoff.DefaultInitial, "sleep after the first failure")
	flagSet.DurationVar(&opts.maxSleep, "max-sleep", backoff.DefaultMax, "longest sleep between restarts")
	flagSet.DurationVar(&opts.healthyRun, "healthy-run", supervisor.DefaultHealthyRun, "run time after which the sleep resets")
	flagSet.StringVar(&opts.stateFile, "state-file", "", "write restart state as JSON to this file")
	flagSet.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vmchat-supervisor [flags] <config-file>\n       vmchat-supervisor [flags] -- <command> [args...]\n\nFlags:\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if opts.showVersion {
		return opts, nil
	}
	if opts.minSleep <= 0 || opts.maxSleep < opts.minSleep {
		return opts, fmt.Errorf("%w: need 0 < --min-sleep <= --max-sleep", process.ErrUsage)
	}

	if flagSet.ArgsLenAtDash() >= 0 {
		opts.command = flagSet.Args()[flagSet.ArgsLenAtDash():]
		if len(opts.command) == 0 {
			return opts, fmt.Errorf("%w: no command after --", process.ErrUsage)
		}
		return opts, nil
	}
	opts.command = append([]string{filepath.Join(filepath.Dir(executable), daemonBinary)}, flagSet.Args()...)
	return opts, nil
}

func run() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating own binary: %w", err)
	}
	opts, err := parseArgs(os.Args[1:], executable)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		if !errors.Is(err, process.ErrUsage) {
			err = fmt.Errorf("%w: %v", process.ErrUsage, err)
		}
		return err
	}
	if opts.showVersion {
		fmt.Printf("vmchat-supervisor %s\n", version.Full())
		return nil
	}

	logger, closer, err := logging.Setup(logging.Options{Debug: opts.debug})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	sup, err := supervisor.New(supervisor.Config{
		Command:    opts.command,
		Runner:     supervisor.ExecRunner{Clock: clk, Logger: logger},
		Backoff:    backoff.New(opts.minSleep, opts.maxSleep),
		HealthyRun: opts.healthyRun,
		StateFile:  opts.stateFile,
		Clock:      clk,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	return sup.Run(ctx)
}
